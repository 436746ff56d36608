// Package otel sets up the OpenTelemetry log pipeline the slog bridge writes to,
// and publishes camera usage as observable gauges.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OCAP2/cctv/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is reported when Config.ServiceName is empty.
const DefaultServiceName = "cctv_system"

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	LogWriter    io.Writer // file the log records are written to
	Endpoint     string    // OTLP endpoint, optional
	Insecure     bool
}

// Provider owns the log pipeline. A disabled Provider is valid and does nothing.
type Provider struct {
	logProvider *sdklog.LoggerProvider
	config      Config
	gauges      metric.Registration
}

// New builds the pipeline described by cfg. With cfg.Enabled false it returns a
// no-op provider.
func New(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var processors []sdklog.Processor
	if cfg.LogWriter != nil {
		fileExporter, err := stdoutlog.New(
			stdoutlog.WithWriter(cfg.LogWriter),
			stdoutlog.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(fileExporter,
			sdklog.WithExportTimeout(cfg.BatchTimeout),
		))
	}
	if cfg.Endpoint != "" {
		otlpOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			otlpOpts = append(otlpOpts, otlploghttp.WithInsecure())
		}
		otlpExporter, err := otlploghttp.New(ctx, otlpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(otlpExporter,
			sdklog.WithExportTimeout(cfg.BatchTimeout),
		))
	}
	if len(processors) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, proc := range processors {
		opts = append(opts, sdklog.WithProcessor(proc))
	}
	p.logProvider = sdklog.NewLoggerProvider(opts...)
	return p, nil
}

// LoggerProvider returns the log provider for the otelslog bridge, or nil when
// disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter from the global meter provider when enabled.
func (p *Provider) Meter(name string) metric.Meter {
	if !p.config.Enabled {
		return noop.Meter{}
	}
	return otel.Meter(name)
}

// ObserveUsage publishes the counts returned by snapshot as gauges. Calling it
// again replaces the previous registration.
func (p *Provider) ObserveUsage(snapshot func() core.Usage) error {
	meter := p.Meter(p.config.ServiceName)

	cameras, err := meter.Int64ObservableGauge("cctv.cameras", metric.WithDescription("Registered cameras"))
	if err != nil {
		return fmt.Errorf("cameras gauge: %w", err)
	}
	active, err := meter.Int64ObservableGauge("cctv.cameras.active", metric.WithDescription("Cameras whose owner is valid"))
	if err != nil {
		return fmt.Errorf("active cameras gauge: %w", err)
	}
	viewing, err := meter.Int64ObservableGauge("cctv.screens.viewing", metric.WithDescription("Screens showing a camera"))
	if err != nil {
		return fmt.Errorf("viewing screens gauge: %w", err)
	}
	helmets, err := meter.Int64ObservableGauge("cctv.helmets.active", metric.WithDescription("Running helmet cams"))
	if err != nil {
		return fmt.Errorf("helmet gauge: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		u := snapshot()
		o.ObserveInt64(cameras, int64(u.Cameras))
		o.ObserveInt64(active, int64(u.ActiveCameras))
		o.ObserveInt64(viewing, int64(u.ViewingScreens))
		o.ObserveInt64(helmets, int64(u.ActiveHelmets))
		return nil
	}, cameras, active, viewing, helmets)
	if err != nil {
		return fmt.Errorf("register usage callback: %w", err)
	}

	if p.gauges != nil {
		_ = p.gauges.Unregister()
	}
	p.gauges = reg
	return nil
}

// Flush forces a flush of pending log records.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown stops the pipeline. Should be called when the extension unloads.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.gauges != nil {
		_ = p.gauges.Unregister()
		p.gauges = nil
	}
	if p.logProvider == nil {
		return nil
	}
	if err := p.logProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
