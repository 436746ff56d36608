package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/cctv/internal/dispatcher"

// instruments are taken from the global meter provider, which is a no-op until
// the otel provider is installed.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newInstruments(queueLengths func() map[string]int) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	ins := &instruments{}

	var err error
	if ins.queueSize, err = m.Int64ObservableGauge(
		"cctv.dispatcher.queue.size",
		metric.WithDescription("Events waiting in a command queue"),
	); err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for cmd, n := range queueLengths() {
			o.ObserveInt64(ins.queueSize, int64(n), metric.WithAttributes(commandAttr(cmd)))
		}
		return nil
	}, ins.queueSize); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	if ins.processed, err = m.Int64Counter(
		"cctv.dispatcher.events.processed",
		metric.WithDescription("Queued events handled"),
	); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if ins.dropped, err = m.Int64Counter(
		"cctv.dispatcher.events.dropped",
		metric.WithDescription("Events rejected because the queue was full"),
	); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if ins.failed, err = m.Int64Counter(
		"cctv.dispatcher.events.failed",
		metric.WithDescription("Events whose handler returned an error"),
	); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if ins.duration, err = m.Float64Histogram(
		"cctv.dispatcher.event.duration",
		metric.WithDescription("Handler run time"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return ins, nil
}

func commandAttr(command string) attribute.KeyValue {
	return attribute.String("command", command)
}
