package main

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C" // This is required to import the C code

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/cctv/internal/api"
	"github.com/OCAP2/cctv/internal/cctv"
	"github.com/OCAP2/cctv/internal/config"
	"github.com/OCAP2/cctv/internal/dispatcher"
	"github.com/OCAP2/cctv/internal/handlers"
	"github.com/OCAP2/cctv/internal/influx"
	"github.com/OCAP2/cctv/internal/logging"
	"github.com/OCAP2/cctv/internal/mission"
	"github.com/OCAP2/cctv/internal/monitor"
	intOtel "github.com/OCAP2/cctv/internal/otel"
	"github.com/OCAP2/cctv/internal/parser"
	"github.com/OCAP2/cctv/internal/replication"
	"github.com/OCAP2/cctv/internal/storage"
	"github.com/OCAP2/cctv/internal/util"
	"github.com/OCAP2/cctv/pkg/a3interface"
	"github.com/OCAP2/cctv/pkg/core"

	"github.com/spf13/viper"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.0.1"
	BuildDate               string = "unknown"

	Addon         string = "cctv"
	ExtensionName string = "cctv_system"
)

// file paths
var (
	// ArmaDir is the path to the Arma 3 root directory. This is checked in init().
	ArmaDir string

	// AddonFolder is where the config, the init log and the influx backup live.
	AddonFolder string

	// ModulePath is the absolute path to this library file.
	ModulePath string

	InitLogFilePath string
	InitLogFile     *os.File
	CctvLogFilePath string
	CctvLogFile     *os.File
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	addonVersion string = "unknown"

	missionContext = mission.NewContext()
	acks           = replication.NewAcks()

	// Services
	eventDispatcher *dispatcher.Dispatcher
	cctvRuntime     *cctv.Runtime
	handlerService  *handlers.Service
	monitorService  *monitor.Service
	influxManager   *influx.Manager
	journal         storage.Backend

	servicesOnce sync.Once
)

// init is run automatically when the module is loaded
func init() {
	var err error

	ArmaDir, err = a3interface.GetArmaDir()
	if err != nil {
		panic(err)
	}
	ModulePath, err = a3interface.GetModulePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve module path: %v\n", err)
	}
	AddonFolder = a3interface.AddonFolder(ArmaDir, ModulePath, Addon)
	if err := os.MkdirAll(AddonFolder, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create addon folder: %v\n", err)
	}

	InitLogFilePath = filepath.Join(AddonFolder, "init.log")
	InitLogFile, err = os.Create(InitLogFilePath)
	if err != nil {
		// logging isn't set up yet
		fmt.Fprintf(os.Stderr, "Failed to create init log file: %v\n", err)
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{File: writerOf(InitLogFile), Level: "info"})
	Logger = SlogManager.Logger()

	if err := loadConfig(); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	CctvLogFilePath = logging.LogFilePath(viper.GetString("logsDir"), ExtensionName, SessionStartTime)
	CctvLogFile, err = logging.OpenLogFile(CctvLogFilePath)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", CctvLogFilePath)
	}
	Logger.Info("Begin logging in logs directory", "path", CctvLogFilePath)

	setupLogging()

	Logger.Info("Setting up a3interface...")
	if err := setupA3Interface(); err != nil {
		Logger.Error("Failed to set up a3interfaces!", "error", err)
		panic(err)
	}
	Logger.Info("Set up a3interfaces")
}

// writerOf keeps a nil file from becoming a non-nil io.Writer.
func writerOf(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

// setupLogging rebuilds the logger with the file, OTel and Graylog sinks.
func setupLogging() {
	var err error
	otelCfg := config.GetOTelConfig()
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    writerOf(CctvLogFile),
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
		OTelProvider, _ = intOtel.New(intOtel.Config{})
	} else if otelCfg.Enabled {
		Logger.Info("OTel provider initialized", "file", CctvLogFilePath, "endpoint", otelCfg.Endpoint)
	}

	opts := logging.Options{
		File:     writerOf(CctvLogFile),
		Level:    viper.GetString("logLevel"),
		Provider: OTelProvider.LoggerProvider(),
		Context:  missionContext.LogAttrs,
	}

	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", gl.Address)
		} else {
			opts.GELF = w
			Logger.Info("Graylog sink enabled", "address", gl.Address)
		}
	}

	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", CctvLogFilePath)
}

func loadConfig() (err error) {
	return config.Load(AddonFolder)
}

func sendCallback(function string, data ...string) error {
	return a3interface.WriteArmaCallback(ExtensionName, function, data...)
}

func setupA3Interface() (err error) {
	a3interface.SetVersion(CurrentExtensionVersion)

	// Lifecycle handlers are there as soon as the DLL loads; the :CCTV: commands
	// follow once the journal is up.
	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	registerLifecycleHandlers(d)
	a3interface.SetDispatcher(d)
	eventDispatcher = d

	Logger.Info("Dispatcher initialized with lifecycle handlers")
	return nil
}

func initExtension() {
	if err := sendCallback(":EXT:READY:"); err != nil {
		Logger.Warn("Failed to send EXT:READY callback", "error", err)
	}
	if err := sendCallback(":VERSION:", CurrentExtensionVersion); err != nil {
		Logger.Warn("Failed to send VERSION callback", "error", err)
	}
}

// startServices opens the journal and registers the :CCTV: handlers. A journal
// that fails to open is replaced by the in-memory one so the cameras still work.
func startServices() error {
	var startErr error
	servicesOnce.Do(func() {
		journalCfg := config.GetJournalConfig()
		backend, err := createJournal(journalCfg)
		if err == nil {
			err = backend.Init()
		}
		if err != nil {
			startErr = err
			Logger.Error("Failed to open journal, falling back to memory", "type", journalCfg.Type, "error", err)
			backend = newMemoryJournal(journalCfg)
			if ferr := backend.Init(); ferr != nil {
				Logger.Error("Failed to open memory journal", "error", ferr)
			}
		}
		journal = backend

		setupInflux()
		buildRuntime()
		setupMonitor()

		handlerService.RegisterHandlers(eventDispatcher)
		Logger.Info("CCTV handlers registered with dispatcher")
	})
	return startErr
}

func setupInflux() {
	log := logging.NewZerolog(fileOrStdout(CctvLogFile), viper.GetString("logLevel"), missionContext.LogAttrs)
	m := influx.NewManager(log, filepath.Join(AddonFolder, "influx_backup.log.gzip"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.Connect(ctx)
	switch {
	case errors.Is(err, influx.ErrDisabled):
		Logger.Debug("InfluxDB disabled")
	case err != nil:
		Logger.Error("Failed to set up InfluxDB", "error", err)
	default:
		influxManager = m
	}
}

func fileOrStdout(f *os.File) io.Writer {
	if f == nil {
		return os.Stdout
	}
	return f
}

func buildRuntime() {
	cctvCfg := config.GetCCTVConfig()
	helmetCfg := config.GetHelmetCamConfig()
	replCfg := config.GetReplicationConfig()

	vehicleSide, err := core.ParseSide(config.GetVehicleCameraSide())
	if err != nil {
		Logger.Warn("Invalid vehicle camera side, using ANY", "error", err)
	}

	callbacks := handlers.NewCallbacks(sendCallback, Logger)
	cctvRuntime = cctv.NewRuntime(cctv.RuntimeDeps{
		Options: cctv.Options{
			Enabled:            cctvCfg.Enabled,
			AllowZeusPlacement: cctvCfg.AllowZeusPlacement,
			HelmetItems:        helmetCfg.Items,
			HelmetAutoEnable:   helmetCfg.AutoEnable,
			HelmetTick:         helmetCfg.TickInterval,
			VehicleSide:        vehicleSide,
			Retries:            replCfg.Retries,
			Timeout:            replCfg.Timeout,
		},
		ReadyTimeout: cctvCfg.ReadyTimeout,
		Broadcaster:  replication.NewCallbackBroadcaster(sendCallback, acks),
		Journal:      journal,
		Dialogs:      callbacks,
		Notifier:     callbacks,
		Logger:       Logger,
		OnBuild:      onSystemBuilt,
	})

	deps := handlers.Dependencies{
		Parser:         parser.NewParser(Logger, addonVersion, CurrentExtensionVersion),
		Runtime:        cctvRuntime,
		MissionContext: missionContext,
		Journal:        journal,
		Acks:           acks,
		Callbacks:      callbacks,
		Logger:         Logger,
	}
	if influxManager != nil {
		deps.Metrics = influxManager
	}
	if up := config.GetUploadConfig(); up.Enabled {
		client := api.New(up.ServerURL, up.APIKey)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Healthcheck(ctx); err != nil {
			Logger.Warn("Journal collector is not reachable, uploads may fail", "url", up.ServerURL, "error", err)
		}
		cancel()
		deps.Uploader = client
		deps.UploadTag = up.Tag
	}
	handlerService = handlers.NewService(deps)
}

// onSystemBuilt hooks metrics into every new System.
func onSystemBuilt(sys *cctv.System) {
	if influxManager != nil {
		sys.Screens.OnTransition(func(t core.Transition) {
			if err := influxManager.WriteTransition(t, missionContext.GetMission().MissionName); err != nil {
				Logger.Debug("Failed to write transition metric", "error", err)
			}
		})
	}
	if err := OTelProvider.ObserveUsage(sys.Usage); err != nil {
		Logger.Warn("Failed to register usage gauges", "error", err)
	}
}

func currentUsage() core.Usage {
	if sys := cctvRuntime.Current(); sys != nil {
		return sys.Usage()
	}
	return core.Usage{Time: time.Now()}
}

func setupMonitor() {
	monCfg := config.GetMonitorConfig()
	statusPath := ""
	if monCfg.StatusFile != "" {
		statusPath = monCfg.StatusFile
		if !filepath.IsAbs(statusPath) {
			statusPath = filepath.Join(AddonFolder, statusPath)
		}
	}
	deps := monitor.Dependencies{
		Snapshot:       currentUsage,
		MissionContext: missionContext,
		Journal:        journal,
		StatusPath:     statusPath,
		Interval:       monCfg.Interval,
		Logger:         Logger,
	}
	if influxManager != nil {
		deps.Metrics = influxManager
	}
	monitorService = monitor.NewService(deps)
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start usage monitor", "error", err)
	}
}

func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":INIT:", func(e dispatcher.Event) (any, error) {
		go initExtension()
		return "ok", nil
	})

	d.Register(":INIT:JOURNAL:", func(e dispatcher.Event) (any, error) {
		go func() {
			err := startServices()
			if err != nil {
				if cbErr := sendCallback(":JOURNAL:ERROR:", err.Error()); cbErr != nil {
					Logger.Warn("Failed to send JOURNAL:ERROR callback", "error", cbErr)
				}
			}
			if cbErr := sendCallback(":JOURNAL:OK:", journalStatus(config.GetJournalConfig().Type, err)); cbErr != nil {
				Logger.Warn("Failed to send JOURNAL:OK callback", "error", cbErr)
			}
		}()
		return "ok", nil
	})

	// Simple queries - sync return is sufficient, no callback needed
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{CurrentExtensionVersion, BuildDate}, nil
	})

	d.Register(":GETDIR:ARMA:", func(e dispatcher.Event) (any, error) {
		return ArmaDir, nil
	})

	d.Register(":GETDIR:MODULE:", func(e dispatcher.Event) (any, error) {
		return ModulePath, nil
	})

	d.Register(":GETDIR:CCTVLOG:", func(e dispatcher.Event) (any, error) {
		return CctvLogFilePath, nil
	})

	d.Register(":ADDON:VERSION:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) > 0 {
			addonVersion = util.FixEscapeQuotes(util.TrimQuotes(e.Args[0]))
			Logger.Info("Addon version", "version", addonVersion)
		}
		return "ok", nil
	})

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Received :SAVE: command, flushing logs")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel data", "error", err)
		}
		return "ok", nil
	})

	d.Register(":SHUTDOWN:", func(e dispatcher.Event) (any, error) {
		shutdown()
		return "ok", nil
	}, dispatcher.Serialized())
}

// shutdown stops every service. The game calls it when the server exits.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if monitorService != nil {
		monitorService.Stop()
	}
	if eventDispatcher != nil {
		if err := eventDispatcher.Close(ctx); err != nil {
			Logger.Warn("Queued commands were not drained", "error", err)
		}
	}
	if cctvRuntime != nil {
		cctvRuntime.End()
	}
	if handlerService != nil {
		handlerService.WaitUploads()
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			Logger.Error("Failed to close journal", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	if err := OTelProvider.Shutdown(ctx); err != nil {
		Logger.Warn("Failed to shut down OTel", "error", err)
	}
	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush logs", "error", err)
	}
}

func main() {
	Logger.Info("Starting up...")

	a3interface.SetCallbackHook(consoleCallback)

	initExtension()
	if err := startServices(); err != nil {
		Logger.Warn("Journal fell back to memory", "error", err)
	}

	args := os.Args[1:]
	if len(args) > 0 {
		if strings.ToLower(args[0]) == "demo" {
			Logger.Info("Running demo mission...")
			demoStart := time.Now()
			if err := runDemo(); err != nil {
				Logger.Error("Demo failed", "error", err)
			}
			Logger.Info("Demo finished.", "duration", time.Since(demoStart))
		}
	} else {
		fmt.Println("No arguments provided.")
	}

	shutdown()
	fmt.Println("Press enter to exit.")
	_, _ = fmt.Scanln()
}
