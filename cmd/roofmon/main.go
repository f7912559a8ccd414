// Command roofmon watches a sky-camera directory, classifies the roof
// state of each new frame, maintains the observatory status file, and
// serves the result as an ASCOM Alpaca SafetyMonitor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"roofmon/internal/alpaca"
	"roofmon/internal/classifier"
	"roofmon/internal/config"
	"roofmon/internal/frames"
	"roofmon/internal/ingest"
	"roofmon/internal/logging"
	"roofmon/internal/monitor"
	"roofmon/internal/notify"
	"roofmon/internal/output"
	"roofmon/internal/secondary"
	"roofmon/internal/simulator"
	"roofmon/internal/status"
	"roofmon/internal/sun"
	"roofmon/internal/types"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the YAML configuration file")
		dir        = flag.String("dir", "", "Override the monitored frame directory")
		modelPath  = flag.String("model", "", "Override the model file path")
		interval   = flag.Duration("interval", 0, "Override the poll interval")
		port       = flag.Int("port", 0, "Override the Alpaca HTTP port")
		logLevel   = flag.String("log-level", "", "Override the log level")
		debug      = flag.Bool("debug", false, "Run with simulated frames; a built-in demo model is used when model.path is empty")
		debugRate  = flag.Duration("debug-period", 30*time.Second, "Simulated frame period")
		debugSeed  = flag.Int64("debug-seed", 1, "Simulated frame seed")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roofmon: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Monitor.Dir = *dir
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *interval > 0 {
		cfg.Monitor.Interval = config.Duration(*interval)
	}
	if *port > 0 {
		cfg.Alpaca.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *debug && cfg.Model.Path == "" {
		path, err := writeDemoModel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "roofmon: %v\n", err)
			os.Exit(1)
		}
		cfg.Model.Path = path
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "roofmon: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roofmon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, *debug, *debugRate, *debugSeed, log); err != nil {
		log.Fatal("roofmon exited", zap.Error(err))
	}
}

// writeDemoModel materializes the built-in brightness model so debug
// runs need no trained artifact. Cutoff 100 sits between the simulated
// night sky and the simulated roof interior.
func writeDemoModel() (string, error) {
	path := filepath.Join(os.TempDir(), "roofmon-demo-model.cbor")
	if err := classifier.SaveModel(path, classifier.DemoModel(32, 100)); err != nil {
		return "", fmt.Errorf("write demo model: %w", err)
	}
	return path, nil
}

func run(cfg config.AppConfig, debug bool, debugRate time.Duration, debugSeed int64, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := classifier.LoadModel(cfg.Model.Path)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	log.Info("model loaded",
		zap.String("path", cfg.Model.Path),
		zap.Int("input_size", model.InputSize),
		zap.Float64("threshold", cfg.Model.Threshold))

	store := status.NewStore()
	writer := output.NewStatusWriter(cfg.StatusFile.Path)

	var guard monitor.SunGuard
	if cfg.Sun.Enabled {
		guard = sun.NewGuard(cfg.Sun.Latitude, cfg.Sun.Longitude, cfg.Sun.ThresholdDeg)
		log.Info("sun guard enabled",
			zap.Float64("latitude", cfg.Sun.Latitude),
			zap.Float64("longitude", cfg.Sun.Longitude),
			zap.Float64("threshold_deg", cfg.Sun.ThresholdDeg))
	}

	var second secondary.Source
	switch {
	case cfg.Secondary.Modbus.Endpoint != "":
		mb := cfg.Secondary.Modbus
		second = secondary.NewModbusSource(mb.Endpoint, mb.SlaveID, mb.Address,
			mb.InputType, mb.ClosedWhenSet, mb.Timeout.Std())
		log.Info("secondary source: modbus", zap.String("endpoint", mb.Endpoint))
	case cfg.Secondary.File != "":
		second = secondary.NewFileSource(cfg.Secondary.File)
		log.Info("secondary source: file", zap.String("path", cfg.Secondary.File))
	}

	loop := monitor.New(monitor.Config{
		Source:       frames.NewSource(cfg.Monitor.Dir, cfg.Monitor.Extensions),
		Classifier:   classifier.New(model, cfg.Model.Threshold),
		Store:        store,
		Logbook:      writer,
		Guard:        guard,
		Secondary:    second,
		Interval:     cfg.Monitor.Interval.Std(),
		LogUnchanged: cfg.Monitor.LogUnchanged,
		Logger:       log.Named("monitor"),
	})

	// The loop feeds one event stream; websocket broadcasting and the
	// notifier each get their own copy.
	wsEvents := make(chan types.StatusRecord, 16)
	notifyEvents := make(chan types.StatusRecord, 16)
	go func() {
		defer close(wsEvents)
		defer close(notifyEvents)
		for {
			select {
			case <-ctx.Done():
				return
			case rec, ok := <-loop.Events():
				if !ok {
					return
				}
				select {
				case wsEvents <- rec:
				default:
				}
				select {
				case notifyEvents <- rec:
				default:
				}
			}
		}
	}()

	sinks := buildSinks(cfg.Notify, log)
	var notifier *notify.Notifier
	if len(sinks) > 0 {
		notifier = notify.New(log.Named("notify"), sinks...)
		go notifier.Run(ctx, notifyEvents)
		for _, s := range sinks {
			if m, ok := s.(*notify.MQTTSink); ok {
				defer m.Close()
			}
		}
	}

	var bridge *ingest.Bridge
	if cfg.Bridge.Enabled {
		bridge = ingest.New(cfg.Bridge.Endpoint, cfg.Monitor.Dir, log.Named("bridge"))
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("camera bridge stopped", zap.Error(err))
			}
		}()
	}

	if debug {
		if err := os.MkdirAll(cfg.Monitor.Dir, 0o755); err != nil {
			return fmt.Errorf("create frame directory: %w", err)
		}
		go dropFrames(ctx, cfg.Monitor.Dir, debugRate, debugSeed, log)
	}

	loop.Start(ctx)
	defer loop.Stop()

	started := time.Now()
	statusFn := func() map[string]any {
		payload := map[string]any{
			"state":          loop.State().String(),
			"metrics":        loop.Metrics().Snapshot(),
			"uptime_seconds": int64(time.Since(started).Seconds()),
		}
		if label, at, readErr, ok := loop.Secondary(); ok {
			sec := map[string]any{
				"status":  label.String(),
				"read_at": at.Format(time.RFC3339),
			}
			if readErr != "" {
				sec["error"] = readErr
			}
			payload["secondary"] = sec
		}
		if bridge != nil {
			written, rejected := bridge.Counts()
			payload["bridge"] = map[string]any{
				"frames_written_total":  written,
				"frames_rejected_total": rejected,
			}
		}
		if notifier != nil {
			payload["notifications_dropped_total"] = notifier.Dropped()
		}
		return payload
	}

	server := alpaca.New(cfg.Alpaca, store, alpaca.Options{
		Logger:   log.Named("alpaca"),
		StatusFn: statusFn,
		SunFn:    loop.SunAltitude,
	})

	log.Info("roofmon running",
		zap.String("dir", cfg.Monitor.Dir),
		zap.String("interval", cfg.Monitor.Interval.String()),
		zap.String("status_file", cfg.StatusFile.Path),
		zap.Int("alpaca_port", cfg.Alpaca.Port))

	if err := server.Run(ctx, wsEvents); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildSinks(cfg config.NotifyConfig, log *zap.Logger) []notify.Sink {
	var sinks []notify.Sink
	if cfg.MQTT.Broker != "" {
		sink, err := notify.NewMQTTSink(cfg.MQTT, log.Named("mqtt"))
		if err != nil {
			// The daemon still monitors without its broker.
			log.Error("mqtt sink unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.Telegram.Token != "" {
		sink, err := notify.NewTelegramSink(cfg.Telegram, log.Named("telegram"))
		if err != nil {
			log.Error("telegram sink unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// dropFrames feeds the watch directory with synthetic sky frames,
// toggling the roof every tenth frame.
func dropFrames(ctx context.Context, dir string, period time.Duration, seed int64, log *zap.Logger) {
	gen := simulator.New(seed)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			label := types.Open
			if (i/10)%2 == 1 {
				label = types.Closed
			}
			path, err := gen.WriteFrame(dir, label, time.Now())
			if err != nil {
				log.Warn("simulated frame write failed", zap.Error(err))
				continue
			}
			log.Debug("simulated frame written", zap.String("path", path))
		}
	}
}
