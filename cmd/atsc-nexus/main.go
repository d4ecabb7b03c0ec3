package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/atsc-nexus/pkg/atsc"
	"github.com/dbehnke/atsc-nexus/pkg/config"
	"github.com/dbehnke/atsc-nexus/pkg/database"
	"github.com/dbehnke/atsc-nexus/pkg/logger"
	"github.com/dbehnke/atsc-nexus/pkg/metrics"
	"github.com/dbehnke/atsc-nexus/pkg/mqtt"
	"github.com/dbehnke/atsc-nexus/pkg/pipeline"
	"github.com/dbehnke/atsc-nexus/pkg/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("ATSC-Nexus %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Initialize logger (basic console logger until config is loaded)
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
	})

	log.Info("Starting ATSC-Nexus",
		logger.String("version", version),
		logger.String("build_time", buildTime))

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	// Validate only mode
	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	log.Info("Configuration loaded successfully",
		logger.String("config_file", *configFile))

	// Re-create logger at the configured level. Log to stderr so the
	// decoded byte stream can go to stdout.
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	web.SetVersionInfo(version, "unknown", buildTime)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector()

	// Start Prometheus metrics server if enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				metricsCollector,
				log.WithComponent("metrics"),
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("Prometheus metrics server started",
			logger.Int("port", cfg.Metrics.Prometheus.Port),
			logger.String("path", cfg.Metrics.Prometheus.Path))
	}

	// Initialize MQTT publisher if enabled
	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqtt.New(
			mqtt.Config{
				Enabled:     cfg.MQTT.Enabled,
				Broker:      cfg.MQTT.Broker,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				QoS:         cfg.MQTT.QoS,
				Retained:    cfg.MQTT.Retained,
			},
			log.WithComponent("mqtt"),
		)

		if err := mqttPublisher.Start(ctx); err != nil {
			log.Error("MQTT publisher error", logger.Error(err))
			os.Exit(1)
		}
		log.Info("MQTT publisher started",
			logger.String("broker", cfg.MQTT.Broker),
			logger.String("topic_prefix", cfg.MQTT.TopicPrefix))
	}

	// Start web server if enabled
	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg.Web, metricsCollector, log.WithComponent("web"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
		log.Info("Web server started",
			logger.String("host", cfg.Web.Host),
			logger.Int("port", cfg.Web.Port))
	}

	// Open database and record this run if enabled
	var db *database.DB
	var runRepo *database.DecodeRunRepository
	var run *database.DecodeRun
	if cfg.Database.Enabled {
		db, err = database.NewDB(database.Config{Path: cfg.Database.Path}, log.WithComponent("database"))
		if err != nil {
			log.Error("Failed to open database", logger.Error(err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		runRepo = database.NewDecodeRunRepository(db.GetDB())
		run = &database.DecodeRun{Source: cfg.Input.Path}
		if err := runRepo.Create(run); err != nil {
			log.Error("Failed to record decode run", logger.Error(err))
			os.Exit(1)
		}
	}

	// Open input and output streams
	input, err := openInput(cfg.Input.Path)
	if err != nil {
		log.Error("Failed to open input", logger.Error(err))
		os.Exit(1)
	}
	output, err := openOutput(cfg.Output.Path)
	if err != nil {
		log.Error("Failed to open output", logger.Error(err))
		os.Exit(1)
	}

	// Build the decode pipeline
	params := atsc.Params{
		Interleave:    cfg.Trellis.InterleaveFactor,
		SegmentLength: cfg.Trellis.SegmentLength,
		EncodedLength: cfg.Trellis.EncodedLength,
	}
	pipe, err := pipeline.New(pipeline.Config{
		Params:    params,
		Collector: metricsCollector,
		OnWindow: func(windows, segments, bytesOut uint64) {
			if webServer != nil {
				webServer.GetHub().BroadcastWindowDecoded(windows, segments, bytesOut)
			}
			if mqttPublisher != nil {
				_ = mqttPublisher.PublishWindow(mqtt.WindowEvent{
					Windows:   windows,
					Segments:  segments,
					BytesOut:  bytesOut,
					Timestamp: time.Now(),
				})
			}
		},
		OnMetrics: func(branchMetrics []float64) {
			if webServer != nil {
				webServer.GetHub().BroadcastDecoderMetrics(branchMetrics)
			}
			if mqttPublisher != nil {
				_ = mqttPublisher.PublishBranchMetrics(mqtt.BranchMetricsEvent{
					Metrics:   branchMetrics,
					Timestamp: time.Now(),
				})
			}
			if runRepo != nil && run != nil {
				if err := runRepo.AddSamples(run.ID, branchMetrics); err != nil {
					log.Warn("Failed to record branch metric samples", logger.Error(err))
				}
			}
		},
	}, log)
	if err != nil {
		log.Error("Failed to create pipeline", logger.Error(err))
		os.Exit(1)
	}

	if mqttPublisher != nil {
		_ = mqttPublisher.PublishRun(mqtt.RunEvent{
			Source:    cfg.Input.Path,
			State:     "started",
			Timestamp: time.Now(),
		})
	}

	// Run the pipeline until the input is exhausted or we are signalled
	done := make(chan struct{})
	var stats pipeline.Stats
	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		stats, runErr = pipe.Run(ctx, input, output)
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal",
			logger.String("signal", sig.String()))
		cancel()
		<-done
	case <-done:
	}

	if runErr != nil && runErr != context.Canceled {
		log.Error("Decode pipeline failed", logger.Error(runErr))
	}
	log.Info("Decode pipeline finished",
		logger.Uint64("segments", stats.Segments),
		logger.Uint64("windows", stats.Windows),
		logger.Uint64("bytes_out", stats.BytesOut),
		logger.Uint64("dropped", stats.DroppedSegments))

	closeStreams(input, output, log)

	// Record final run counters
	if runRepo != nil && run != nil {
		run.Segments = stats.Segments
		run.Windows = stats.Windows
		run.BytesOut = stats.BytesOut
		run.MetadataFaults = metricsCollector.GetMetadataFaults()
		run.Resets = metricsCollector.GetPipelineResets()
		run.MeanBranchMetric = meanOf(metricsCollector.GetBranchMetrics())
		if err := runRepo.Finish(run); err != nil {
			log.Warn("Failed to finalize decode run record", logger.Error(err))
		}
	}

	if mqttPublisher != nil {
		_ = mqttPublisher.PublishRun(mqtt.RunEvent{
			Source:    cfg.Input.Path,
			State:     "finished",
			Segments:  stats.Segments,
			Windows:   stats.Windows,
			Timestamp: time.Now(),
		})
	}

	// Cancel context to trigger graceful shutdown of the servers
	cancel()

	// Stop MQTT publisher if running
	if mqttPublisher != nil {
		mqttPublisher.Stop()
	}

	// Wait for all components to stop
	wg.Wait()

	log.Info("ATSC-Nexus stopped")

	if runErr != nil && runErr != context.Canceled {
		os.Exit(1)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func closeStreams(input io.ReadCloser, output io.WriteCloser, log *logger.Logger) {
	if input != os.Stdin {
		if err := input.Close(); err != nil {
			log.Warn("Failed to close input", logger.Error(err))
		}
	}
	if output != os.Stdout {
		if err := output.Close(); err != nil {
			log.Warn("Failed to close output", logger.Error(err))
		}
	}
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
