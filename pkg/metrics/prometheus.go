package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dbehnke/atsc-nexus/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

// ServeHTTP handles HTTP requests for metrics
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder

	// Segment metrics
	output.WriteString("# HELP atsc_segments_decoded_total Total trellis decoded segments\n")
	output.WriteString("# TYPE atsc_segments_decoded_total counter\n")
	output.WriteString(fmt.Sprintf("atsc_segments_decoded_total %d\n", h.collector.GetSegmentsDecoded()))

	output.WriteString("# HELP atsc_windows_decoded_total Total completed interleave windows\n")
	output.WriteString("# TYPE atsc_windows_decoded_total counter\n")
	output.WriteString(fmt.Sprintf("atsc_windows_decoded_total %d\n", h.collector.GetWindowsDecoded()))

	output.WriteString("# HELP atsc_bytes_out_total Total emitted output bytes\n")
	output.WriteString("# TYPE atsc_bytes_out_total counter\n")
	output.WriteString(fmt.Sprintf("atsc_bytes_out_total %d\n", h.collector.GetBytesOut()))

	// Pipeline metrics
	output.WriteString("# HELP atsc_pipeline_resets_total Total full pipeline resets\n")
	output.WriteString("# TYPE atsc_pipeline_resets_total counter\n")
	output.WriteString(fmt.Sprintf("atsc_pipeline_resets_total %d\n", h.collector.GetPipelineResets()))

	output.WriteString("# HELP atsc_metadata_faults_total Calls rejected for missing segment metadata\n")
	output.WriteString("# TYPE atsc_metadata_faults_total counter\n")
	output.WriteString(fmt.Sprintf("atsc_metadata_faults_total %d\n", h.collector.GetMetadataFaults()))

	output.WriteString("# HELP atsc_segments_dropped_total Input segments discarded before decoding\n")
	output.WriteString("# TYPE atsc_segments_dropped_total counter\n")
	output.WriteString(fmt.Sprintf("atsc_segments_dropped_total %d\n", h.collector.GetSegmentsDropped()))

	// Branch decoder metrics
	branch := h.collector.GetBranchMetrics()
	if len(branch) > 0 {
		output.WriteString("# HELP atsc_branch_best_metric Best-path metric per trellis branch decoder (lower is better)\n")
		output.WriteString("# TYPE atsc_branch_best_metric gauge\n")
		for b, m := range branch {
			output.WriteString(fmt.Sprintf("atsc_branch_best_metric{branch=\"%d\"} %g\n", b, m))
		}
	}

	w.Write([]byte(output.String()))
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	// Use a listener to get the actual port (useful for testing with port 0)
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{
		Handler: mux,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	// Start server
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the Prometheus metrics server
func (s *PrometheusServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
}
