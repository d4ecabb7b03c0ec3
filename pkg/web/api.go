package web

import (
	"encoding/json"
	"net/http"

	"github.com/dbehnke/atsc-nexus/pkg/logger"
	"github.com/dbehnke/atsc-nexus/pkg/metrics"
)

// API handles REST API endpoints
type API struct {
	logger    *logger.Logger
	collector *metrics.Collector
}

// NewAPI creates a new API instance
func NewAPI(log *logger.Logger, collector *metrics.Collector) *API {
	return &API{
		logger:    log,
		collector: collector,
	}
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	version, commit, build := GetVersionInfo()
	response := map[string]interface{}{
		"status":     "running",
		"service":    "atsc-nexus",
		"version":    version,
		"commit":     commit,
		"build_time": build,
	}
	if a.collector != nil {
		response["segments_decoded"] = a.collector.GetSegmentsDecoded()
		response["windows_decoded"] = a.collector.GetWindowsDecoded()
		response["bytes_out"] = a.collector.GetBytesOut()
	}

	json.NewEncoder(w).Encode(response)
}

// HandleDecoder handles the /api/decoder endpoint. It reports the
// per-branch best path metrics alongside the pipeline counters so a
// dashboard can watch signal quality per trellis branch.
func (a *API) HandleDecoder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := map[string]interface{}{
		"branch_metrics": []float64{},
	}
	if a.collector != nil {
		response["branch_metrics"] = a.collector.GetBranchMetrics()
		response["segments_decoded"] = a.collector.GetSegmentsDecoded()
		response["windows_decoded"] = a.collector.GetWindowsDecoded()
		response["pipeline_resets"] = a.collector.GetPipelineResets()
		response["metadata_faults"] = a.collector.GetMetadataFaults()
		response["segments_dropped"] = a.collector.GetSegmentsDropped()
	}

	json.NewEncoder(w).Encode(response)
}
