package metrics

import (
	"sync"
)

// Collector collects ATSC-Nexus decode metrics
type Collector struct {
	mu sync.RWMutex

	// Segment metrics
	segmentsDecoded uint64
	windowsDecoded  uint64
	bytesOut        uint64

	// Pipeline metrics
	pipelineResets  uint64
	metadataFaults  uint64
	droppedSegments uint64

	// Per-branch best-path metrics from the trellis decoder bank
	branchMetrics []float64
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// SegmentsDecoded records decoded segments
func (c *Collector) SegmentsDecoded(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.segmentsDecoded += uint64(n)
}

// WindowsDecoded records completed interleave windows
func (c *Collector) WindowsDecoded(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.windowsDecoded += uint64(n)
}

// BytesOut records emitted output bytes
func (c *Collector) BytesOut(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bytesOut += uint64(n)
}

// PipelineReset records a full pipeline reset
func (c *Collector) PipelineReset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pipelineResets++
}

// MetadataFault records a rejected call due to missing segment metadata
func (c *Collector) MetadataFault() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metadataFaults++
}

// SegmentsDropped records input segments discarded before decoding
// (e.g. a truncated trailing window)
func (c *Collector) SegmentsDropped(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.droppedSegments += uint64(n)
}

// SetBranchMetrics records the latest per-branch best-path metrics
func (c *Collector) SetBranchMetrics(m []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cap(c.branchMetrics) < len(m) {
		c.branchMetrics = make([]float64, len(m))
	}
	c.branchMetrics = c.branchMetrics[:len(m)]
	copy(c.branchMetrics, m)
}

// Reset resets gauge-like metrics (useful for testing)
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.branchMetrics = nil
	// Cumulative counters (segments, windows, resets, faults) are kept.
}

// Getters for metrics

// GetSegmentsDecoded returns total decoded segments
func (c *Collector) GetSegmentsDecoded() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.segmentsDecoded
}

// GetWindowsDecoded returns total completed interleave windows
func (c *Collector) GetWindowsDecoded() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.windowsDecoded
}

// GetBytesOut returns total emitted output bytes
func (c *Collector) GetBytesOut() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytesOut
}

// GetPipelineResets returns total pipeline resets
func (c *Collector) GetPipelineResets() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pipelineResets
}

// GetMetadataFaults returns total metadata contract faults
func (c *Collector) GetMetadataFaults() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metadataFaults
}

// GetSegmentsDropped returns total discarded input segments
func (c *Collector) GetSegmentsDropped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.droppedSegments
}

// GetBranchMetrics returns a copy of the latest per-branch metrics
func (c *Collector) GetBranchMetrics() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]float64, len(c.branchMetrics))
	copy(out, c.branchMetrics)
	return out
}
