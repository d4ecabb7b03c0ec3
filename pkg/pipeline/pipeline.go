// Package pipeline runs the trellis decoder over a raw symbol stream.
// Input is little-endian float32 soft symbols, one segment at a time;
// output is the packed decoded bytes, one frame per segment.
package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dbehnke/atsc-nexus/pkg/atsc"
	"github.com/dbehnke/atsc-nexus/pkg/logger"
	"github.com/dbehnke/atsc-nexus/pkg/metrics"
)

// Config holds pipeline configuration
type Config struct {
	Params atsc.Params

	// BatchWindows is how many interleave windows are decoded per
	// call into the decoder. Zero means one.
	BatchWindows int

	// Collector receives counter updates. May be nil.
	Collector *metrics.Collector

	// OnWindow is invoked after each decoded batch with the running
	// totals. May be nil.
	OnWindow func(windows, segments, bytesOut uint64)

	// OnMetrics is invoked after each decoded batch with the
	// per-branch best path metrics. May be nil.
	OnMetrics func(branchMetrics []float64)
}

// Stats holds the totals for one pipeline run
type Stats struct {
	Segments        uint64
	Windows         uint64
	BytesOut        uint64
	DroppedSegments uint64
}

// Pipeline drives a Decoder from a symbol stream
type Pipeline struct {
	cfg     Config
	params  atsc.Params
	decoder *atsc.Decoder
	log     *logger.Logger

	// Running metadata state for synthesized segment tokens
	segno  int
	field2 bool
}

// New creates a pipeline for the given configuration
func New(cfg Config, log *logger.Logger) (*Pipeline, error) {
	if cfg.BatchWindows <= 0 {
		cfg.BatchWindows = 1
	}
	decoder, err := atsc.NewDecoderParams(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Pipeline{
		cfg:     cfg,
		params:  cfg.Params,
		decoder: decoder,
		log:     log.WithComponent("pipeline"),
	}, nil
}

// Reset clears decoder and metadata state, so the next segment read
// starts a fresh interleave window at segment zero.
func (p *Pipeline) Reset() {
	p.decoder.Reset()
	p.segno = 0
	p.field2 = false
	if p.cfg.Collector != nil {
		p.cfg.Collector.PipelineReset()
	}
}

// Run decodes the symbol stream from r until EOF or context
// cancellation, writing packed output frames to w. A trailing partial
// window is dropped with a warning; it cannot be decoded without the
// rest of its interleave window.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats

	batchSegs := p.cfg.BatchWindows * p.params.Interleave
	segBytes := make([]byte, p.params.SegmentLength*4)
	pending := make([]atsc.SoftSegment, 0, batchSegs)

	flush := func() error {
		out, err := p.decoder.Decode(pending)
		if err != nil {
			return fmt.Errorf("decode failed: %w", err)
		}
		for _, seg := range out {
			if _, err := w.Write(seg.Data); err != nil {
				return fmt.Errorf("failed to write output frame: %w", err)
			}
			stats.BytesOut += uint64(len(seg.Data))
		}
		stats.Segments += uint64(len(pending))
		stats.Windows += uint64(len(pending) / p.params.Interleave)
		pending = pending[:0]

		branchMetrics := p.decoder.Metrics()
		if p.cfg.Collector != nil {
			p.cfg.Collector.SegmentsDecoded(len(out))
			p.cfg.Collector.WindowsDecoded(len(out) / p.params.Interleave)
			p.cfg.Collector.BytesOut(len(out) * p.params.EncodedLength)
			p.cfg.Collector.SetBranchMetrics(branchMetrics)
		}
		if p.cfg.OnWindow != nil {
			p.cfg.OnWindow(stats.Windows, stats.Segments, stats.BytesOut)
		}
		if p.cfg.OnMetrics != nil {
			p.cfg.OnMetrics(branchMetrics)
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		_, err := io.ReadFull(r, segBytes)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return stats, fmt.Errorf("failed to read symbols: %w", err)
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				p.log.Warn("Input ended mid-segment, dropping partial segment")
				stats.DroppedSegments++
			}
			break
		}

		symbols := make([]float32, p.params.SegmentLength)
		for i := range symbols {
			bits := binary.LittleEndian.Uint32(segBytes[i*4:])
			symbols[i] = math.Float32frombits(bits)
		}

		pending = append(pending, atsc.SoftSegment{
			Symbols: symbols,
			PL:      atsc.NewRegularSeg(p.field2, p.segno),
		})
		p.segno++
		if p.segno == atsc.SegmentsPerField {
			p.segno = 0
			p.field2 = !p.field2
		}

		if len(pending) == batchSegs {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	// Flush any whole windows that accumulated before EOF, then drop
	// the remainder.
	if whole := len(pending) / p.params.Interleave * p.params.Interleave; whole > 0 {
		rest := pending[whole:]
		dropped := len(rest)
		pending = pending[:whole]
		if err := flush(); err != nil {
			return stats, err
		}
		stats.DroppedSegments += uint64(dropped)
	} else {
		stats.DroppedSegments += uint64(len(pending))
	}
	if stats.DroppedSegments > 0 {
		p.log.Warn("Dropped segments short of a full interleave window",
			logger.Uint64("count", stats.DroppedSegments))
		if p.cfg.Collector != nil {
			p.cfg.Collector.SegmentsDropped(int(stats.DroppedSegments))
		}
	}

	return stats, nil
}
