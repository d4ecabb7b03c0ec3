package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/dbehnke/atsc-nexus/pkg/atsc"
	"github.com/dbehnke/atsc-nexus/pkg/logger"
	"github.com/dbehnke/atsc-nexus/pkg/metrics"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

// encodeStream runs the encoder over payload segments and serializes
// the resulting soft symbols as little-endian float32 bytes.
func encodeStream(t *testing.T, payload [][]byte) []byte {
	t.Helper()
	enc := atsc.NewEncoder()
	segments, err := enc.Encode(payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var buf bytes.Buffer
	scratch := make([]byte, 4)
	for _, seg := range segments {
		for _, s := range seg {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(s))
			buf.Write(scratch)
		}
	}
	return buf.Bytes()
}

func zeroPayload(segments int) [][]byte {
	payload := make([][]byte, segments)
	for i := range payload {
		payload[i] = make([]byte, atsc.EncodedLength)
	}
	return payload
}

func TestPipelineZeroStream(t *testing.T) {
	p, err := New(Config{Params: atsc.DefaultParams()}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream := encodeStream(t, zeroPayload(2*atsc.NCoders))
	var out bytes.Buffer

	stats, err := p.Run(context.Background(), bytes.NewReader(stream), &out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Segments != 2*atsc.NCoders {
		t.Errorf("Expected %d segments, got %d", 2*atsc.NCoders, stats.Segments)
	}
	if stats.Windows != 2 {
		t.Errorf("Expected 2 windows, got %d", stats.Windows)
	}
	wantBytes := uint64(2 * atsc.NCoders * atsc.EncodedLength)
	if stats.BytesOut != wantBytes {
		t.Errorf("Expected %d bytes out, got %d", wantBytes, stats.BytesOut)
	}
	if stats.DroppedSegments != 0 {
		t.Errorf("Expected no dropped segments, got %d", stats.DroppedSegments)
	}

	// A zero payload stream decodes to all-zero output: the first
	// window is pipeline fill, the second echoes the zero payload.
	for i, b := range out.Bytes() {
		if b != 0 {
			t.Fatalf("Expected zero output, got %#02x at byte %d", b, i)
		}
	}
}

func TestPipelineLoopback(t *testing.T) {
	p, err := New(Config{Params: atsc.DefaultParams()}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	payload := make([][]byte, 2*atsc.NCoders)
	for i := range payload {
		payload[i] = make([]byte, atsc.EncodedLength)
		rng.Read(payload[i])
	}

	stream := encodeStream(t, payload)
	var out bytes.Buffer

	if _, err := p.Run(context.Background(), bytes.NewReader(stream), &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := out.Bytes()
	if len(got) != 2*atsc.NCoders*atsc.EncodedLength {
		t.Fatalf("Expected %d output bytes, got %d", 2*atsc.NCoders*atsc.EncodedLength, len(got))
	}

	// The pipeline is one interleave window deep: the second output
	// window carries the first payload window. The high bit of each
	// branch's first dibit depends on unknowable precoder start
	// state, so the first three bytes of segment 0 are compared with
	// those bits masked off.
	window1 := got[atsc.NCoders*atsc.EncodedLength:]
	for seg := 0; seg < atsc.NCoders; seg++ {
		for i := 0; i < atsc.EncodedLength; i++ {
			want := payload[seg][i]
			have := window1[seg*atsc.EncodedLength+i]
			if seg == 0 && i < 3 {
				want &= 0x55
				have &= 0x55
			}
			if have != want {
				t.Fatalf("Output mismatch at segment %d byte %d: got %#02x want %#02x",
					seg, i, have, want)
			}
		}
	}
}

func TestPipelinePartialWindowDropped(t *testing.T) {
	collector := metrics.NewCollector()
	p, err := New(Config{Params: atsc.DefaultParams(), Collector: collector}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// One full window plus five stray segments
	stream := encodeStream(t, zeroPayload(atsc.NCoders))
	stray := encodeStream(t, zeroPayload(atsc.NCoders))[:5*atsc.SegmentLength*4]
	stream = append(stream, stray...)

	var out bytes.Buffer
	stats, err := p.Run(context.Background(), bytes.NewReader(stream), &out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Windows != 1 {
		t.Errorf("Expected 1 window, got %d", stats.Windows)
	}
	if stats.DroppedSegments != 5 {
		t.Errorf("Expected 5 dropped segments, got %d", stats.DroppedSegments)
	}
	if collector.GetSegmentsDropped() != 5 {
		t.Errorf("Expected collector to record 5 dropped segments, got %d",
			collector.GetSegmentsDropped())
	}
}

func TestPipelineMidSegmentEOF(t *testing.T) {
	p, err := New(Config{Params: atsc.DefaultParams()}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Truncate the stream inside the final segment
	stream := encodeStream(t, zeroPayload(atsc.NCoders))
	stream = stream[:len(stream)-100]

	var out bytes.Buffer
	stats, err := p.Run(context.Background(), bytes.NewReader(stream), &out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Windows != 0 {
		t.Errorf("Expected no complete windows, got %d", stats.Windows)
	}
	// 11 whole stray segments plus the truncated one
	if stats.DroppedSegments != 12 {
		t.Errorf("Expected 12 dropped segments, got %d", stats.DroppedSegments)
	}
}

func TestPipelineCallbacks(t *testing.T) {
	var windowCalls, metricsCalls int
	var lastWindows uint64

	p, err := New(Config{
		Params:       atsc.DefaultParams(),
		BatchWindows: 1,
		OnWindow: func(windows, segments, bytesOut uint64) {
			windowCalls++
			lastWindows = windows
		},
		OnMetrics: func(branchMetrics []float64) {
			metricsCalls++
			if len(branchMetrics) != atsc.NCoders {
				t.Errorf("Expected %d branch metrics, got %d", atsc.NCoders, len(branchMetrics))
			}
		},
	}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream := encodeStream(t, zeroPayload(3*atsc.NCoders))
	var out bytes.Buffer
	if _, err := p.Run(context.Background(), bytes.NewReader(stream), &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if windowCalls != 3 {
		t.Errorf("Expected 3 window callbacks, got %d", windowCalls)
	}
	if metricsCalls != 3 {
		t.Errorf("Expected 3 metrics callbacks, got %d", metricsCalls)
	}
	if lastWindows != 3 {
		t.Errorf("Expected final window count 3, got %d", lastWindows)
	}
}

func TestPipelineContextCancel(t *testing.T) {
	p, err := New(Config{Params: atsc.DefaultParams()}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := encodeStream(t, zeroPayload(atsc.NCoders))
	var out bytes.Buffer
	_, err = p.Run(ctx, bytes.NewReader(stream), &out)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPipelineReset(t *testing.T) {
	collector := metrics.NewCollector()
	p, err := New(Config{Params: atsc.DefaultParams(), Collector: collector}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream := encodeStream(t, zeroPayload(atsc.NCoders))
	var out1 bytes.Buffer
	if _, err := p.Run(context.Background(), bytes.NewReader(stream), &out1); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	p.Reset()
	if collector.GetPipelineResets() != 1 {
		t.Errorf("Expected 1 pipeline reset, got %d", collector.GetPipelineResets())
	}

	// After reset the same stream decodes identically
	var out2 bytes.Buffer
	if _, err := p.Run(context.Background(), bytes.NewReader(stream), &out2); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if !bytes.Equal(out1.Bytes(), out2.Bytes()) {
		t.Error("Expected identical output after reset")
	}
}

func TestPipelineBatchWindows(t *testing.T) {
	var windowCalls int
	p, err := New(Config{
		Params:       atsc.DefaultParams(),
		BatchWindows: 2,
		OnWindow:     func(windows, segments, bytesOut uint64) { windowCalls++ },
	}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream := encodeStream(t, zeroPayload(4*atsc.NCoders))
	var out bytes.Buffer
	stats, err := p.Run(context.Background(), bytes.NewReader(stream), &out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Windows != 4 {
		t.Errorf("Expected 4 windows, got %d", stats.Windows)
	}
	// Two windows per batch means two callbacks
	if windowCalls != 2 {
		t.Errorf("Expected 2 batch callbacks, got %d", windowCalls)
	}
}
