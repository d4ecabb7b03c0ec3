package atsc

import (
	"errors"
	"fmt"
)

var (
	// ErrNotWindowMultiple is returned when a call does not cover an
	// exact number of interleave windows. Window boundaries, and with
	// them the interleave-to-segment alignment, are undefined otherwise.
	ErrNotWindowMultiple = errors.New("atsc: segment count is not a multiple of the interleave factor")

	// ErrMissingPipelineInfo is returned when an input segment carries
	// no regular-segment metadata token. Every downstream stage depends
	// on the token, so the whole call is rejected.
	ErrMissingPipelineInfo = errors.New("atsc: segment has no pipeline info")

	// ErrBadSegmentLength is returned when an input segment does not
	// hold exactly one segment worth of symbols.
	ErrBadSegmentLength = errors.New("atsc: bad segment length")
)

// SoftSegment is one equalized input segment: SegmentLength soft symbols
// (the first SyncSymbols are segment sync and are not decoded) paired
// with its pipeline metadata token.
type SoftSegment struct {
	Symbols []float32
	PL      PipelineInfo
}

// EncodedSegment is one decoded output segment: EncodedLength packed
// bytes ready for the Reed-Solomon stage, paired with its delay-adjusted
// pipeline metadata token.
type EncodedSegment struct {
	Data []byte
	PL   PipelineInfo
}

// Decoder is the trellis decode stage: a bank of per-branch Viterbi
// decoders fed through the interleave map, per-branch alignment FIFOs,
// and the segment assembler. It consumes interleave windows of soft
// symbol segments and emits one packed byte segment per input segment,
// with a total pipeline latency of one window.
//
// Branch decoder and FIFO state persist across calls. A Decoder is not
// safe for concurrent use.
type Decoder struct {
	params  Params
	imap    *interleaveMap
	viterbi []Viterbi
	fifo    []*dibitFIFO

	// scratch buffers, allocated once at construction
	symbols [][]float32
	dibits  [][]byte
	outCopy []byte
}

// NewDecoder returns a Decoder with the default A/53 parameters.
func NewDecoder() *Decoder {
	d, err := NewDecoderParams(DefaultParams())
	if err != nil {
		panic(err) // default parameters always validate
	}
	return d
}

// NewDecoderParams returns a Decoder for the given framing parameters.
func NewDecoderParams(p Params) (*Decoder, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("decoder params: %w", err)
	}
	d := &Decoder{
		params:  p,
		imap:    newInterleaveMap(p),
		viterbi: make([]Viterbi, p.Interleave),
		fifo:    make([]*dibitFIFO, p.Interleave),
		symbols: make([][]float32, p.Interleave),
		dibits:  make([][]byte, p.Interleave),
		outCopy: make([]byte, p.Interleave*p.EncodedLength),
	}
	// The FIFO depth makes decoder latency plus FIFO delay equal one
	// full window per branch, so all branches share one output time
	// base. The formula is evaluated per branch against that branch's
	// own latency.
	for b := range d.fifo {
		d.fifo[b] = newDibitFIFO(p.SegmentLength - SyncSymbols - decoderDelay)
		d.symbols[b] = make([]float32, d.imap.perBranch)
		d.dibits[b] = make([]byte, d.imap.perBranch)
	}
	return d, nil
}

// Reset clears all branch decoder and FIFO state. The caller must invoke
// it whenever upstream synchronization is lost; decoding against stale
// state produces garbage with no error signal.
func (d *Decoder) Reset() {
	for b := range d.viterbi {
		d.viterbi[b].Reset()
		d.fifo[b].reset()
	}
}

// Metrics returns the current best-path metric of each branch decoder.
// Read-only diagnostic; lower is better.
func (d *Decoder) Metrics() []float64 {
	m := make([]float64, len(d.viterbi))
	for b := range d.viterbi {
		m[b] = d.viterbi[b].BestStateMetric()
	}
	return m
}

// Decode trellis decodes in, which must cover an exact number of
// interleave windows, and returns one EncodedSegment per input segment.
// Each output token is the input token advanced by one window of
// pipeline latency.
//
// The whole batch is validated before any decoding: on error no output
// is produced and no decoder or FIFO state advances, so the call is
// safely repeatable once the caller fixes its input.
func (d *Decoder) Decode(in []SoftSegment) ([]EncodedSegment, error) {
	p := d.params
	if len(in)%p.Interleave != 0 {
		return nil, fmt.Errorf("decode %d segments: %w", len(in), ErrNotWindowMultiple)
	}
	for i := range in {
		if len(in[i].Symbols) != p.SegmentLength {
			return nil, fmt.Errorf("segment %d: length %d, want %d: %w",
				i, len(in[i].Symbols), p.SegmentLength, ErrBadSegmentLength)
		}
		if !in[i].PL.RegularSeg() {
			return nil, fmt.Errorf("segment %d: %w", i, ErrMissingPipelineInfo)
		}
	}

	out := make([]EncodedSegment, len(in))
	for i := 0; i < len(in); i += p.Interleave {
		d.decodeWindow(in[i:i+p.Interleave], out[i:i+p.Interleave])
	}
	return out, nil
}

// decodeWindow runs one interleave window: gather per-branch symbol
// subsequences, run the branch decoders, realign through the FIFOs,
// pack dibits and attach delayed metadata.
func (d *Decoder) decodeWindow(in []SoftSegment, out []EncodedSegment) {
	p := d.params

	// Build a continuous symbol buffer for each branch.
	for b := 0; b < p.Interleave; b++ {
		syms := d.imap.syms[b]
		for k, idx := range syms {
			d.symbols[b][k] = in[idx/p.SegmentLength].Symbols[idx%p.SegmentLength]
		}
	}

	// Run each branch decoder over its subsequence, in branch order.
	for b := 0; b < p.Interleave; b++ {
		for k, sym := range d.symbols[b] {
			d.dibits[b][k] = d.viterbi[b].Decode(sym)
		}
	}

	// Realign each dibit through its branch FIFO and drop it into its
	// 2-bit field of the window output buffer. The masked OR preserves
	// the neighboring dibits already packed into the same byte.
	for b := 0; b < p.Interleave; b++ {
		positions := d.imap.dibits[b]
		for k, dibit := range d.dibits[b] {
			where := positions[k]
			idx := where >> 3
			shift := where & 0x7
			d.outCopy[idx] = d.outCopy[idx]&^(0x03<<shift) |
				d.fifo[b].stuff(dibit)<<shift
		}
	}

	// Slice the window buffer into per-segment output frames and emit
	// the metadata token advanced by the window of pipeline latency.
	// The token stays with its segment position; the latency is encoded
	// in its value.
	for j := 0; j < p.Interleave; j++ {
		data := make([]byte, p.EncodedLength)
		copy(data, d.outCopy[j*p.EncodedLength:(j+1)*p.EncodedLength])
		out[j] = EncodedSegment{
			Data: data,
			PL:   in[j].PL.Delay(p.Interleave),
		}
	}
}
