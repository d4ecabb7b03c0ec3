package atsc

import "fmt"

// segmentSync is the 4-symbol binary sync pattern opening every data
// segment. Sync symbols are inserted after trellis coding and carry no
// data.
var segmentSync = [SyncSymbols]float32{5, -5, -5, 5}

// branchEncoder is the transmitter-side trellis encoder for one branch:
// precoder on the upper bit, two-delay feedback encoder on the lower.
type branchEncoder struct {
	pre, s1, s2 byte
}

// encode consumes one dibit X2X1 and returns the 8-level symbol index.
func (e *branchEncoder) encode(dibit byte) byte {
	x2 := dibit >> 1 & 1
	x1 := dibit & 1
	y2 := x2 ^ e.pre
	e.pre = y2
	out := y2<<2 | x1<<1 | e.s2
	e.s1, e.s2 = x1^e.s2, e.s1
	return out
}

// Encoder is the transmitter-side interleaved trellis encoder: the
// inverse of Decoder, used to generate test vectors and loopback
// streams. Payload bytes are split into dibits MSB first and commutated
// across the branch encoders in symbol slot order.
type Encoder struct {
	params   Params
	branches []branchEncoder
}

// NewEncoder returns an Encoder with the default A/53 parameters.
func NewEncoder() *Encoder {
	e, err := NewEncoderParams(DefaultParams())
	if err != nil {
		panic(err) // default parameters always validate
	}
	return e
}

// NewEncoderParams returns an Encoder for the given framing parameters.
func NewEncoderParams(p Params) (*Encoder, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("encoder params: %w", err)
	}
	return &Encoder{
		params:   p,
		branches: make([]branchEncoder, p.Interleave),
	}, nil
}

// Reset returns every branch encoder to its initial state.
func (e *Encoder) Reset() {
	for i := range e.branches {
		e.branches[i] = branchEncoder{}
	}
}

// Encode trellis encodes payload segments of EncodedLength bytes each
// into soft symbol segments of SegmentLength symbols each. The segment
// count must be a multiple of the interleave factor so the output ends
// on an interleave window boundary.
func (e *Encoder) Encode(payload [][]byte) ([][]float32, error) {
	p := e.params
	if len(payload)%p.Interleave != 0 {
		return nil, fmt.Errorf("encode %d segments: %w", len(payload), ErrNotWindowMultiple)
	}
	for i, seg := range payload {
		if len(seg) != p.EncodedLength {
			return nil, fmt.Errorf("payload segment %d: length %d, want %d", i, len(seg), p.EncodedLength)
		}
	}

	out := make([][]float32, len(payload))
	for seg := range payload {
		symbols := make([]float32, p.SegmentLength)
		copy(symbols, segmentSync[:])
		for sym := SyncSymbols; sym < p.SegmentLength; sym++ {
			b := (seg*p.SegmentLength + sym) % p.Interleave
			d := sym - SyncSymbols
			dibit := payload[seg][d/4] >> (6 - 2*(d%4)) & 0x3
			level := e.branches[b].encode(dibit)
			symbols[sym] = float32(2*int(level) - 7)
		}
		out[seg] = symbols
	}
	return out, nil
}
