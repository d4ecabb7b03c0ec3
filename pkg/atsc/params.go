package atsc

import "fmt"

// Protocol framing constants for ATSC 8-VSB (A/53).
const (
	// SegmentLength is the number of symbols in one data segment,
	// including the 4 segment sync symbols.
	SegmentLength = 832

	// SyncSymbols is the number of segment sync symbols at the start of
	// each segment. They are not trellis coded.
	SyncSymbols = 4

	// DataSymbols is the number of trellis coded symbols per segment.
	DataSymbols = SegmentLength - SyncSymbols

	// EncodedLength is the length in bytes of one RS-encoded MPEG frame,
	// the decoded output unit per segment.
	EncodedLength = 207

	// NCoders is the trellis code interleave factor: the number of
	// independent trellis encoders cycled through by the transmitter.
	NCoders = 12

	// SegmentsPerField is the number of data segments per field, used by
	// pipeline metadata bookkeeping.
	SegmentsPerField = 312
)

// Params carries the construction-time framing parameters of a Decoder or
// Encoder. The zero value is not valid; use DefaultParams.
type Params struct {
	// Interleave is the number of trellis branches (transmit encoders).
	Interleave int
	// SegmentLength is the symbol count per segment, including sync.
	SegmentLength int
	// EncodedLength is the output byte count per segment.
	EncodedLength int
}

// DefaultParams returns the A/53 broadcast parameters.
func DefaultParams() Params {
	return Params{
		Interleave:    NCoders,
		SegmentLength: SegmentLength,
		EncodedLength: EncodedLength,
	}
}

// dataSymbols returns the trellis coded symbol count per segment.
func (p Params) dataSymbols() int {
	return p.SegmentLength - SyncSymbols
}

// Validate checks the internal consistency of the framing parameters.
func (p Params) Validate() error {
	if p.Interleave <= 0 {
		return fmt.Errorf("interleave factor must be positive, got %d", p.Interleave)
	}
	if p.SegmentLength <= SyncSymbols {
		return fmt.Errorf("segment length must exceed %d sync symbols, got %d", SyncSymbols, p.SegmentLength)
	}
	if p.dataSymbols()%p.Interleave != 0 {
		return fmt.Errorf("data symbols per segment (%d) must divide evenly across %d branches",
			p.dataSymbols(), p.Interleave)
	}
	if p.EncodedLength*4 != p.dataSymbols() {
		return fmt.Errorf("encoded length %d bytes cannot hold %d dibits per segment",
			p.EncodedLength, p.dataSymbols())
	}
	if p.dataSymbols() <= decoderDelay {
		return fmt.Errorf("data symbols per segment (%d) must exceed decoder delay %d",
			p.dataSymbols(), decoderDelay)
	}
	return nil
}
