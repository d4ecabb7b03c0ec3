package atsc

// interleaveMap is the static routing between the interleaved segment
// stream and the trellis branches, covering one window of Interleave
// consecutive segments.
//
// The transmitter commutates through its encoders on every symbol slot,
// sync slots included, so with 832 slots per segment the branch feeding
// the first data symbol advances by 832 mod 12 = 4 from one segment to
// the next. Branch assignment for the slot at (seg, sym) is therefore
// (seg*SegmentLength + sym) mod Interleave, and each branch's symbols
// are taken in ascending slot order. This must match the transmitter's
// rule exactly; a mismatch corrupts every decoded byte with no local
// error signal.
type interleaveMap struct {
	// syms[b][k] is the window-relative symbol index
	// (seg*SegmentLength + sym) of branch b's k-th symbol.
	syms [][]int
	// dibits[b][k] is the bit position in the packed window output
	// buffer where branch b's k-th decoded dibit belongs. Dibits pack
	// four to a byte, MSB first.
	dibits [][]int
	// perBranch is the symbol count per branch per window.
	perBranch int
}

func newInterleaveMap(p Params) *interleaveMap {
	m := &interleaveMap{
		syms:      make([][]int, p.Interleave),
		dibits:    make([][]int, p.Interleave),
		perBranch: p.dataSymbols(),
	}
	for b := range m.syms {
		m.syms[b] = make([]int, 0, m.perBranch)
		m.dibits[b] = make([]int, 0, m.perBranch)
	}
	for seg := 0; seg < p.Interleave; seg++ {
		for sym := SyncSymbols; sym < p.SegmentLength; sym++ {
			b := (seg*p.SegmentLength + sym) % p.Interleave
			d := sym - SyncSymbols
			m.syms[b] = append(m.syms[b], seg*p.SegmentLength+sym)
			m.dibits[b] = append(m.dibits[b], (seg*p.EncodedLength+d/4)*8+(6-2*(d%4)))
		}
	}
	return m
}
