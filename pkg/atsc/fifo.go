package atsc

// dibitFIFO is a fixed-depth delay line for decoded dibits. It aligns a
// branch decoder's output, which lags its input by the decode latency,
// to the common output time base shared by all branches: depth is chosen
// so that latency + depth equals one full interleave window per branch.
type dibitFIFO struct {
	buf []byte
	pos int
}

func newDibitFIFO(depth int) *dibitFIFO {
	return &dibitFIFO{buf: make([]byte, depth)}
}

// stuff pushes a dibit in and returns the oldest stored dibit. Depth is
// constant for the life of the pipeline; until depth dibits have been
// pushed after a reset, the returned values are the zero placeholder.
func (f *dibitFIFO) stuff(d byte) byte {
	out := f.buf[f.pos]
	f.buf[f.pos] = d
	f.pos++
	if f.pos == len(f.buf) {
		f.pos = 0
	}
	return out
}

// reset clears the stored contents back to the zero placeholder.
func (f *dibitFIFO) reset() {
	for i := range f.buf {
		f.buf[i] = 0
	}
	f.pos = 0
}
