package atsc

import "math"

// Soft-decision Viterbi decoder for one branch of the A/53 rate-2/3
// trellis code.
//
// The code per branch: the upper input bit X2 is precoded
// (Y2 = X2 xor previous Y2), the lower bit Y1 = X1 drives a two-delay
// feedback encoder (Z0 = S2; S1' = Y1 xor S2; S2' = S1), and the symbol
// level transmitted is 2*(4*Z2 + 2*Z1 + Z0) - 7, one of the eight levels
// -7..+7. Decoder state is (P, S1, S2), eight states total, so the
// precoder is inverted by the trellis search itself and Decode returns
// the original dibit X2X1.

const (
	numStates = 8

	// tracebackLen is the survivor path decision depth. Each 64-bit
	// traceback register holds tracebackLen dibit decisions.
	tracebackLen = 32

	// decoderDelay is the fixed decode latency in symbols: Decode
	// returns the decision for the symbol that entered decoderDelay
	// steps earlier.
	decoderDelay = tracebackLen - 1

	// metricThreshold bounds path metric growth; when the best metric
	// exceeds it, all metrics are reduced by the best. Relative path
	// ordering is unaffected.
	metricThreshold = 10000.0
)

// DecoderDelay is the per-branch decode latency in symbols.
const DecoderDelay = decoderDelay

// transition describes one of the four paths into a trellis state.
type transition struct {
	from  int  // predecessor state
	dibit byte // input dibit X2X1 consumed on this path
	level int  // 8-level symbol index 0..7 emitted on this path
}

// paths[s] lists the four transitions entering state s, built once from
// the encoder model at package init.
var paths [numStates][4]transition

func init() {
	var n [numStates]int
	for from := 0; from < numStates; from++ {
		p := byte(from >> 2 & 1)
		s1 := byte(from >> 1 & 1)
		s2 := byte(from & 1)
		for dibit := byte(0); dibit < 4; dibit++ {
			x2 := dibit >> 1
			x1 := dibit & 1
			y2 := x2 ^ p
			level := int(y2<<2 | x1<<1 | s2)
			to := int(y2)<<2 | int(x1^s2)<<1 | int(s1)
			paths[to][n[to]] = transition{from: from, dibit: dibit, level: level}
			n[to]++
		}
	}
}

// Viterbi is a single branch decoder. The zero value is ready to use.
// It is not safe for concurrent use.
type Viterbi struct {
	metrics    [2][numStates]float64
	traceback  [2][numStates]uint64
	phase      int
	bestMetric float64
}

// Reset clears path metrics and traceback history to the initial state.
func (v *Viterbi) Reset() {
	*v = Viterbi{}
}

// Decode consumes one soft symbol, advances the trellis and returns the
// dibit decided for the symbol that entered decoderDelay steps earlier.
// The first decoderDelay outputs after Reset are placeholder zeros.
// Decode never fails: pathological inputs still yield a best-effort
// dibit in 0..3.
func (v *Viterbi) Decode(symbol float32) byte {
	s := float64(symbol)
	var dist [numStates]float64
	for i := range dist {
		dist[i] = math.Abs(s - float64(2*i-7))
	}

	cur := v.phase
	next := cur ^ 1
	bestState := 0
	bestMetric := math.MaxFloat64

	for state := 0; state < numStates; state++ {
		tr := &paths[state]
		minIdx := 0
		minMetric := v.metrics[cur][tr[0].from] + dist[tr[0].level]
		for i := 1; i < 4; i++ {
			if m := v.metrics[cur][tr[i].from] + dist[tr[i].level]; m < minMetric {
				minMetric = m
				minIdx = i
			}
		}
		v.metrics[next][state] = minMetric
		v.traceback[next][state] = uint64(tr[minIdx].dibit)<<62 |
			v.traceback[cur][tr[minIdx].from]>>2
		if minMetric <= bestMetric {
			bestMetric = minMetric
			bestState = state
		}
	}
	v.bestMetric = bestMetric

	if bestMetric > metricThreshold {
		for state := 0; state < numStates; state++ {
			v.metrics[next][state] -= bestMetric
		}
	}
	v.phase = next

	return byte(v.traceback[next][bestState] & 0x3)
}

// BestStateMetric returns the path metric of the most likely state after
// the last Decode call. Lower is better; near zero on a clean signal.
// Read-only diagnostic, no effect on decoding.
func (v *Viterbi) BestStateMetric() float64 {
	return v.bestMetric
}
