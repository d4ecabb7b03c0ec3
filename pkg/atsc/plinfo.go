package atsc

// PipelineInfo is the per-segment metadata token threaded through the
// receive pipeline: which field the segment belongs to, its segment
// number within the field, and condition flags for downstream stages.
// It travels as an explicit value paired with each segment. The zero
// value carries no flags and is treated as missing metadata.
type PipelineInfo struct {
	flags uint16
	segno uint16
}

const (
	flTransportError  = 0x0001
	flRegularSeg      = 0x0002
	flInField2        = 0x0004
	flFieldSync1      = 0x0008
	flFieldSync2      = 0x0010
	flFirstRegularSeg = 0x0020
)

// NewRegularSeg returns the token for data segment segno (0 based,
// modulo SegmentsPerField) of field 1 or field 2.
func NewRegularSeg(field2 bool, segno int) PipelineInfo {
	p := PipelineInfo{flags: flRegularSeg, segno: uint16(segno % SegmentsPerField)}
	if field2 {
		p.flags |= flInField2
	}
	if p.segno == 0 {
		p.flags |= flFirstRegularSeg
	}
	return p
}

// NewFieldSync returns the token for a field sync segment of field 1 or
// field 2. Field sync segments are not trellis decoded.
func NewFieldSync(field2 bool) PipelineInfo {
	if field2 {
		return PipelineInfo{flags: flFieldSync2 | flInField2}
	}
	return PipelineInfo{flags: flFieldSync1}
}

// RegularSeg reports whether the token marks a regular data segment.
func (p PipelineInfo) RegularSeg() bool { return p.flags&flRegularSeg != 0 }

// FirstRegularSeg reports whether this is segment 0 of its field.
func (p PipelineInfo) FirstRegularSeg() bool { return p.flags&flFirstRegularSeg != 0 }

// FieldSync1 reports whether the token marks a field 1 sync segment.
func (p PipelineInfo) FieldSync1() bool { return p.flags&flFieldSync1 != 0 }

// FieldSync2 reports whether the token marks a field 2 sync segment.
func (p PipelineInfo) FieldSync2() bool { return p.flags&flFieldSync2 != 0 }

// InField2 reports whether the segment belongs to the second field.
func (p PipelineInfo) InField2() bool { return p.flags&flInField2 != 0 }

// TransportError reports whether an upstream stage flagged the segment.
func (p PipelineInfo) TransportError() bool { return p.flags&flTransportError != 0 }

// WithTransportError returns a copy of the token with the transport
// error flag set.
func (p PipelineInfo) WithTransportError() PipelineInfo {
	p.flags |= flTransportError
	return p
}

// SegNo returns the segment number within the field, 0 based.
func (p PipelineInfo) SegNo() int { return int(p.segno) }

// TagValue packs the token into the integer form carried on the
// out-of-band channel between pipeline stages.
func (p PipelineInfo) TagValue() uint64 {
	return uint64(p.flags)<<16 | uint64(p.segno)
}

// PipelineInfoFromTag unpacks a token from its integer tag form.
func PipelineInfoFromTag(v uint64) PipelineInfo {
	return PipelineInfo{flags: uint16(v >> 16), segno: uint16(v)}
}

// Delay returns the token for the same segment as seen nsegs segments
// of pipeline latency later: the segment number advances by nsegs
// modulo SegmentsPerField and the field parity flips on each wrap.
// Only meaningful for regular data segments.
func (p PipelineInfo) Delay(nsegs int) PipelineInfo {
	s := int(p.segno) + nsegs
	field2 := p.InField2()
	for s >= SegmentsPerField {
		s -= SegmentsPerField
		field2 = !field2
	}
	out := NewRegularSeg(field2, s)
	out.flags |= p.flags & flTransportError
	return out
}
