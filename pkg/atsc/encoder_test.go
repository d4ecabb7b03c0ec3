package atsc

import (
	"errors"
	"testing"
)

func TestEncoderOutputShape(t *testing.T) {
	enc := NewEncoder()
	payload := make([][]byte, NCoders)
	for i := range payload {
		payload[i] = make([]byte, EncodedLength)
	}
	out, err := enc.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(out) != NCoders {
		t.Fatalf("got %d segments, want %d", len(out), NCoders)
	}
	for seg := range out {
		if len(out[seg]) != SegmentLength {
			t.Fatalf("segment %d: %d symbols, want %d", seg, len(out[seg]), SegmentLength)
		}
		for i := 0; i < SyncSymbols; i++ {
			if out[seg][i] != segmentSync[i] {
				t.Fatalf("segment %d sync symbol %d: got %v, want %v", seg, i, out[seg][i], segmentSync[i])
			}
		}
		for i := SyncSymbols; i < SegmentLength; i++ {
			v := out[seg][i]
			if v < -7 || v > 7 || int(v)%2 == 0 {
				t.Fatalf("segment %d symbol %d: %v not an 8-VSB level", seg, i, v)
			}
		}
	}
}

func TestEncoderRejectsPartialWindow(t *testing.T) {
	enc := NewEncoder()
	payload := make([][]byte, NCoders-1)
	for i := range payload {
		payload[i] = make([]byte, EncodedLength)
	}
	if _, err := enc.Encode(payload); !errors.Is(err, ErrNotWindowMultiple) {
		t.Fatalf("partial window: got err %v, want ErrNotWindowMultiple", err)
	}
}

func TestEncoderRejectsShortPayload(t *testing.T) {
	enc := NewEncoder()
	payload := make([][]byte, NCoders)
	for i := range payload {
		payload[i] = make([]byte, EncodedLength)
	}
	payload[2] = payload[2][:EncodedLength-1]
	if _, err := enc.Encode(payload); err == nil {
		t.Fatal("short payload segment accepted")
	}
}
