package thinkgear

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// feedAll runs every byte through a fresh parser and collects non-empty events.
func feedAll(t *testing.T, stream []byte) []Event {
	t.Helper()
	p := NewParser()
	var events []Event
	for _, b := range stream {
		if ev := p.Feed(b); ev.Kind != EventNone {
			events = append(events, ev)
		}
	}
	return events
}

func frames(events []Event) []Frame {
	var out []Frame
	for _, ev := range events {
		if ev.Kind == EventFrame {
			out = append(out, ev.Frame)
		}
	}
	return out
}

func TestAdvance_ConcreteFrame(t *testing.T) {
	stream := []byte{0xAA, 0xAA, 0x04, 0x02, 0x64, 0x04, 0x32, 0x63}

	got := frames(feedAll(t, stream))
	want := []Frame{{Length: 4, Payload: []byte{0x02, 0x64, 0x04, 0x32}, Checksum: 0x63}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
	if !got[0].Valid() {
		t.Errorf("frame %v reported invalid", got[0])
	}
}

func TestAdvance_ChecksumMismatchThenResync(t *testing.T) {
	bad := []byte{0xAA, 0xAA, 0x04, 0x02, 0x64, 0x04, 0x32, 0x00}
	good := MustEncodeFrame([]byte{0x05, 0x21})

	events := feedAll(t, append(bad, good...))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != EventChecksumError {
		t.Errorf("first event = %v, want checksum_error", events[0].Kind)
	}
	if !errors.Is(events[0].Err, ErrChecksum) {
		t.Errorf("checksum event error %v does not wrap ErrChecksum", events[0].Err)
	}
	if events[1].Kind != EventFrame {
		t.Fatalf("second event = %v, want frame", events[1].Kind)
	}
	if diff := cmp.Diff([]byte{0x05, 0x21}, events[1].Frame.Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestAdvance_CorruptedPayloadByte(t *testing.T) {
	payload := []byte{0x02, 0x10, 0x04, 0x40, 0x05, 0x30}
	for i := range payload {
		frame := MustEncodeFrame(payload)
		frame[3+i] ^= 0x01
		next := MustEncodeFrame([]byte{0x04, 0x07})

		got := frames(feedAll(t, append(frame, next...)))
		if len(got) != 1 {
			t.Fatalf("corrupt byte %d: expected only the trailing frame, got %d frames", i, len(got))
		}
		if got[0].Payload[1] != 0x07 {
			t.Errorf("corrupt byte %d: resynced onto wrong frame %v", i, got[0])
		}
	}
}

func TestAdvance_SyncBytesInsidePayload(t *testing.T) {
	// 0xAA 0xAA inside the payload must be treated as data
	payload := []byte{0x02, 0xAA, 0xAA, 0xAA, 0x04, 0xAA}
	stream := append(MustEncodeFrame(payload), MustEncodeFrame([]byte{0x05, 0x01})...)

	got := frames(feedAll(t, stream))
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if diff := cmp.Diff(payload, got[0].Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestAdvance_LengthOverflow(t *testing.T) {
	for _, length := range []byte{169, 170, 200, 255} {
		c := Cursor{}
		var step Step
		for _, b := range []byte{0xAA, 0xAA, length} {
			c, step = Advance(c, b)
		}
		if length == SYNC_BYTE {
			// 0xAA is padding, not a length
			if c.State != ReadingLength {
				t.Errorf("length 0x%02X: state = %v, want READING_LENGTH", length, c.State)
			}
			continue
		}
		if step.Outcome != OutcomeFramingError {
			t.Errorf("length %d: outcome = %v, want framing_error", length, step.Outcome)
		}
		if !errors.Is(step.Err, ErrFraming) {
			t.Errorf("length %d: error %v does not wrap ErrFraming", length, step.Err)
		}
		if c.State != SeekingSync {
			t.Errorf("length %d: state = %v, want SEEKING_SYNC", length, c.State)
		}
		if c.Payload != nil {
			t.Errorf("length %d: payload buffer allocated after rejection", length)
		}
	}
}

func TestAdvance_MaxLengthAccepted(t *testing.T) {
	payload := make([]byte, MAX_PACKET_LEN-1)
	for i := range payload {
		payload[i] = 0x11
	}
	got := frames(feedAll(t, MustEncodeFrame(payload)))
	if len(got) != 1 || got[0].Length != 168 {
		t.Fatalf("expected one 168-byte frame, got %v", got)
	}
}

func TestAdvance_LeadingSyncPadding(t *testing.T) {
	stream := []byte{0xAA, 0xAA, 0xAA, 0xAA, 0x02, 0x04, 0x10, 0xEB}
	got := frames(feedAll(t, stream))
	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	if got[0].Length != 2 {
		t.Errorf("length = %d, want 2", got[0].Length)
	}
}

func TestAdvance_EmptyPayload(t *testing.T) {
	got := frames(feedAll(t, []byte{0xAA, 0xAA, 0x00, 0xFF}))
	if len(got) != 1 || got[0].Length != 0 {
		t.Fatalf("expected one empty frame, got %v", got)
	}
}

func TestAdvance_GarbageBeforeSync(t *testing.T) {
	stream := append([]byte{0x00, 0x13, 0xAA, 0x37, 0xAA}, MustEncodeFrame([]byte{0x02, 0x00})...)
	got := frames(feedAll(t, stream))
	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
}

func TestAdvance_EmittedFramesDoNotAlias(t *testing.T) {
	stream := append(MustEncodeFrame([]byte{0x02, 0x01}), MustEncodeFrame([]byte{0x02, 0x02})...)
	got := frames(feedAll(t, stream))
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if got[0].Payload[1] != 0x01 || got[1].Payload[1] != 0x02 {
		t.Errorf("frames share storage: %v %v", got[0], got[1])
	}
}

func TestSynchronizer_Reset(t *testing.T) {
	var s Synchronizer
	for _, b := range []byte{0xAA, 0xAA, 0x03, 0x02} {
		s.Feed(b)
	}
	if s.State() != ReadingPayload {
		t.Fatalf("state = %v, want READING_PAYLOAD", s.State())
	}
	s.Reset()
	if s.State() != SeekingSync {
		t.Errorf("state after reset = %v, want SEEKING_SYNC", s.State())
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		SeekingSync:     "SEEKING_SYNC",
		ReadingLength:   "READING_LENGTH",
		ReadingPayload:  "READING_PAYLOAD",
		ReadingChecksum: "READING_CHECKSUM",
		State(42):       "State(42)",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestEncodeFrame_TooLong(t *testing.T) {
	_, err := EncodeFrame(make([]byte, MAX_PACKET_LEN))
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("err = %v, want ErrFraming", err)
	}
}
