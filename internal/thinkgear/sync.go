package thinkgear

import "fmt"

// State is the frame synchronizer's position within the byte stream.
type State int

const (
	SeekingSync State = iota
	ReadingLength
	ReadingPayload
	ReadingChecksum
)

func (s State) String() string {
	switch s {
	case SeekingSync:
		return "SEEKING_SYNC"
	case ReadingLength:
		return "READING_LENGTH"
	case ReadingPayload:
		return "READING_PAYLOAD"
	case ReadingChecksum:
		return "READING_CHECKSUM"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome classifies the result of advancing the synchronizer by one byte.
type Outcome int

const (
	OutcomeNone          Outcome = iota // Byte consumed, no frame boundary
	OutcomeFrame                        // A checksum-verified frame completed
	OutcomeFramingError                 // Declared length rejected
	OutcomeChecksumError                // Frame completed with a bad checksum
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeFrame:
		return "frame"
	case OutcomeFramingError:
		return "framing_error"
	case OutcomeChecksumError:
		return "checksum_error"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Step is the result of one transition.
type Step struct {
	Outcome Outcome
	Frame   Frame // Set for OutcomeFrame
	Err     error // Wraps ErrFraming or ErrChecksum for the error outcomes
}

// Cursor is the synchronizer state between bytes. The zero value is a cursor
// seeking sync with no previous byte.
type Cursor struct {
	State    State
	Prev     byte
	HavePrev bool
	Length   int
	Payload  []byte
	Sum      byte
}

// reset returns the cursor to SeekingSync with no byte history. Payload is
// released rather than truncated so an emitted frame never aliases the next one.
func (c Cursor) reset() Cursor {
	return Cursor{}
}

// Advance applies one byte to the cursor and returns the next cursor.
// Sync detection only happens in SeekingSync, so payload bytes equal to
// SYNC_BYTE never cause a resynchronization mid-frame.
func Advance(c Cursor, b byte) (Cursor, Step) {
	switch c.State {
	case SeekingSync:
		if c.HavePrev && c.Prev == SYNC_BYTE && b == SYNC_BYTE {
			return Cursor{State: ReadingLength}, Step{}
		}
		c.Prev, c.HavePrev = b, true
		return c, Step{}

	case ReadingLength:
		if b == SYNC_BYTE {
			// leading sync padding
			return c, Step{}
		}
		length := int(b)
		if length >= MAX_PACKET_LEN {
			return c.reset(), Step{
				Outcome: OutcomeFramingError,
				Err:     fmt.Errorf("%w: declared length %d >= %d", ErrFraming, length, MAX_PACKET_LEN),
			}
		}
		next := Cursor{Length: length, Payload: make([]byte, 0, length)}
		if length == 0 {
			next.State = ReadingChecksum
		} else {
			next.State = ReadingPayload
		}
		return next, Step{}

	case ReadingPayload:
		c.Payload = append(c.Payload, b)
		c.Sum += b
		if len(c.Payload) == c.Length {
			c.State = ReadingChecksum
		}
		return c, Step{}

	case ReadingChecksum:
		want := ^c.Sum
		if b != want {
			return c.reset(), Step{
				Outcome: OutcomeChecksumError,
				Err:     fmt.Errorf("%w: got 0x%02X, computed 0x%02X over %d bytes", ErrChecksum, b, want, c.Length),
			}
		}
		frame := Frame{Length: c.Length, Payload: c.Payload, Checksum: b}
		return c.reset(), Step{Outcome: OutcomeFrame, Frame: frame}
	}

	// unknown state: recover by seeking sync
	return c.reset(), Step{}
}

// Synchronizer wraps a Cursor for callers that prefer a mutable value.
type Synchronizer struct {
	cursor Cursor
}

// Feed advances the synchronizer by one byte.
func (s *Synchronizer) Feed(b byte) Step {
	var step Step
	s.cursor, step = Advance(s.cursor, b)
	return step
}

// State returns the current synchronizer state.
func (s *Synchronizer) State() State {
	return s.cursor.State
}

// Reset discards any partial frame and returns to SeekingSync.
func (s *Synchronizer) Reset() {
	s.cursor = s.cursor.reset()
}
