package thinkgear

// EventKind classifies what a single fed byte produced.
type EventKind int

const (
	EventNone EventKind = iota
	EventHandshake
	EventFrame
	EventFramingError
	EventChecksumError
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventHandshake:
		return "handshake"
	case EventFrame:
		return "frame"
	case EventFramingError:
		return "framing_error"
	case EventChecksumError:
		return "checksum_error"
	default:
		return "unknown"
	}
}

// Event is the result of Parser.Feed.
type Event struct {
	Kind  EventKind
	Frame Frame
	Err   error
}

// Parser runs the handshake detector and the frame synchronizer over one
// byte stream. It is not safe for concurrent use; a single read loop owns it.
type Parser struct {
	cursor     Cursor
	handshaker Handshaker
}

// NewParser returns a parser seeking sync.
func NewParser() *Parser {
	return &Parser{}
}

// Feed applies one byte. The handshaker only watches bytes received while
// the synchronizer is outside a frame.
func (p *Parser) Feed(b byte) Event {
	handshake := false
	if p.cursor.State == SeekingSync {
		handshake = p.handshaker.Observe(b)
	} else {
		p.handshaker.Reset()
	}

	var step Step
	p.cursor, step = Advance(p.cursor, b)

	switch step.Outcome {
	case OutcomeFrame:
		return Event{Kind: EventFrame, Frame: step.Frame}
	case OutcomeFramingError:
		return Event{Kind: EventFramingError, Err: step.Err}
	case OutcomeChecksumError:
		return Event{Kind: EventChecksumError, Err: step.Err}
	}
	if handshake {
		return Event{Kind: EventHandshake}
	}
	return Event{}
}

// State returns the synchronizer state.
func (p *Parser) State() State {
	return p.cursor.State
}

// Reset discards partial frame and handshake history, as on a new connection.
func (p *Parser) Reset() {
	p.cursor = Cursor{}
	p.handshaker.Reset()
}
