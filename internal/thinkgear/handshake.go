package thinkgear

import (
	"fmt"
	"io"
)

// Handshaker detects the legacy-mode sentinel pair. Every consecutive pair of
// LEGACY_SENTINEL bytes is reported; the device tolerates redundant handshakes.
type Handshaker struct {
	prev     byte
	havePrev bool
}

// Observe records b and reports whether it completes a sentinel pair.
func (h *Handshaker) Observe(b byte) bool {
	detected := h.havePrev && h.prev == LEGACY_SENTINEL && b == LEGACY_SENTINEL
	h.prev, h.havePrev = b, true
	return detected
}

// Reset forgets the previous byte.
func (h *Handshaker) Reset() {
	h.prev, h.havePrev = 0, false
}

// SendHandshake writes HandshakeCommand to w in a single write.
func SendHandshake(w io.Writer) error {
	n, err := w.Write(HandshakeCommand)
	if err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}
	if n != len(HandshakeCommand) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(HandshakeCommand))
	}
	return nil
}
