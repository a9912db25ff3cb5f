package thinkgear

import "fmt"

// Frame is a checksum-verified unit of the wire protocol.
type Frame struct {
	Length   int    // Declared payload length
	Payload  []byte // Exactly Length bytes
	Checksum byte   // Trailing checksum byte as received
}

// Checksum returns the one's complement of the low byte of the payload sum.
func Checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return ^sum
}

// Valid reports whether the frame satisfies the length and checksum invariants.
func (f Frame) Valid() bool {
	return f.Length >= 0 && f.Length < MAX_PACKET_LEN &&
		len(f.Payload) == f.Length &&
		Checksum(f.Payload) == f.Checksum
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{len=%d payload=% X checksum=0x%02X}", f.Length, f.Payload, f.Checksum)
}

// EncodeFrame builds the wire bytes for payload, sync marker included.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) >= MAX_PACKET_LEN {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", ErrFraming, len(payload), MAX_PACKET_LEN-1)
	}
	out := make([]byte, 0, len(payload)+4)
	out = append(out, SYNC_BYTE, SYNC_BYTE, byte(len(payload)))
	out = append(out, payload...)
	out = append(out, Checksum(payload))
	return out, nil
}

// MustEncodeFrame is EncodeFrame for fixed payloads known to fit; it panics otherwise.
func MustEncodeFrame(payload []byte) []byte {
	out, err := EncodeFrame(payload)
	if err != nil {
		panic(err)
	}
	return out
}
