package thinkgear

import (
	"errors"
	"fmt"
)

// Wire protocol constants.
const (
	SYNC_BYTE       = 0xAA  // Frame sync marker, sent twice before every frame
	LEGACY_SENTINEL = 0xE0  // Emitted twice in a row by a device in legacy mode
	MAX_PACKET_LEN  = 169   // Declared payload lengths >= this are framing errors
	BAUD_RATE       = 57600 // Fixed serial link speed

	// Payload code tags.
	CODE_QUALITY    = 0x02 // Signal quality, 1 byte
	CODE_ATTENTION  = 0x04 // Attention eSense, 1 byte
	CODE_MEDITATION = 0x05 // Meditation eSense, 1 byte
	CODE_RAW_WAVE   = 0x80 // vlength + 2-byte big-endian signed sample
	CODE_EEG_POWER  = 0x83 // vlength + 8 x 3-byte big-endian band powers

	EEG_BAND_COUNT = 8
	EEG_BAND_SIZE  = 3

	// Bytes consumed per tag, including the code byte.
	SINGLE_BYTE_FIELD_SIZE = 2
	RAW_WAVE_FIELD_SIZE    = 4
	EEG_POWER_FIELD_SIZE   = 2 + EEG_BAND_COUNT*EEG_BAND_SIZE // 26
)

// HandshakeCommand switches a legacy-mode device to the extended protocol.
var HandshakeCommand = []byte{0x00, 0xF8, 0x00, 0x00, 0x00, 0xE0}

var (
	// ErrFraming reports a declared payload length of MAX_PACKET_LEN or more.
	ErrFraming = errors.New("thinkgear: framing error")
	// ErrChecksum reports a frame whose trailing checksum does not match its payload.
	ErrChecksum = errors.New("thinkgear: checksum mismatch")
	// ErrShortWrite reports a handshake that was not fully written.
	ErrShortWrite = errors.New("thinkgear: short handshake write")
)

// DecodeError reports a payload tag whose layout runs past the payload end.
type DecodeError struct {
	Code   byte // Tag being decoded
	Offset int  // Offset of the tag within the payload
	Need   int  // Bytes the tag layout requires, including the code
	Have   int  // Bytes remaining from Offset
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("thinkgear: code 0x%02X at offset %d truncated: need %d bytes, have %d",
		e.Code, e.Offset, e.Need, e.Have)
}
