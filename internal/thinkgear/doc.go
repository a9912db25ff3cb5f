// Package thinkgear implements the headset's serial wire protocol: the
// legacy-mode handshake, the frame synchronizer and the payload decoder.
//
// The package is transport-free. Callers feed bytes into a Parser one at a
// time and receive Events; frames are decoded into Records with Decode.
//
// WIRE FORMAT:
//
//	AA AA <length:1> <payload:length bytes> <checksum:1>
//
// checksum = (^sum(payload)) & 0xFF. Lengths of MAX_PACKET_LEN or more are
// rejected. A device stuck in legacy mode emits E0 E0 and must be sent
// HandshakeCommand before it switches to the extended protocol.
package thinkgear
