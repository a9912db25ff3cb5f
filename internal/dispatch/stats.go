package dispatch

import "sync/atomic"

// Stats counts pipeline outcomes. All methods are safe for concurrent use.
type Stats struct {
	frames             atomic.Uint64
	checksumErrors     atomic.Uint64
	framingErrors      atomic.Uint64
	decodeErrors       atomic.Uint64
	handshakes         atomic.Uint64
	delivered          atomic.Uint64
	filtered           atomic.Uint64
	triggers           atomic.Uint64
	subscriberFailures atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Frames             uint64 `json:"frames"`
	ChecksumErrors     uint64 `json:"checksum_errors"`
	FramingErrors      uint64 `json:"framing_errors"`
	DecodeErrors       uint64 `json:"decode_errors"`
	Handshakes         uint64 `json:"handshakes"`
	Delivered          uint64 `json:"delivered"`
	Filtered           uint64 `json:"filtered"`
	Triggers           uint64 `json:"triggers"`
	SubscriberFailures uint64 `json:"subscriber_failures"`
}

func (s *Stats) AddFrame()         { s.frames.Add(1) }
func (s *Stats) AddChecksumError() { s.checksumErrors.Add(1) }
func (s *Stats) AddFramingError()  { s.framingErrors.Add(1) }
func (s *Stats) AddDecodeError()   { s.decodeErrors.Add(1) }
func (s *Stats) AddHandshake()     { s.handshakes.Add(1) }

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Frames:             s.frames.Load(),
		ChecksumErrors:     s.checksumErrors.Load(),
		FramingErrors:      s.framingErrors.Load(),
		DecodeErrors:       s.decodeErrors.Load(),
		Handshakes:         s.handshakes.Load(),
		Delivered:          s.delivered.Load(),
		Filtered:           s.filtered.Load(),
		Triggers:           s.triggers.Load(),
		SubscriberFailures: s.subscriberFailures.Load(),
	}
}
