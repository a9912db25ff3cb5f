package thinkgear

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field identifies one decoded record key.
type Field uint8

const (
	FieldQuality Field = 1 << iota
	FieldAttention
	FieldMeditation
	FieldEEGBands
	FieldEEGRaw
)

var fieldOrder = []Field{FieldQuality, FieldAttention, FieldMeditation, FieldEEGBands, FieldEEGRaw}

// String returns the record key name used on the consumer interface.
func (f Field) String() string {
	switch f {
	case FieldQuality:
		return "quality"
	case FieldAttention:
		return "attention"
	case FieldMeditation:
		return "meditation"
	case FieldEEGBands:
		return "eeg_bands"
	case FieldEEGRaw:
		return "eeg_raw"
	default:
		return fmt.Sprintf("Field(%d)", uint8(f))
	}
}

// EEGBandNames lists the band power order used on the wire.
var EEGBandNames = [EEG_BAND_COUNT]string{
	"delta", "theta", "low_alpha", "high_alpha",
	"low_beta", "high_beta", "low_gamma", "mid_gamma",
}

// EEGBands holds eight unsigned 24-bit band powers in EEGBandNames order.
type EEGBands [EEG_BAND_COUNT]uint32

// Record is the decoded content of one frame. Only fields flagged in Present
// carry meaning; Record is a value and is never shared after dispatch.
type Record struct {
	Present    Field
	Quality    uint8
	Attention  uint8
	Meditation uint8
	EEGBands   EEGBands
	EEGRaw     int16
}

// Has reports whether f was decoded.
func (r Record) Has(f Field) bool {
	return r.Present&f != 0
}

// Len returns the number of decoded keys.
func (r Record) Len() int {
	n := 0
	for _, f := range fieldOrder {
		if r.Has(f) {
			n++
		}
	}
	return n
}

// Trivial reports whether the record carries fewer than two keys.
func (r Record) Trivial() bool {
	return r.Len() < 2
}

// Keys returns the decoded key names in a stable order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(fieldOrder))
	for _, f := range fieldOrder {
		if r.Has(f) {
			keys = append(keys, f.String())
		}
	}
	return keys
}

// Map returns the record as a key to value mapping of its decoded fields.
func (r Record) Map() map[string]any {
	m := make(map[string]any, r.Len())
	if r.Has(FieldQuality) {
		m[FieldQuality.String()] = r.Quality
	}
	if r.Has(FieldAttention) {
		m[FieldAttention.String()] = r.Attention
	}
	if r.Has(FieldMeditation) {
		m[FieldMeditation.String()] = r.Meditation
	}
	if r.Has(FieldEEGBands) {
		m[FieldEEGBands.String()] = r.EEGBands[:]
	}
	if r.Has(FieldEEGRaw) {
		m[FieldEEGRaw.String()] = r.EEGRaw
	}
	return m
}

// MarshalJSON emits only the decoded keys.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

func (r Record) String() string {
	parts := make([]string, 0, r.Len())
	for _, f := range fieldOrder {
		if !r.Has(f) {
			continue
		}
		var v any
		switch f {
		case FieldQuality:
			v = r.Quality
		case FieldAttention:
			v = r.Attention
		case FieldMeditation:
			v = r.Meditation
		case FieldEEGBands:
			v = r.EEGBands
		case FieldEEGRaw:
			v = r.EEGRaw
		}
		parts = append(parts, fmt.Sprintf("%s: %v", f, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
