package thinkgear

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode_Fields(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Record
	}{
		{
			name:    "quality and attention",
			payload: []byte{0x02, 0x64, 0x04, 0x32},
			want:    Record{Present: FieldQuality | FieldAttention, Quality: 100, Attention: 50},
		},
		{
			name:    "meditation",
			payload: []byte{0x05, 0x4B},
			want:    Record{Present: FieldMeditation, Meditation: 75},
		},
		{
			name:    "raw wave negative",
			payload: []byte{0x80, 0x02, 0xFF, 0x38},
			want:    Record{Present: FieldEEGRaw, EEGRaw: -200},
		},
		{
			name: "eeg power",
			payload: []byte{
				0x83, 0x18,
				0x00, 0x00, 0x01,
				0x00, 0x01, 0x00,
				0x01, 0x00, 0x00,
				0xFF, 0xFF, 0xFF,
				0x12, 0x34, 0x56,
				0x00, 0x00, 0x00,
				0x0A, 0x0B, 0x0C,
				0x7F, 0x00, 0x01,
			},
			want: Record{Present: FieldEEGBands, EEGBands: EEGBands{
				1, 256, 65536, 0xFFFFFF, 0x123456, 0, 0x0A0B0C, 0x7F0001,
			}},
		},
		{
			name:    "unknown code between known fields",
			payload: []byte{0x02, 0x1A, 0x55, 0x04, 0x3C},
			want:    Record{Present: FieldQuality | FieldAttention, Quality: 26, Attention: 60},
		},
		{
			name:    "trailing single byte ignored",
			payload: []byte{0x05, 0x10, 0x04},
			want:    Record{Present: FieldMeditation, Meditation: 16},
		},
		{
			name:    "empty",
			payload: nil,
			want:    Record{},
		},
		{
			name:    "repeated key keeps last value",
			payload: []byte{0x04, 0x01, 0x04, 0x02},
			want:    Record{Present: FieldAttention, Attention: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.payload)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Truncated(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		code    byte
		offset  int
	}{
		{"eeg power cut short", append([]byte{0x02, 0x00, 0x83, 0x18}, make([]byte, 10)...), 0x83, 2},
		{"raw wave cut short", []byte{0x04, 0x10, 0x80, 0x02, 0x01}, 0x80, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Fatalf("err = %v, want *DecodeError", err)
			}
			if derr.Code != tt.code || derr.Offset != tt.offset {
				t.Errorf("DecodeError = %+v, want code 0x%02X at %d", derr, tt.code, tt.offset)
			}
		})
	}
}

func TestDecode_RoundTripThroughSynchronizer(t *testing.T) {
	records := []Record{
		{Present: FieldQuality | FieldAttention | FieldMeditation, Quality: 0, Attention: 255, Meditation: 128},
		{Present: FieldEEGRaw, EEGRaw: 32767},
		{Present: FieldEEGRaw, EEGRaw: -32768},
		{
			Present:    FieldQuality | FieldAttention | FieldMeditation | FieldEEGBands,
			Quality:    200,
			Attention:  61,
			Meditation: 47,
			EEGBands:   EEGBands{0xAAAAAA, 2, 3, 4, 5, 6, 7, 0xAA},
		},
	}

	var stream []byte
	for _, r := range records {
		stream = append(stream, MustEncodeFrame(EncodeRecord(r))...)
	}

	got := frames(feedAll(t, stream))
	if len(got) != len(records) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(records))
	}
	for i, f := range got {
		rec, err := Decode(f.Payload)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if diff := cmp.Diff(records[i], rec); diff != "" {
			t.Errorf("frame %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestRecord_KeysAndTrivial(t *testing.T) {
	r := Record{Present: FieldAttention}
	if !r.Trivial() {
		t.Error("single-key record should be trivial")
	}
	r.Present |= FieldEEGRaw
	if r.Trivial() {
		t.Error("two-key record should not be trivial")
	}
	if diff := cmp.Diff([]string{"attention", "eeg_raw"}, r.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	r := Record{Present: FieldQuality | FieldAttention, Quality: 100, Attention: 50, Meditation: 9}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"quality": 100, "attention": 50}, got); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}
}

func TestRecord_String(t *testing.T) {
	r := Record{Present: FieldQuality | FieldAttention, Quality: 100, Attention: 50}
	if got, want := r.String(), "{quality: 100, attention: 50}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
