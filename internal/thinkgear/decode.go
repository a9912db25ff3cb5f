package thinkgear

import "encoding/binary"

// Decode interprets a verified payload's tagged fields.
//
// Unknown codes advance by a single byte so vendor-specific tags do not
// hide the known fields that follow them. Decoding stops when fewer than two
// bytes remain. A known multi-byte tag truncated by the payload end yields a
// *DecodeError and no record.
func Decode(payload []byte) (Record, error) {
	var rec Record
	i := 0
	for len(payload)-i >= 2 {
		code := payload[i]
		switch code {
		case CODE_QUALITY:
			rec.Quality = payload[i+1]
			rec.Present |= FieldQuality
			i += SINGLE_BYTE_FIELD_SIZE
		case CODE_ATTENTION:
			rec.Attention = payload[i+1]
			rec.Present |= FieldAttention
			i += SINGLE_BYTE_FIELD_SIZE
		case CODE_MEDITATION:
			rec.Meditation = payload[i+1]
			rec.Present |= FieldMeditation
			i += SINGLE_BYTE_FIELD_SIZE
		case CODE_EEG_POWER:
			if err := need(payload, i, EEG_POWER_FIELD_SIZE); err != nil {
				return Record{}, err
			}
			// skip code and vlength
			base := i + 2
			for band := 0; band < EEG_BAND_COUNT; band++ {
				off := base + band*EEG_BAND_SIZE
				rec.EEGBands[band] = uint32(payload[off])<<16 | uint32(payload[off+1])<<8 | uint32(payload[off+2])
			}
			rec.Present |= FieldEEGBands
			i += EEG_POWER_FIELD_SIZE
		case CODE_RAW_WAVE:
			if err := need(payload, i, RAW_WAVE_FIELD_SIZE); err != nil {
				return Record{}, err
			}
			rec.EEGRaw = int16(binary.BigEndian.Uint16(payload[i+2 : i+4]))
			rec.Present |= FieldEEGRaw
			i += RAW_WAVE_FIELD_SIZE
		default:
			i++
		}
	}
	return rec, nil
}

func need(payload []byte, offset, size int) error {
	if have := len(payload) - offset; have < size {
		return &DecodeError{Code: payload[offset], Offset: offset, Need: size, Have: have}
	}
	return nil
}

// EncodeRecord builds a payload carrying the record's decoded fields in key
// order. It is the inverse of Decode and is used to synthesize device output.
func EncodeRecord(r Record) []byte {
	var out []byte
	if r.Has(FieldQuality) {
		out = append(out, CODE_QUALITY, r.Quality)
	}
	if r.Has(FieldAttention) {
		out = append(out, CODE_ATTENTION, r.Attention)
	}
	if r.Has(FieldMeditation) {
		out = append(out, CODE_MEDITATION, r.Meditation)
	}
	if r.Has(FieldEEGBands) {
		out = append(out, CODE_EEG_POWER, EEG_BAND_COUNT*EEG_BAND_SIZE)
		for _, v := range r.EEGBands {
			out = append(out, byte(v>>16), byte(v>>8), byte(v))
		}
	}
	if r.Has(FieldEEGRaw) {
		out = append(out, CODE_RAW_WAVE, 2)
		out = binary.BigEndian.AppendUint16(out, uint16(r.EEGRaw))
	}
	return out
}
