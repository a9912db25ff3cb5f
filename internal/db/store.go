package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/mindflex/internal/dispatch"
	"github.com/banshee-data/mindflex/internal/thinkgear"
	"github.com/banshee-data/mindflex/internal/timeutil"
)

// Store persists delivered records and triggers. It is a dispatch.Subscriber.
type Store struct {
	db           *DB
	connectionID string
	clock        timeutil.Clock
}

// NewStore tags every row with connectionID. A nil clock uses the wall clock.
func NewStore(db *DB, connectionID string, clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{db: db, connectionID: connectionID, clock: clock}
}

// OnRecord inserts rec; absent fields are stored as NULL.
func (s *Store) OnRecord(rec thinkgear.Record) error {
	var quality, attention, meditation, raw sql.NullInt64
	var bands sql.NullString
	if rec.Has(thinkgear.FieldQuality) {
		quality = sql.NullInt64{Int64: int64(rec.Quality), Valid: true}
	}
	if rec.Has(thinkgear.FieldAttention) {
		attention = sql.NullInt64{Int64: int64(rec.Attention), Valid: true}
	}
	if rec.Has(thinkgear.FieldMeditation) {
		meditation = sql.NullInt64{Int64: int64(rec.Meditation), Valid: true}
	}
	if rec.Has(thinkgear.FieldEEGBands) {
		b, err := json.Marshal(rec.EEGBands)
		if err != nil {
			return fmt.Errorf("encode eeg bands: %w", err)
		}
		bands = sql.NullString{String: string(b), Valid: true}
	}
	if rec.Has(thinkgear.FieldEEGRaw) {
		raw = sql.NullInt64{Int64: int64(rec.EEGRaw), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO records (
			connection_id, received_unix_nanos, quality, attention, meditation, eeg_bands, eeg_raw
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.connectionID, s.clock.Now().UnixNano(), quality, attention, meditation, bands, raw,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Store) OnTrigger(t dispatch.Trigger) error {
	at := t.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO triggers (connection_id, attention, threshold, fired_unix_nanos) VALUES (?, ?, ?, ?)`,
		s.connectionID, t.Attention, t.Threshold, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

// StoredRecord is a record read back from the store.
type StoredRecord struct {
	ID           int64            `json:"id"`
	ConnectionID string           `json:"connection_id"`
	ReceivedAt   time.Time        `json:"received_at"`
	Record       thinkgear.Record `json:"record"`
}

// StoredTrigger is a trigger read back from the store.
type StoredTrigger struct {
	ID           int64            `json:"id"`
	ConnectionID string           `json:"connection_id"`
	Trigger      dispatch.Trigger `json:"trigger"`
}

// RecentRecords returns up to limit records, newest first.
func (db *DB) RecentRecords(limit int) ([]StoredRecord, error) {
	rows, err := db.Query(`SELECT record_id, connection_id, received_unix_nanos,
			quality, attention, meditation, eeg_bands, eeg_raw
		FROM records ORDER BY record_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var (
			sr                             StoredRecord
			nanos                          int64
			quality, attention, meditation sql.NullInt64
			raw                            sql.NullInt64
			bands                          sql.NullString
		)
		if err := rows.Scan(&sr.ID, &sr.ConnectionID, &nanos,
			&quality, &attention, &meditation, &bands, &raw); err != nil {
			return nil, err
		}
		sr.ReceivedAt = time.Unix(0, nanos).UTC()

		rec := &sr.Record
		if quality.Valid {
			rec.Present |= thinkgear.FieldQuality
			rec.Quality = uint8(quality.Int64)
		}
		if attention.Valid {
			rec.Present |= thinkgear.FieldAttention
			rec.Attention = uint8(attention.Int64)
		}
		if meditation.Valid {
			rec.Present |= thinkgear.FieldMeditation
			rec.Meditation = uint8(meditation.Int64)
		}
		if bands.Valid {
			if err := json.Unmarshal([]byte(bands.String), &rec.EEGBands); err != nil {
				return nil, fmt.Errorf("record %d: decode eeg bands: %w", sr.ID, err)
			}
			rec.Present |= thinkgear.FieldEEGBands
		}
		if raw.Valid {
			rec.Present |= thinkgear.FieldEEGRaw
			rec.EEGRaw = int16(raw.Int64)
		}
		records = append(records, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// RecentTriggers returns up to limit triggers, newest first.
func (db *DB) RecentTriggers(limit int) ([]StoredTrigger, error) {
	rows, err := db.Query(`SELECT trigger_id, connection_id, attention, threshold, fired_unix_nanos
		FROM triggers ORDER BY trigger_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []StoredTrigger
	for rows.Next() {
		var (
			st    StoredTrigger
			nanos int64
		)
		if err := rows.Scan(&st.ID, &st.ConnectionID, &st.Trigger.Attention, &st.Trigger.Threshold, &nanos); err != nil {
			return nil, err
		}
		st.Trigger.At = time.Unix(0, nanos).UTC()
		triggers = append(triggers, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return triggers, nil
}
