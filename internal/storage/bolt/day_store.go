package bolt

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"idlewatch/internal/storage"
)

type dayStore struct {
	db *bbolt.DB
}

// Get retrieves the day record for a date
func (s *dayStore) Get(ctx context.Context, date string) (*storage.DayRecord, error) {
	var rec *storage.DayRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		payload := tx.Bucket([]byte(bucketDays)).Get([]byte(date))
		if payload == nil {
			return storage.ErrNotFound
		}

		parsed, err := parseDayRecord(payload)
		if err != nil {
			return err
		}
		rec = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// GetMany retrieves the records for the requested dates in one transaction.
// Dates with no stored record are absent from the result.
func (s *dayStore) GetMany(ctx context.Context, dates []string) (map[string]*storage.DayRecord, error) {
	records := make(map[string]*storage.DayRecord, len(dates))
	if len(dates) == 0 {
		return records, nil
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketDays))
		for _, date := range dates {
			payload := bucket.Get([]byte(date))
			if payload == nil {
				continue
			}

			rec, err := parseDayRecord(payload)
			if err != nil {
				continue
			}
			records[date] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// All retrieves every stored day record
func (s *dayStore) All(ctx context.Context) (map[string]*storage.DayRecord, error) {
	records := make(map[string]*storage.DayRecord)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketDays)).ForEach(func(key, payload []byte) error {
			rec, err := parseDayRecord(payload)
			if err != nil {
				return nil // Skip malformed entries
			}
			records[string(key)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Save overwrites the record at date
func (s *dayStore) Save(ctx context.Context, date string, rec *storage.DayRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode day record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketDays)).Put([]byte(date), payload)
	})
}

// parseDayRecord converts a stored JSON payload to a DayRecord
func parseDayRecord(payload []byte) (*storage.DayRecord, error) {
	var rec storage.DayRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse day record: %w", err)
	}
	return &rec, nil
}
