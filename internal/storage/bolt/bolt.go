package bolt

import (
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"idlewatch/internal/storage"
)

const bucketDays = "day_records"

// Store implements the storage.Store interface using bbolt
type Store struct {
	db       *bbolt.DB
	dayStore *dayStore
}

// Open creates or opens a bbolt-backed storage instance at path
func Open(path string) (*Store, error) {
	if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketDays))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{
		db:       db,
		dayStore: &dayStore{db: db},
	}, nil
}

// Close closes the bolt database
func (s *Store) Close() error {
	return s.db.Close()
}

// Days returns the DayStore implementation
func (s *Store) Days() storage.DayStore {
	return s.dayStore
}
