// Package history keeps past sweep reports in a bbolt file so that a later
// sweep can be compared against an earlier one.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/maxvaer/apiprobe/internal/probe"
	bolt "go.etcd.io/bbolt"
)

var bucketReports = []byte("reports")

// ErrNotFound is returned when no report has the requested ID.
var ErrNotFound = errors.New("report not found")

// Store is a bbolt-backed report history.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the history file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReports)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history bucket: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Save stores report with each result's verdict under policy and returns
// the new record's ID. IDs increase with every save.
func (s *Store) Save(report *probe.Report, policy *probe.Policy) (uint64, error) {
	rec := NewRecord(report, policy)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return b.Put(itob(id), data)
	})
	if err != nil {
		return 0, fmt.Errorf("saving report: %w", err)
	}
	return rec.ID, nil
}

// Load returns the record with the given ID.
func (s *Store) Load(id uint64) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReports).Get(itob(id))
		if data == nil {
			return nil
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("loading report %d: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return rec, nil
}

// Latest returns the most recently saved record.
func (s *Store) Latest() (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		_, data := tx.Bucket(bucketReports).Cursor().Last()
		if data == nil {
			return nil
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("loading latest report: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// List returns a summary of every stored record, oldest first.
func (s *Store) List() ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReports).ForEach(func(_, data []byte) error {
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			out = append(out, rec.Summary())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
