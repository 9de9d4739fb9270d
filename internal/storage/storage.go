// Package storage keeps households and motion events in an embedded BoltDB
// file, so a labelled event export can be loaded without a SQL server.
//
// Motion events are keyed by household and timestamp, which makes reading
// one household's events a single ordered cursor scan. A second bucket maps
// each event id to its current key, so re-putting an event with a corrected
// timestamp or household replaces it.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"occupancy-classifier/internal/model"
)

const (
	householdsBucket = "households" // Household labels keyed by id
	motionBucket     = "motion"     // Motion events keyed by home, time and id
	motionIDsBucket  = "motion_ids" // Event id to its key in motionBucket
)

// Store provides persistent storage for the two input relations.
type Store struct {
	db *bbolt.DB
}

// New opens or creates the BoltDB file at path and ensures both buckets
// exist. Missing parent directories are created.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(householdsBucket)); err != nil {
			return fmt.Errorf("create households bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(motionBucket)); err != nil {
			return fmt.Errorf("create motion bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(motionIDsBucket)); err != nil {
			return fmt.Errorf("create motion id bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// PutHousehold stores or replaces a household label.
func (s *Store) PutHousehold(h model.Household) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("marshal household: %w", err)
		}
		return tx.Bucket([]byte(householdsBucket)).Put(idKey(h.ID), data)
	})
}

// PutMotion stores a batch of motion events in one transaction. An event
// whose id is already stored replaces the earlier version.
func (s *Store) PutMotion(events ...model.MotionEvent) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(motionBucket))
		ids := tx.Bucket([]byte(motionIDsBucket))
		for _, e := range events {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal motion event %d: %w", e.ID, err)
			}
			id := idKey(e.ID)
			key := motionKey(e.HomeID, e.Timestamp, e.ID)
			if old := ids.Get(id); old != nil && !bytes.Equal(old, key) {
				if err := b.Delete(old); err != nil {
					return fmt.Errorf("replace motion event %d: %w", e.ID, err)
				}
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
			if err := ids.Put(id, key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Households returns every stored household ordered by id.
func (s *Store) Households() ([]model.Household, error) {
	var out []model.Household
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(householdsBucket)).ForEach(func(k, v []byte) error {
			var h model.Household
			if err := json.Unmarshal(v, &h); err != nil {
				return fmt.Errorf("decode household %x: %w", k, err)
			}
			out = append(out, h)
			return nil
		})
	})
	return out, err
}

// MotionEventsFor returns one household's events ordered by time.
func (s *Store) MotionEventsFor(homeID int64) ([]model.MotionEvent, error) {
	var out []model.MotionEvent
	prefix := idKey(homeID)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(motionBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			e, err := decodeMotion(k, v)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func decodeMotion(k, v []byte) (model.MotionEvent, error) {
	var e model.MotionEvent
	if err := json.Unmarshal(v, &e); err != nil {
		return e, fmt.Errorf("decode motion event %x: %w", k, err)
	}
	return e, nil
}

// idKey encodes a signed id so that byte order matches numeric order.
func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id)^(1<<63))
	return key
}

// motionKey is home id, timestamp in nanoseconds, then event id, each
// order-preserving.
func motionKey(homeID int64, ts time.Time, eventID int64) []byte {
	key := make([]byte, 0, 24)
	key = append(key, idKey(homeID)...)
	key = append(key, idKey(ts.UnixNano())...)
	return append(key, idKey(eventID)...)
}
