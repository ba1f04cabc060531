// Package store is the local snapshot cache: last-known document state per
// session id, used for owner reload continuity. It is a cache, not a
// database — every failure degrades to a cache miss and nothing here is
// ever fatal to a session.
package store

import (
	"encoding/json"
	"fmt"
	"log"

	"go.etcd.io/bbolt"

	"pairpad/internal/models"
)

var roomsBucket = []byte("rooms")

// Store is a bbolt-backed key-value map from session id to StoredRoom.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the cache file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open session cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(roomsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create rooms bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Get looks a session up. Read errors and corrupt values both come back as
// a plain miss.
func (s *Store) Get(id string) (models.StoredRoom, bool) {
	var rec models.StoredRoom
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(roomsBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Printf("store: corrupt cache entry for %s, treating as miss: %v", id, err)
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		return models.StoredRoom{}, false
	}
	return rec, found
}

// Put writes or replaces a session snapshot.
func (s *Store) Put(rec models.StoredRoom) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode room %s: %w", rec.ID, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(roomsBucket).Put([]byte(rec.ID), raw)
	})
}

// Delete drops a session snapshot. Missing keys are not an error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(roomsBucket).Delete([]byte(id))
	})
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}
