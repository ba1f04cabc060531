package session

import (
	"context"
	"sync"

	"pairpad/internal/models"
)

// recorderChannel captures everything published through it.
type recorderChannel struct {
	mu        sync.Mutex
	published []models.Envelope
	tracked   []models.PresenceRecord
}

func (c *recorderChannel) Subscribe(ctx context.Context) error { return nil }

func (c *recorderChannel) Publish(env models.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, env)
	return nil
}

func (c *recorderChannel) Track(rec models.PresenceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked = append(c.tracked, rec)
	return nil
}

func (c *recorderChannel) Close() error { return nil }

func (c *recorderChannel) envelopes() []models.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Envelope, len(c.published))
	copy(out, c.published)
	return out
}

func (c *recorderChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

// memStore is an in-memory RoomStore.
type memStore struct {
	mu sync.Mutex
	m  map[string]models.StoredRoom
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string]models.StoredRoom)}
}

func (s *memStore) Get(id string) (models.StoredRoom, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[id]
	return rec, ok
}

func (s *memStore) Put(rec models.StoredRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[rec.ID] = rec
	return nil
}

func (s *memStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func shape(id, typ string, z float64) models.ShapeRecord {
	return models.ShapeRecord{ID: id, Type: typ, ZIndex: z}
}
