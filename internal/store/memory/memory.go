package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/google/uuid"

	"giftregistry/internal/core"
	"giftregistry/internal/store"
)

// Store keeps the registry in process memory. Records are returned in
// insertion order.
type Store struct {
	mu     sync.RWMutex
	order  []string
	items  map[string]core.GiftRecord
	events store.Broadcaster
}

var _ store.Store = (*Store)(nil)

// New builds a store seeded with records. Seeds without an id get one.
func New(seed []core.GiftRecord) *Store {
	s := &Store{items: make(map[string]core.GiftRecord, len(seed))}
	for _, rec := range seed {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if _, dup := s.items[rec.ID]; dup {
			continue
		}
		s.order = append(s.order, rec.ID)
		s.items[rec.ID] = core.NormalizeRecord(rec)
	}
	return s
}

// NewFromFile seeds the store from a JSON array of gift records. A missing
// file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	if path == "" {
		return New(nil), nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed []core.GiftRecord
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return New(seed), nil
}

func (s *Store) ListGifts(_ context.Context) ([]core.GiftRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.GiftRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

func (s *Store) GetGift(_ context.Context, id string) (core.GiftRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	if !ok {
		return core.GiftRecord{}, store.ErrNotFound
	}
	return rec.Clone(), nil
}

// CreateGift stores rec under a fresh id.
func (s *Store) CreateGift(_ context.Context, rec core.GiftRecord) (string, error) {
	rec = core.NormalizeRecord(rec.Clone())
	rec.ID = uuid.NewString()
	s.mu.Lock()
	s.order = append(s.order, rec.ID)
	s.items[rec.ID] = rec
	s.mu.Unlock()
	s.events.Notify()
	return rec.ID, nil
}

func (s *Store) UpdateGift(_ context.Context, id string, patch core.GiftPatch) error {
	s.mu.Lock()
	rec, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.items[id] = core.NormalizeRecord(patch.Apply(rec))
	s.mu.Unlock()
	s.events.Notify()
	return nil
}

func (s *Store) AppendContribution(_ context.Context, id string, c core.Contribution) (core.GiftRecord, error) {
	s.mu.Lock()
	rec, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return core.GiftRecord{}, store.ErrNotFound
	}
	rec = rec.Clone()
	rec.Contributions = append(rec.Contributions, c)
	rec = core.NormalizeRecord(rec)
	s.items[id] = rec
	s.mu.Unlock()
	s.events.Notify()
	return rec.Clone(), nil
}

func (s *Store) DeleteGift(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.events.Notify()
	return nil
}

// Subscribe delivers the registry now and after every mutation.
func (s *Store) Subscribe(ctx context.Context, onSnapshot func([]core.GiftRecord), onError func(error)) error {
	return s.events.Watch(ctx, s.ListGifts, onSnapshot, onError)
}

func (s *Store) Close() error { return nil }
