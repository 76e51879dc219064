package store

import (
	"errors"
	"sync"

	"github.com/AngelCh415/disparos-etl/internal/models"
)

var ErrNoDataset = errors.New("no dataset loaded")

// MemoryStore holds the normalized dataset of the current session. A new
// upload replaces it whole; readers always see a complete dataset.
type MemoryStore struct {
	mu  sync.RWMutex
	cur *models.Dataset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Replace(ds models.Dataset) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		previous = s.cur.ID
	}
	s.cur = &ds
	return previous
}

// Current returns the loaded dataset. Its slices are shared and must be
// treated as read-only.
func (s *MemoryStore) Current() (models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return models.Dataset{}, ErrNoDataset
	}
	return *s.cur, nil
}

func (s *MemoryStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur != nil
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = nil
}
