package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	assessments map[int64]*Assessment
	nextID      int64
	mu          sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: make(map[int64]*Assessment),
		nextID:      1,
	}
}

func (s *MemoryStore) CreateAssessment(_ context.Context, a Assessment) (*Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	ref, err := Reference(id)
	if err != nil {
		return nil, err
	}
	s.nextID++

	now := time.Now()
	a.ID = id
	a.Reference = ref
	if a.Status == "" {
		a.Status = StatusDraft
	}
	if a.Data == nil {
		a.Data = map[string]Section{}
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	stored := a.clone()
	s.assessments[id] = stored
	return stored.clone(), nil
}

func (s *MemoryStore) GetAssessment(_ context.Context, id int64) (*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assessments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return a.clone(), nil
}

func (s *MemoryStore) SaveSection(_ context.Context, id int64, outcomeKey string, section Section, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	a.Data[outcomeKey] = section.clone()
	a.UpdatedAt = time.Now()
	a.LastUpdatedBy = user
	slog.Debug("section stored", "assessment_id", id, "outcome", outcomeKey)
	return nil
}
