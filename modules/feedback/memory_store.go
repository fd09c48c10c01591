package feedback

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Feedback
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Feedback)}
}

func (s *MemoryStore) Create(_ context.Context, fb *Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fb
	s.records[fb.ID] = &cp
	return nil
}

func (s *MemoryStore) GetByInterview(_ context.Context, userID, interviewID string) (*Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fb := range s.records {
		if fb.UserID == userID && fb.InterviewID == interviewID {
			cp := *fb
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int64) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Feedback
	for _, fb := range s.records {
		if fb.UserID == userID {
			out = append(out, *fb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
