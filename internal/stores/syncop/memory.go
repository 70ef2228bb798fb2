package syncop

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryStore provides an in-memory implementation of Store for testing
// and for running without MYSQL_DATABASE configured
type InMemoryStore struct {
	ops    map[uint]*SyncOperation
	nextID uint
	mutex  sync.RWMutex
}

// NewInMemoryStore creates a new in-memory sync operation store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		ops:    make(map[uint]*SyncOperation),
		nextID: 1,
	}
}

// Create persists a pending operation before any sync work happens
func (s *InMemoryStore) Create(_ context.Context, platform, kind, eventType, externalID string, payload []byte) (*SyncOperation, error) {
	if platform == "" || kind == "" {
		return nil, fmt.Errorf("platform and kind are required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	op := &SyncOperation{
		ID:         s.nextID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		Platform:   platform,
		Kind:       kind,
		EventType:  eventType,
		ExternalID: externalID,
		Status:     StatusPending,
		Payload:    string(payload),
	}
	s.nextID++

	copy := *op
	s.ops[op.ID] = &copy
	return op, nil
}

// Complete moves a pending operation to a terminal status
func (s *InMemoryStore) Complete(_ context.Context, id uint, status, message string, memberID *uint) error {
	if status != StatusSuccess && status != StatusFailed {
		return fmt.Errorf("invalid terminal status '%s'", status)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	op, exists := s.ops[id]
	if !exists {
		return fmt.Errorf("sync operation %d not found", id)
	}
	if op.Status != StatusPending {
		return fmt.Errorf("sync operation %d is not pending", id)
	}

	now := time.Now()
	op.Status = status
	op.ErrorMessage = message
	op.ProcessedAt = &now
	op.UpdatedAt = now
	if memberID != nil {
		id := *memberID
		op.MemberID = &id
	}

	return nil
}

// List queries the audit trail by platform, status, and time window
func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*SyncOperation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var ops []*SyncOperation
	for _, op := range s.ops {
		if filter.Platform != "" && op.Platform != filter.Platform {
			continue
		}
		if filter.Status != "" && op.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && op.CreatedAt.Before(filter.Since) {
			continue
		}

		copy := *op
		ops = append(ops, &copy)
	}

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].CreatedAt.After(ops[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(ops) > limit {
		ops = ops[:limit]
	}

	return ops, nil
}

// FindStalePending returns operations still pending past the staleness threshold
func (s *InMemoryStore) FindStalePending(_ context.Context, olderThan time.Duration) ([]*SyncOperation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cutoff := time.Now().Add(-olderThan)

	var ops []*SyncOperation
	for _, op := range s.ops {
		if op.Status == StatusPending && op.CreatedAt.Before(cutoff) {
			copy := *op
			ops = append(ops, &copy)
		}
	}

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	return ops, nil
}

// Count returns the number of stored operations (test helper)
func (s *InMemoryStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.ops)
}

// Get returns a copy of an operation by id (test helper)
func (s *InMemoryStore) Get(id uint) (*SyncOperation, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	op, exists := s.ops[id]
	if !exists {
		return nil, false
	}
	copy := *op
	return &copy, true
}
