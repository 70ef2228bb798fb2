package integration

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
	rows   map[uint]*Integration
	nextID uint
	mutex  sync.RWMutex
}

// NewInMemoryStore creates a new in-memory integration store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows:   make(map[uint]*Integration),
		nextID: 1,
	}
}

// FindByExternal retrieves the integration row for (platform, external_id)
func (s *InMemoryStore) FindByExternal(_ context.Context, platform, externalID string) (*Integration, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, row := range s.rows {
		if row.Platform == platform && row.ExternalID == externalID {
			copy := *row
			return &copy, nil
		}
	}

	return nil, nil
}

// Upsert creates or updates the row keyed by (member_id, platform, external_id)
func (s *InMemoryStore) Upsert(_ context.Context, in *Integration) error {
	if in.MemberID == 0 || in.Platform == "" || in.ExternalID == "" {
		return fmt.Errorf("member_id, platform, and external_id are required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var existing *Integration
	for _, row := range s.rows {
		if row.MemberID == in.MemberID && row.Platform == in.Platform && row.ExternalID == in.ExternalID {
			existing = row
			break
		}
	}

	if existing == nil {
		in.ID = s.nextID
		in.CreatedAt = time.Now()
		in.UpdatedAt = in.CreatedAt
		s.nextID++

		copy := *in
		s.rows[in.ID] = &copy
	} else {
		existing.ExternalData = in.ExternalData
		existing.ContentHash = in.ContentHash
		existing.Flags = in.Flags
		existing.LastSyncedAt = in.LastSyncedAt
		existing.UpdatedAt = time.Now()
		in.ID = existing.ID
	}

	// A member re-linked under a new external id deactivates the old link
	for _, row := range s.rows {
		if row.MemberID == in.MemberID && row.Platform == in.Platform && row.ExternalID != in.ExternalID {
			row.SetActive(false)
		}
	}

	return nil
}

// Deactivate clears the active flag for (platform, external_id)
func (s *InMemoryStore) Deactivate(_ context.Context, platform, externalID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, row := range s.rows {
		if row.Platform == platform && row.ExternalID == externalID {
			row.SetActive(false)
			row.UpdatedAt = time.Now()
			return nil
		}
	}

	return fmt.Errorf("integration for %s '%s' not found", platform, externalID)
}

// ListLeastRecentlyChecked returns up to limit active integrations, oldest
// check first
func (s *InMemoryStore) ListLeastRecentlyChecked(_ context.Context, platform string, limit int) ([]*Integration, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var rows []*Integration
	for _, row := range s.rows {
		if row.Platform == platform && row.IsActive() {
			copy := *row
			rows = append(rows, &copy)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].LastCheckedAt.Before(rows[j].LastCheckedAt)
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}

	return rows, nil
}

// MarkChecked records when drift detection last verified an integration
func (s *InMemoryStore) MarkChecked(_ context.Context, id uint, checkedAt time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	row, exists := s.rows[id]
	if !exists {
		return fmt.Errorf("integration %d not found", id)
	}

	row.LastCheckedAt = checkedAt
	return nil
}

// Count returns the number of stored rows (test helper)
func (s *InMemoryStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.rows)
}

// Get returns a copy of a row by id (test helper)
func (s *InMemoryStore) Get(id uint) (*Integration, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	row, exists := s.rows[id]
	if !exists {
		return nil, false
	}
	copy := *row
	return &copy, true
}
