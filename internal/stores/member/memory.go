package member

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryStore provides an in-memory implementation of Store for testing
// and for running without MYSQL_DATABASE configured
type InMemoryStore struct {
	members map[uint]*Member
	nextID  uint
	mutex   sync.RWMutex
}

// NewInMemoryStore creates a new in-memory member store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		members: make(map[uint]*Member),
		nextID:  1,
	}
}

// FindByID retrieves a member by primary key
func (s *InMemoryStore) FindByID(_ context.Context, id uint) (*Member, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	m, exists := s.members[id]
	if !exists {
		return nil, nil
	}

	copy := *m
	return &copy, nil
}

// FindByEmail retrieves a member by email address
func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*Member, error) {
	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, m := range s.members {
		if m.Email == email {
			copy := *m
			return &copy, nil
		}
	}

	return nil, nil
}

// Create persists a new member
func (s *InMemoryStore) Create(_ context.Context, m *Member) error {
	if m.Email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, existing := range s.members {
		if existing.Email == m.Email {
			return fmt.Errorf("member with email '%s' already exists", m.Email)
		}
	}

	m.ID = s.nextID
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	s.nextID++

	copy := *m
	s.members[m.ID] = &copy
	return nil
}

// Update persists changes to an existing member
func (s *InMemoryStore) Update(_ context.Context, m *Member) error {
	if m.ID == 0 {
		return fmt.Errorf("member id cannot be zero")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.members[m.ID]; !exists {
		return fmt.Errorf("member %d not found", m.ID)
	}

	m.UpdatedAt = time.Now()
	copy := *m
	s.members[m.ID] = &copy
	return nil
}

// Count returns the number of stored members (test helper)
func (s *InMemoryStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.members)
}
