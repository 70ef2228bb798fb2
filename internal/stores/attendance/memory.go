package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryStore provides an in-memory implementation of Store for testing
// and for running without MYSQL_DATABASE configured
type InMemoryStore struct {
	events      map[uint]*Event
	attendances map[uint]*Attendance
	nextEventID uint
	nextAttID   uint
	mutex       sync.RWMutex
}

// NewInMemoryStore creates a new in-memory attendance store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:      make(map[uint]*Event),
		attendances: make(map[uint]*Attendance),
		nextEventID: 1,
		nextAttID:   1,
	}
}

// FindOrCreateEvent resolves an event by its external id, creating it when absent
func (s *InMemoryStore) FindOrCreateEvent(_ context.Context, externalID, name string, startsAt time.Time) (*Event, error) {
	if externalID == "" {
		return nil, fmt.Errorf("event external_id cannot be empty")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, ev := range s.events {
		if ev.ExternalID == externalID {
			copy := *ev
			return &copy, nil
		}
	}

	ev := &Event{
		ID:         s.nextEventID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		ExternalID: externalID,
		Name:       name,
		StartsAt:   startsAt,
	}
	s.nextEventID++
	s.events[ev.ID] = ev

	copy := *ev
	return &copy, nil
}

// UpsertAttendance links a member to an event, idempotent on (event, member)
func (s *InMemoryStore) UpsertAttendance(_ context.Context, eventID, memberID uint, externalID string) (*Attendance, error) {
	if eventID == 0 || memberID == 0 {
		return nil, fmt.Errorf("event_id and member_id are required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, att := range s.attendances {
		if att.EventID == eventID && att.MemberID == memberID {
			if externalID != "" {
				att.ExternalID = externalID
			}
			copy := *att
			return &copy, nil
		}
	}

	att := &Attendance{
		ID:         s.nextAttID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		EventID:    eventID,
		MemberID:   memberID,
		ExternalID: externalID,
	}
	s.nextAttID++
	s.attendances[att.ID] = att

	copy := *att
	return &copy, nil
}

// MarkCheckedIn flags a member as checked in to an event
func (s *InMemoryStore) MarkCheckedIn(_ context.Context, eventID, memberID uint) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, att := range s.attendances {
		if att.EventID == eventID && att.MemberID == memberID {
			att.CheckedIn = true
			return nil
		}
	}

	return fmt.Errorf("attendance for event %d member %d not found", eventID, memberID)
}

// AttendanceCount returns the number of attendance rows (test helper)
func (s *InMemoryStore) AttendanceCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.attendances)
}

// EventCount returns the number of event rows (test helper)
func (s *InMemoryStore) EventCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.events)
}
