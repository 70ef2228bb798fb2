package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store defines event/attendance persistence as consumed by the ticketing
// adapter
type Store interface {
	FindOrCreateEvent(ctx context.Context, externalID, name string, startsAt time.Time) (*Event, error)
	UpsertAttendance(ctx context.Context, eventID, memberID uint, externalID string) (*Attendance, error)
	MarkCheckedIn(ctx context.Context, eventID, memberID uint) error
}

// MySqlStore handles event and attendance persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore creates an attendance store on an open GORM connection
func NewMySqlStore(db *gorm.DB) (*MySqlStore, error) {
	if err := db.AutoMigrate(&Event{}, &Attendance{}); err != nil {
		return nil, fmt.Errorf("failed to migrate events/attendances tables: %w", err)
	}

	return &MySqlStore{db: db}, nil
}

// FindOrCreateEvent resolves an event by its external id, creating it when absent
func (s *MySqlStore) FindOrCreateEvent(ctx context.Context, externalID, name string, startsAt time.Time) (*Event, error) {
	if externalID == "" {
		return nil, fmt.Errorf("event external_id cannot be empty")
	}

	var ev Event
	result := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&ev)
	if result.Error == nil {
		return &ev, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find event: %w", result.Error)
	}

	ev = Event{ExternalID: externalID, Name: name, StartsAt: startsAt}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return &ev, nil
}

// UpsertAttendance links a member to an event, idempotent on (event, member)
func (s *MySqlStore) UpsertAttendance(ctx context.Context, eventID, memberID uint, externalID string) (*Attendance, error) {
	if eventID == 0 || memberID == 0 {
		return nil, fmt.Errorf("event_id and member_id are required")
	}

	var att Attendance
	result := s.db.WithContext(ctx).
		Where("event_id = ? AND member_id = ?", eventID, memberID).
		First(&att)
	if result.Error == nil {
		if externalID != "" && att.ExternalID != externalID {
			if err := s.db.WithContext(ctx).Model(&att).Update("external_id", externalID).Error; err != nil {
				return nil, fmt.Errorf("failed to update attendance: %w", err)
			}
		}
		return &att, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find attendance: %w", result.Error)
	}

	att = Attendance{EventID: eventID, MemberID: memberID, ExternalID: externalID}
	if err := s.db.WithContext(ctx).Create(&att).Error; err != nil {
		return nil, fmt.Errorf("failed to create attendance: %w", err)
	}

	return &att, nil
}

// MarkCheckedIn flags a member as checked in to an event
func (s *MySqlStore) MarkCheckedIn(ctx context.Context, eventID, memberID uint) error {
	result := s.db.WithContext(ctx).Model(&Attendance{}).
		Where("event_id = ? AND member_id = ?", eventID, memberID).
		Update("checked_in", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark attendance checked in: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("attendance for event %d member %d not found", eventID, memberID)
	}

	return nil
}
