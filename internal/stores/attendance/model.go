package attendance

import (
	"time"
)

// Event is a club event mirrored from the ticketing platform
type Event struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	ExternalID string    `json:"external_id" gorm:"column:external_id;uniqueIndex;not null;size:255"`
	Name       string    `json:"name" gorm:"column:name;size:255"`
	StartsAt   time.Time `json:"starts_at" gorm:"column:starts_at"`
}

// TableName sets the table name for GORM
func (Event) TableName() string {
	return "events"
}

// Attendance links a member to an event, keyed uniquely on the pair so
// redelivered order webhooks upsert instead of duplicating
type Attendance struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	EventID  uint `json:"event_id" gorm:"column:event_id;not null;uniqueIndex:idx_event_member"`
	MemberID uint `json:"member_id" gorm:"column:member_id;not null;uniqueIndex:idx_event_member"`

	// ExternalID is the attendee id on the ticketing platform
	ExternalID string `json:"external_id" gorm:"column:external_id;size:255"`
	CheckedIn  bool   `json:"checked_in" gorm:"column:checked_in;default:false"`
}

// TableName sets the table name for GORM
func (Attendance) TableName() string {
	return "attendances"
}
