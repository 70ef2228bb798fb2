package member

import (
	"time"

	"gorm.io/gorm"
)

// Flag bits for Member.Flags
const (
	FlagActive uint = 1 << 0
)

// Member is the canonical local representation of a person, independent of
// any external platform. Members are never deleted by the sync engine;
// removal signals only deactivate the platform link.
type Member struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`

	FirstName string `json:"first_name" gorm:"column:first_name;size:255"`
	LastName  string `json:"last_name" gorm:"column:last_name;size:255"`
	Email     string `json:"email" gorm:"column:email;uniqueIndex;not null;size:255"`
	Flags     uint   `json:"flags" gorm:"column:flags;default:1"`

	// Profile holds arbitrary locally-curated extension fields as JSON
	Profile string `json:"profile,omitempty" gorm:"column:profile;type:json"`
}

// TableName sets the table name for GORM
func (Member) TableName() string {
	return "members"
}

// IsActive reports whether the active flag bit is set
func (m *Member) IsActive() bool {
	return m.Flags&FlagActive != 0
}

// SetActive sets or clears the active flag bit
func (m *Member) SetActive(active bool) {
	if active {
		m.Flags |= FlagActive
	} else {
		m.Flags &^= FlagActive
	}
}
