package integration

import (
	"time"
)

// Flag bits for Integration.Flags. Kept bitfield-compatible so future states
// (e.g. pending-review) can be added without a schema change.
const (
	FlagActive uint = 1 << 0
)

// Integration is the durable link between a canonical member and one
// external platform's record of them. Exactly one active row exists per
// (member, platform); disconnecting a platform marks the row inactive, it is
// never deleted.
type Integration struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	MemberID   uint   `json:"member_id" gorm:"column:member_id;not null;uniqueIndex:idx_member_platform_external;index"`
	Platform   string `json:"platform" gorm:"column:platform;not null;size:32;uniqueIndex:idx_member_platform_external;index"`
	ExternalID string `json:"external_id" gorm:"column:external_id;not null;size:255;uniqueIndex:idx_member_platform_external"`

	// ExternalData holds the raw normalized payload from the last sync
	ExternalData string `json:"external_data,omitempty" gorm:"column:external_data;type:json"`

	// ContentHash is the canonical hash of ExternalData, compared by the
	// drift detector against a fresh re-fetch
	ContentHash string `json:"content_hash" gorm:"column:content_hash;size:64;not null"`

	Flags         uint      `json:"flags" gorm:"column:flags;default:1"`
	LastSyncedAt  time.Time `json:"last_synced_at" gorm:"column:last_synced_at"`
	LastCheckedAt time.Time `json:"last_checked_at" gorm:"column:last_checked_at;index"`
}

// TableName sets the table name for GORM
func (Integration) TableName() string {
	return "external_integrations"
}

// IsActive reports whether the active flag bit is set
func (i *Integration) IsActive() bool {
	return i.Flags&FlagActive != 0
}

// SetActive sets or clears the active flag bit
func (i *Integration) SetActive(active bool) {
	if active {
		i.Flags |= FlagActive
	} else {
		i.Flags &^= FlagActive
	}
}
