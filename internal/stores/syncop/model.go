package syncop

import (
	"time"
)

// Status values for a sync operation. Transitions only pending -> success or
// pending -> failed; operations are never re-opened and never deleted.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Kind values describe what triggered a sync operation
const (
	KindWebhook  = "webhook"
	KindBulkSync = "bulk_sync"
	KindManual   = "manual"
)

// SyncOperation is one durably-recorded attempt to synchronize one unit of
// external data. The row is persisted with status pending before any work
// begins, so a crash mid-sync leaves a visible stuck record.
type SyncOperation struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	Platform   string `json:"platform" gorm:"column:platform;not null;size:32;index"`
	Kind       string `json:"kind" gorm:"column:kind;not null;size:16"`
	EventType  string `json:"event_type,omitempty" gorm:"column:event_type;size:64"`
	ExternalID string `json:"external_id,omitempty" gorm:"column:external_id;size:255"`
	MemberID   *uint  `json:"member_id,omitempty" gorm:"column:member_id"`

	Status       string     `json:"status" gorm:"column:status;not null;size:16;index"`
	Payload      string     `json:"payload,omitempty" gorm:"column:payload;type:json"`
	ErrorMessage string     `json:"error_message,omitempty" gorm:"column:error_message;size:1024"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty" gorm:"column:processed_at"`
}

// TableName sets the table name for GORM
func (SyncOperation) TableName() string {
	return "sync_operations"
}

// IsTerminal reports whether the operation has reached a final status
func (o *SyncOperation) IsTerminal() bool {
	return o.Status == StatusSuccess || o.Status == StatusFailed
}
