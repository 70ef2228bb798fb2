package syncop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Filter narrows audit-trail queries
type Filter struct {
	Platform string
	Status   string
	Since    time.Time
	Limit    int
}

// Store is the sync operation tracker: a durable log of every sync attempt.
// Create persists the pending record before work begins; Complete moves it
// to a terminal status exactly once.
type Store interface {
	Create(ctx context.Context, platform, kind, eventType, externalID string, payload []byte) (*SyncOperation, error)
	Complete(ctx context.Context, id uint, status, message string, memberID *uint) error
	List(ctx context.Context, filter Filter) ([]*SyncOperation, error)
	FindStalePending(ctx context.Context, olderThan time.Duration) ([]*SyncOperation, error)
}

// MySqlStore handles sync operation persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore creates a sync operation store on an open GORM connection
func NewMySqlStore(db *gorm.DB) (*MySqlStore, error) {
	if err := db.AutoMigrate(&SyncOperation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sync_operations table: %w", err)
	}

	return &MySqlStore{db: db}, nil
}

// Create persists a pending operation before any sync work happens
func (s *MySqlStore) Create(ctx context.Context, platform, kind, eventType, externalID string, payload []byte) (*SyncOperation, error) {
	if platform == "" || kind == "" {
		return nil, fmt.Errorf("platform and kind are required")
	}

	op := &SyncOperation{
		Platform:   platform,
		Kind:       kind,
		EventType:  eventType,
		ExternalID: externalID,
		Status:     StatusPending,
		Payload:    string(payload),
	}

	if err := s.db.WithContext(ctx).Create(op).Error; err != nil {
		return nil, fmt.Errorf("failed to create sync operation: %w", err)
	}

	return op, nil
}

// Complete moves a pending operation to a terminal status. Terminal
// operations are never re-opened, so the update is guarded on status.
func (s *MySqlStore) Complete(ctx context.Context, id uint, status, message string, memberID *uint) error {
	if status != StatusSuccess && status != StatusFailed {
		return fmt.Errorf("invalid terminal status '%s'", status)
	}

	now := time.Now()
	updates := map[string]any{
		"status":        status,
		"error_message": message,
		"processed_at":  &now,
	}
	if memberID != nil {
		updates["member_id"] = *memberID
	}

	result := s.db.WithContext(ctx).Model(&SyncOperation{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to complete sync operation %d: %w", id, result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("sync operation %d is not pending", id)
	}

	return nil
}

// List queries the audit trail by platform, status, and time window
func (s *MySqlStore) List(ctx context.Context, filter Filter) ([]*SyncOperation, error) {
	query := s.db.WithContext(ctx).Model(&SyncOperation{})

	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var ops []*SyncOperation
	if err := query.Order("created_at DESC").Limit(limit).Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync operations: %w", err)
	}

	return ops, nil
}

// FindStalePending returns operations still pending past the staleness
// threshold, candidates for reprocessing after a crash or store outage
func (s *MySqlStore) FindStalePending(ctx context.Context, olderThan time.Duration) ([]*SyncOperation, error) {
	cutoff := time.Now().Add(-olderThan)

	var ops []*SyncOperation
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("created_at ASC").
		Find(&ops).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find stale pending operations: %w", err)
	}

	return ops, nil
}
