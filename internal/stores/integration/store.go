package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store defines external-integration persistence as consumed by the
// platform adapters, the drift detector, and the admin UI
type Store interface {
	FindByExternal(ctx context.Context, platform, externalID string) (*Integration, error)
	Upsert(ctx context.Context, in *Integration) error
	Deactivate(ctx context.Context, platform, externalID string) error
	ListLeastRecentlyChecked(ctx context.Context, platform string, limit int) ([]*Integration, error)
	MarkChecked(ctx context.Context, id uint, checkedAt time.Time) error
}

// MySqlStore handles integration persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore creates an integration store on an open GORM connection
func NewMySqlStore(db *gorm.DB) (*MySqlStore, error) {
	if err := db.AutoMigrate(&Integration{}); err != nil {
		return nil, fmt.Errorf("failed to migrate external_integrations table: %w", err)
	}

	return &MySqlStore{db: db}, nil
}

// FindByExternal retrieves the integration row for (platform, external_id),
// active or not. Returns nil without error when none exists.
func (s *MySqlStore) FindByExternal(ctx context.Context, platform, externalID string) (*Integration, error) {
	var in Integration
	result := s.db.WithContext(ctx).
		Where("platform = ? AND external_id = ?", platform, externalID).
		First(&in)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find integration: %w", result.Error)
	}

	return &in, nil
}

// Upsert creates or updates the row keyed by (member_id, platform,
// external_id) and reasserts the one-active-row-per-(member, platform)
// invariant by deactivating any sibling rows with a different external id.
func (s *MySqlStore) Upsert(ctx context.Context, in *Integration) error {
	if in.MemberID == 0 || in.Platform == "" || in.ExternalID == "" {
		return fmt.Errorf("member_id, platform, and external_id are required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Integration
		result := tx.Where("member_id = ? AND platform = ? AND external_id = ?",
			in.MemberID, in.Platform, in.ExternalID).First(&existing)

		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check existing integration: %w", result.Error)
			}
			if err := tx.Create(in).Error; err != nil {
				return fmt.Errorf("failed to create integration: %w", err)
			}
		} else {
			updates := map[string]any{
				"external_data":  in.ExternalData,
				"content_hash":   in.ContentHash,
				"flags":          in.Flags,
				"last_synced_at": in.LastSyncedAt,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update integration: %w", err)
			}
			in.ID = existing.ID
		}

		// A member re-linked under a new external id deactivates the old link
		if err := tx.Model(&Integration{}).
			Where("member_id = ? AND platform = ? AND external_id <> ?",
				in.MemberID, in.Platform, in.ExternalID).
			Update("flags", gorm.Expr("flags & ?", ^FlagActive)).Error; err != nil {
			return fmt.Errorf("failed to deactivate sibling integrations: %w", err)
		}

		return nil
	})
}

// Deactivate clears the active flag for (platform, external_id)
func (s *MySqlStore) Deactivate(ctx context.Context, platform, externalID string) error {
	result := s.db.WithContext(ctx).Model(&Integration{}).
		Where("platform = ? AND external_id = ?", platform, externalID).
		Update("flags", gorm.Expr("flags & ?", ^FlagActive))
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate integration: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("integration for %s '%s' not found", platform, externalID)
	}

	return nil
}

// ListLeastRecentlyChecked returns up to limit active integrations for a
// platform, oldest check first, so drift sampling eventually covers the
// whole set
func (s *MySqlStore) ListLeastRecentlyChecked(ctx context.Context, platform string, limit int) ([]*Integration, error) {
	var rows []*Integration
	err := s.db.WithContext(ctx).
		Where("platform = ? AND flags & ? <> 0", platform, FlagActive).
		Order("last_checked_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations for drift sampling: %w", err)
	}

	return rows, nil
}

// MarkChecked records when drift detection last verified an integration
func (s *MySqlStore) MarkChecked(ctx context.Context, id uint, checkedAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&Integration{}).
		Where("id = ?", id).
		Update("last_checked_at", checkedAt).Error
	if err != nil {
		return fmt.Errorf("failed to mark integration %d checked: %w", id, err)
	}

	return nil
}
