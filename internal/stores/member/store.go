package member

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Store defines member persistence as consumed by the sync engine
type Store interface {
	FindByID(ctx context.Context, id uint) (*Member, error)
	FindByEmail(ctx context.Context, email string) (*Member, error)
	Create(ctx context.Context, m *Member) error
	Update(ctx context.Context, m *Member) error
}

// MySqlStore handles member persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore creates a member store on an open GORM connection
func NewMySqlStore(db *gorm.DB) (*MySqlStore, error) {
	if err := db.AutoMigrate(&Member{}); err != nil {
		return nil, fmt.Errorf("failed to migrate members table: %w", err)
	}

	return &MySqlStore{db: db}, nil
}

// FindByID retrieves a member by primary key
func (s *MySqlStore) FindByID(ctx context.Context, id uint) (*Member, error) {
	var m Member
	result := s.db.WithContext(ctx).First(&m, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find member %d: %w", id, result.Error)
	}

	return &m, nil
}

// FindByEmail retrieves a member by email address
// Returns nil without error when no member matches
func (s *MySqlStore) FindByEmail(ctx context.Context, email string) (*Member, error) {
	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}

	var m Member
	result := s.db.WithContext(ctx).Where("email = ?", email).First(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find member by email: %w", result.Error)
	}

	return &m, nil
}

// Create persists a new member
func (s *MySqlStore) Create(ctx context.Context, m *Member) error {
	if m.Email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}

	return nil
}

// Update persists changes to an existing member
func (s *MySqlStore) Update(ctx context.Context, m *Member) error {
	if m.ID == 0 {
		return fmt.Errorf("member id cannot be zero")
	}

	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("failed to update member %d: %w", m.ID, err)
	}

	return nil
}
