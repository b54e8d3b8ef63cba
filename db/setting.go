package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting is a named blob in the local key/value table. The session is kept here
// under a single key as serialized JSON.
type Setting struct {
	Name      string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// SettingRepository defines decoupled operations for key/value persistence.
type SettingRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// gormSettingRepo is a GORM-backed implementation of SettingRepository.
type gormSettingRepo struct{ db *gorm.DB }

// NewSettingRepository creates a SettingRepository. Accepts *gorm.DB to avoid global access.
func NewSettingRepository(db *gorm.DB) SettingRepository { return &gormSettingRepo{db: db} }

// Get returns the stored value, or nil when the key does not exist.
func (r *gormSettingRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var s Setting
	err := r.db.WithContext(ctx).First(&s, "name = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Value, nil
}

func (r *gormSettingRepo) Put(ctx context.Context, key string, value []byte) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Name: key, Value: value}).Error
}

// Delete removes the key. Deleting a missing key is not an error.
func (r *gormSettingRepo) Delete(ctx context.Context, key string) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Delete(&Setting{}, "name = ?", key).Error
}
