package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Project is a locally cached project summary, used for offline listing and
// client-side filtering.
type Project struct {
	ID                   int    `gorm:"primaryKey" json:"id"`
	Name                 string `gorm:"index" json:"name"`
	ClientName           string `gorm:"index" json:"client_name"`
	Status               string `gorm:"index" json:"status"`
	CompletionPercentage float64
	ReviewPercentage     float64
	TotalDocuments       int
	TotalAdjustments     int
	ReadyForExport       bool
	Data                 string    `json:"data"` // raw JSON as returned by the backend
	SyncedAt             time.Time `json:"synced_at"`
}

// ProjectFilter narrows a cache query. Zero fields match everything.
type ProjectFilter struct {
	Query  string // substring of name or client name, case-insensitive
	Status string
	Ready  *bool
}

// ProjectRepository defines decoupled operations for the project cache.
type ProjectRepository interface {
	Put(ctx context.Context, p Project) error
	GetByID(ctx context.Context, id int) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	Filter(ctx context.Context, f ProjectFilter) ([]Project, error)
	Delete(ctx context.Context, id int) error
	Clear(ctx context.Context) error
	// ReplaceAll swaps the whole cache for projects in one transaction.
	ReplaceAll(ctx context.Context, projects []Project) error
}

// gormProjectRepo is a GORM-backed implementation of ProjectRepository.
type gormProjectRepo struct{ db *gorm.DB }

// NewProjectRepository creates a ProjectRepository. Accepts *gorm.DB to avoid global access.
func NewProjectRepository(db *gorm.DB) ProjectRepository { return &gormProjectRepo{db: db} }

func (r *gormProjectRepo) Put(ctx context.Context, p Project) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	if p.SyncedAt.IsZero() {
		p.SyncedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&p).Error
}

func (r *gormProjectRepo) GetByID(ctx context.Context, id int) (*Project, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var p Project
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve project with ID %d: %w", id, err)
	}
	return &p, nil
}

func (r *gormProjectRepo) List(ctx context.Context) ([]Project, error) {
	return r.Filter(ctx, ProjectFilter{})
}

func (r *gormProjectRepo) Filter(ctx context.Context, f ProjectFilter) ([]Project, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	q := r.db.WithContext(ctx).Model(&Project{})
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(client_name) LIKE ?", like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Ready != nil {
		q = q.Where("ready_for_export = ?", *f.Ready)
	}
	var projects []Project
	if err := q.Order("id").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *gormProjectRepo) Delete(ctx context.Context, id int) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Delete(&Project{}, "id = ?", id).Error
}

func (r *gormProjectRepo) Clear(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&Project{}).Error
}

func (r *gormProjectRepo) ReplaceAll(ctx context.Context, projects []Project) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &gormProjectRepo{db: tx}
		if err := txRepo.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear cached projects: %w", err)
		}
		for _, p := range projects {
			if err := txRepo.Put(ctx, p); err != nil {
				return fmt.Errorf("failed to cache project %d: %w", p.ID, err)
			}
		}
		return nil
	})
}
