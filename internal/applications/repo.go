package applications

import (
	"context"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes application persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an application repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new application row.
func (r *Repository) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		return nil, err
	}
	return app, nil
}

// FindByAppKey returns the application owning the given key.
func (r *Repository) FindByAppKey(ctx context.Context, appKey string) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Where("app_key = ?", appKey).First(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByID returns the application with the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns all applications, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Application, error) {
	var rows []models.Application
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists mutable application fields.
func (r *Repository) Update(ctx context.Context, app *models.Application) error {
	return r.db.WithContext(ctx).Save(app).Error
}

// Delete removes the application row. Licenses scoped to it cascade at the
// database level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Application{}).Error
}
