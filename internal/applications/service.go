package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type applicationsRepository interface {
	Create(ctx context.Context, app *models.Application) (*models.Application, error)
	FindByAppKey(ctx context.Context, appKey string) (*models.Application, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	List(ctx context.Context) ([]models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service exposes application registry and credential validation semantics.
type Service interface {
	ValidateCredentials(ctx context.Context, appKey, appSecret string) (uuid.UUID, string, error)
	CreateApplication(ctx context.Context, input CreateApplicationInput) (*CreatedApplication, error)
	ListApplications(ctx context.Context) ([]models.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	UpdateApplication(ctx context.Context, id uuid.UUID, input UpdateApplicationInput) (*models.Application, error)
	DeleteApplication(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo applicationsRepository
}

// CreateApplicationInput holds the metadata required to register an application.
type CreateApplicationInput struct {
	Name        string
	Description *string
}

// CreatedApplication pairs the stored row with the secret. The secret is
// returned exactly once, at creation.
type CreatedApplication struct {
	Application *models.Application
	AppSecret   string
}

// UpdateApplicationInput carries partial updates; nil fields are left untouched.
type UpdateApplicationInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// NewService builds an application service backed by the provided repository.
func NewService(repo applicationsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("application repository required")
	}
	return &service{repo: repo}, nil
}

// ValidateCredentials resolves the key to an application and compares the
// secret in constant time. Unknown keys, inactive applications, and secret
// mismatches are indistinguishable to the caller.
func (s *service) ValidateCredentials(ctx context.Context, appKey, appSecret string) (uuid.UUID, string, error) {
	if appKey == "" || appSecret == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing application credentials")
	}

	app, err := s.repo.FindByAppKey(ctx, appKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid application credentials")
		}
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup application")
	}

	if !app.IsActive || !security.SecureCompare(app.AppSecret, appSecret) {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid application credentials")
	}
	return app.ID, app.Name, nil
}

func (s *service) CreateApplication(ctx context.Context, input CreateApplicationInput) (*CreatedApplication, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	appKey, err := security.GenerateAppKey()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate app key")
	}
	appSecret, err := security.GenerateAppSecret()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate app secret")
	}

	app := &models.Application{
		Name:        name,
		Description: input.Description,
		AppKey:      appKey,
		AppSecret:   appSecret,
		IsActive:    true,
	}
	created, err := s.repo.Create(ctx, app)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create application")
	}
	return &CreatedApplication{Application: created, AppSecret: appSecret}, nil
}

func (s *service) ListApplications(ctx context.Context) ([]models.Application, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applications")
	}
	return rows, nil
}

func (s *service) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application id is required")
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup application")
	}
	return app, nil
}

func (s *service) UpdateApplication(ctx context.Context, id uuid.UUID, input UpdateApplicationInput) (*models.Application, error) {
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		app.Name = name
	}
	if input.Description != nil {
		app.Description = input.Description
	}
	if input.IsActive != nil {
		app.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update application")
	}
	return app, nil
}

func (s *service) DeleteApplication(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetApplication(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete application")
	}
	return nil
}
