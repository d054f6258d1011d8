package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/licensegate-backend/pkg/auth"
	"github.com/angelmondragon/licensegate-backend/pkg/config"
	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
	"github.com/angelmondragon/licensegate-backend/pkg/outbox"
	"github.com/angelmondragon/licensegate-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/licensegate-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegisterRequest contains the payload required for account sign-up.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"required,max=255"`
}

// LoginRequest contains the payload for credential sign-in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult pairs the minted access token with the authenticated profile.
type LoginResult struct {
	Token   string
	Profile *models.Profile
}

type profilesRepository interface {
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes account registration and sign-in.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*models.Profile, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
}

// ServiceParams packages the dependencies for the account flows. RepoFactory
// builds the tx-scoped repository for registration; it defaults to
// NewRepository.
type ServiceParams struct {
	Repo              profilesRepository
	RepoFactory       func(tx *gorm.DB) profilesRepository
	TransactionRunner txRunner
	Outbox            outboxEmitter
	PasswordConfig    config.PasswordConfig
	JWTConfig         config.JWTConfig
	Logger            *logger.Logger
}

type service struct {
	repo        profilesRepository
	repoFactory func(tx *gorm.DB) profilesRepository
	tx          txRunner
	outbox      outboxEmitter
	passwordCfg config.PasswordConfig
	jwtCfg      config.JWTConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds an account service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	factory := params.RepoFactory
	if factory == nil {
		factory = func(tx *gorm.DB) profilesRepository { return NewRepository(tx) }
	}
	return &service{
		repo:        params.Repo,
		repoFactory: factory,
		tx:          params.TransactionRunner,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		jwtCfg:      params.JWTConfig,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

// Register creates the profile and emits the account-created event in the
// same transaction, so the linker is guaranteed to hear about every sign-up.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*models.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full_name is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var profile *models.Profile
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoFactory(tx)

		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check profile email")
		}

		created, err := repo.Create(ctx, &models.Profile{
			Email:        email,
			PasswordHash: passwordHash,
			FullName:     fullName,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create profile")
		}
		profile = created

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAccountCreated,
			AggregateType: enums.AggregateProfile,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: created.ID},
			Data: payloads.AccountCreatedEvent{
				ProfileID: created.ID,
				Email:     created.Email,
				FullName:  created.FullName,
				CreatedAt: created.CreatedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Login verifies credentials and mints an access token. The last-login touch
// is best-effort.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	profile, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup profile")
	}

	ok, err := security.VerifyPassword(req.Password, profile.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
	}

	now := s.now()
	token, err := auth.MintAccessToken(s.jwtCfg, now, auth.AccessTokenPayload{
		UserID:  profile.ID,
		Email:   profile.Email,
		IsAdmin: profile.IsAdmin,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	if err := s.repo.TouchLastLogin(ctx, profile.ID, now); err != nil && s.logg != nil {
		s.logg.Error(ctx, "touch last_login_at", err)
	}

	return &LoginResult{Token: token, Profile: profile}, nil
}
