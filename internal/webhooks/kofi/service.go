package kofiwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/licensegate-backend/internal/licenses"
	"github.com/angelmondragon/licensegate-backend/internal/tiers"
	pkgdb "github.com/angelmondragon/licensegate-backend/pkg/db"
	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
	"github.com/angelmondragon/licensegate-backend/pkg/metrics"
	"github.com/angelmondragon/licensegate-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ordersRepository interface {
	FindByMessageID(ctx context.Context, messageID string) (*models.KofiOrder, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.KofiOrder, error)
	CreateTx(tx *gorm.DB, order *models.KofiOrder) error
	MarkProcessedTx(tx *gorm.DB, id, userID uuid.UUID) error
}

type tierResolver interface {
	ResolveTier(ctx context.Context, input tiers.ResolveInput) (*tiers.ResolvedTier, error)
}

type licensesRepository interface {
	CreateTx(tx *gorm.DB, license *models.License) (*models.License, error)
	IncrementActivationsTx(tx *gorm.DB, id uuid.UUID) (bool, error)
}

type entitlementsRepository interface {
	CreateTx(tx *gorm.DB, row *models.UserLicense) error
}

type profilesRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dedupStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// ServiceParams wires the webhook ingestion pipeline.
type ServiceParams struct {
	OrdersRepo        ordersRepository
	TierResolver      tierResolver
	LicensesRepo      licensesRepository
	EntitlementsRepo  entitlementsRepository
	ProfilesRepo      profilesRepository
	TransactionRunner txRunner
	Dedup             dedupStore
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
	VerificationToken string
	DedupTTL          time.Duration
}

// Service ingests Ko-fi payment webhooks: verify, dedup, resolve a tier,
// mint, record, and opportunistically activate.
type Service struct {
	orders            ordersRepository
	tiers             tierResolver
	licenses          licensesRepository
	entitlements      entitlementsRepository
	profiles          profilesRepository
	tx                txRunner
	dedup             dedupStore
	metrics           *metrics.WebhookMetrics
	logg              *logger.Logger
	verificationToken string
	dedupTTL          time.Duration
	now               func() time.Time
}

// Result is the webhook response body. Ko-fi ignores it; it exists for
// operators replaying deliveries by hand.
type Result struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	LicenseKey     *string `json:"license_key,omitempty"`
	LicenseCreated bool    `json:"license_created"`
	UserFound      bool    `json:"user_found"`
	AutoActivated  bool    `json:"auto_activated"`
	Tier           string  `json:"tier,omitempty"`
	DurationDays   *int    `json:"duration_days,omitempty"`
}

const msgAlreadyProcessed = "Order already processed"

// NewService builds the webhook ingestion service.
func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TierResolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tier resolver required")
	}
	if params.LicensesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "licenses repo required")
	}
	if params.EntitlementsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlements repo required")
	}
	if params.ProfilesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profiles repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.VerificationToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "verification token required")
	}
	dedupTTL := params.DedupTTL
	if dedupTTL <= 0 {
		dedupTTL = 30 * 24 * time.Hour
	}
	return &Service{
		orders:            params.OrdersRepo,
		tiers:             params.TierResolver,
		licenses:          params.LicensesRepo,
		entitlements:      params.EntitlementsRepo,
		profiles:          params.ProfilesRepo,
		tx:                params.TransactionRunner,
		dedup:             params.Dedup,
		metrics:           params.Metrics,
		logg:              params.Logger,
		verificationToken: params.VerificationToken,
		dedupTTL:          dedupTTL,
		now:               time.Now,
	}, nil
}

// HandleWebhook runs the full ingestion pipeline for one delivery. Expected
// duplicates return a success result; store failures after the dedup pass
// surface as errors so Ko-fi retries.
func (s *Service) HandleWebhook(ctx context.Context, payload *Payload) (*Result, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveDuration(time.Since(start))
	}()
	s.metrics.IncReceived(payload.Type)

	if !security.SecureCompare(payload.VerificationToken, s.verificationToken) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Invalid verification token")
	}

	amount, err := payload.ParseAmount()
	if err != nil {
		return nil, err
	}

	dedupKey := ""
	if s.dedup != nil {
		dedupKey = s.dedup.IdempotencyKey("kofi", payload.MessageID)
		if stored, getErr := s.dedup.Get(ctx, dedupKey); getErr == nil && stored != "" {
			s.metrics.IncDuplicate("redis")
			return duplicateResult(), nil
		}
		// redis misses and errors both fall through to the DB check
	}

	if _, err := s.orders.FindByMessageID(ctx, payload.MessageID); err == nil {
		s.metrics.IncDuplicate("message_id")
		return duplicateResult(), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check message id")
	}

	if payload.KofiTransactionID != nil && *payload.KofiTransactionID != "" {
		if _, err := s.orders.FindByTransactionID(ctx, *payload.KofiTransactionID); err == nil {
			s.metrics.IncDuplicate("transaction_id")
			return duplicateResult(), nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction id")
		}
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	profile, err := s.profiles.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup profile")
	}

	resolved, err := s.tiers.ResolveTier(ctx, tiers.ResolveInput{
		ProductIdentifier: payload.ProductIdentifier(),
		Amount:            amount,
	})
	if err != nil {
		return nil, err
	}

	order, err := s.buildOrder(payload, email, amount)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		// link the payer at insert time; auto-activation is best effort
		// and must not be the only thing tying the order to the account
		order.UserID = &profile.ID
	}

	var minted *models.License
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if resolved != nil {
			notes := fmt.Sprintf("Ko-fi %s - %s - %s %s - %s",
				payload.Type, payload.FromName, payload.Amount, payload.Currency, resolved.Tier.Name)
			template, mintErr := licenses.NewMintedLicense(licenses.MintInput{
				DurationDays:  resolved.DurationDays,
				ApplicationID: resolved.Tier.ApplicationID,
				Notes:         &notes,
			})
			if mintErr != nil {
				return mintErr
			}
			created, createErr := s.licenses.CreateTx(tx, template)
			if createErr != nil {
				return createErr
			}
			minted = created
			order.LicenseID = &created.ID
		}
		return s.orders.CreateTx(tx, order)
	})
	if err != nil {
		// concurrent delivery lost the insert race; the unique constraint is
		// the ultimate dedup backstop
		if pkgdb.IsUniqueViolation(err, "") {
			s.metrics.IncDuplicate("constraint")
			return duplicateResult(), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	if minted != nil {
		s.metrics.IncMinted()
	} else {
		s.metrics.IncUnmatched()
		if s.logg != nil {
			s.logg.Warn(ctx, "kofi order recorded without license: no matching pricing tier")
		}
	}

	autoActivated := false
	if profile != nil && minted != nil {
		autoActivated = s.autoActivate(ctx, profile, minted, order)
	}

	if s.dedup != nil && dedupKey != "" {
		if _, setErr := s.dedup.SetNX(ctx, dedupKey, "1", s.dedupTTL); setErr != nil && s.logg != nil {
			s.logg.Error(ctx, "persist webhook dedup marker", setErr)
		}
	}

	result := &Result{
		Success:       true,
		Message:       "Order recorded (no matching pricing tier - license not created)",
		UserFound:     profile != nil,
		AutoActivated: autoActivated,
		Tier:          "-",
	}
	if minted != nil {
		result.Message = "Payment processed and license created"
		result.LicenseKey = &minted.LicenseKey
		result.LicenseCreated = true
		result.Tier = resolved.Tier.Name
		result.DurationDays = &resolved.DurationDays
	}
	return result, nil
}

// autoActivate binds the freshly minted license to the payer's existing
// profile. Failures are logged, not surfaced: the order is already recorded
// and the linker path can pick it up later.
func (s *Service) autoActivate(ctx context.Context, profile *models.Profile, minted *models.License, order *models.KofiOrder) bool {
	expiresAt := s.now().AddDate(0, 0, minted.DurationDays)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, incErr := s.licenses.IncrementActivationsTx(tx, minted.ID)
		if incErr != nil {
			return incErr
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeConflict, "activation cap reached")
		}
		if createErr := s.entitlements.CreateTx(tx, &models.UserLicense{
			UserID:    profile.ID,
			LicenseID: minted.ID,
			ExpiresAt: expiresAt,
			IsActive:  true,
		}); createErr != nil {
			return createErr
		}
		return s.orders.MarkProcessedTx(tx, order.ID, profile.ID)
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "auto-activate minted license", err)
		}
		return false
	}
	s.metrics.IncAutoActivated()
	return true
}

func (s *Service) buildOrder(payload *Payload, email string, amount decimal.Decimal) (*models.KofiOrder, error) {
	var shopItems json.RawMessage
	if len(payload.ShopItems) > 0 {
		encoded, err := json.Marshal(payload.ShopItems)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shop items")
		}
		shopItems = encoded
	}
	var shipping json.RawMessage
	if payload.Shipping != nil {
		encoded, err := json.Marshal(payload.Shipping)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shipping")
		}
		shipping = encoded
	}

	var transactionID *string
	if payload.KofiTransactionID != nil && *payload.KofiTransactionID != "" {
		transactionID = payload.KofiTransactionID
	}

	fromName := payload.FromName
	return &models.KofiOrder{
		MessageID:                  payload.MessageID,
		KofiTransactionID:          transactionID,
		Timestamp:                  payload.Timestamp,
		Type:                       enums.KofiPaymentType(payload.Type),
		IsPublic:                   payload.IsPublic,
		FromName:                   sanitizeText(&fromName),
		Message:                    sanitizeText(payload.Message),
		Amount:                     amount,
		URL:                        payload.URL,
		Email:                      email,
		Currency:                   payload.Currency,
		IsSubscriptionPayment:      payload.IsSubscriptionPayment,
		IsFirstSubscriptionPayment: payload.IsFirstSubscriptionPayment,
		ShopItems:                  shopItems,
		TierName:                   payload.TierName,
		Shipping:                   shipping,
		Processed:                  false,
	}, nil
}

func duplicateResult() *Result {
	return &Result{Success: true, Message: msgAlreadyProcessed}
}
