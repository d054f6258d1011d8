package linker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
	"github.com/angelmondragon/licensegate-backend/pkg/outbox"
	"github.com/angelmondragon/licensegate-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const linkerConsumerName = "linker"

type ordersRepository interface {
	FindUnprocessedMintedByEmail(ctx context.Context, email string) ([]models.KofiOrder, error)
	MarkProcessedTx(tx *gorm.DB, id, userID uuid.UUID) error
}

type licensesRepository interface {
	IncrementActivationsTx(tx *gorm.DB, id uuid.UUID) (bool, error)
}

type entitlementsRepository interface {
	FindByUserAndLicense(ctx context.Context, userID, licenseID uuid.UUID) (*models.UserLicense, error)
	CreateTx(tx *gorm.DB, row *models.UserLicense) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer claims pending Ko-fi orders for freshly registered profiles. An
// order is claimed at most once: the processed flag, the entitlement unique
// pair, and Redis idempotency all guard the same transition.
type Consumer struct {
	orders       ordersRepository
	licenses     licensesRepository
	entitlements entitlementsRepository
	tx           txRunner
	manager      idempotencyChecker
	logg         *logger.Logger
	now          func() time.Time
}

// ConsumerParams wires the linker consumer.
type ConsumerParams struct {
	OrdersRepo        ordersRepository
	LicensesRepo      licensesRepository
	EntitlementsRepo  entitlementsRepository
	TransactionRunner txRunner
	Idempotency       idempotencyChecker
	Logger            *logger.Logger
}

// NewConsumer builds a new linker consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repo required")
	}
	if params.LicensesRepo == nil {
		return nil, fmt.Errorf("licenses repo required")
	}
	if params.EntitlementsRepo == nil {
		return nil, fmt.Errorf("entitlements repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		orders:       params.OrdersRepo,
		licenses:     params.LicensesRepo,
		entitlements: params.EntitlementsRepo,
		tx:           params.TransactionRunner,
		manager:      params.Idempotency,
		logg:         params.Logger,
		now:          time.Now,
	}, nil
}

// Process links unprocessed minted orders to the newly created profile.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventAccountCreated {
		c.logg.Info(logCtx, "event not handled by linker consumer")
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, linkerConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var account payloads.AccountCreatedEvent
	if err := json.Unmarshal(envelope.Data, &account); err != nil {
		c.logg.Error(logCtx, "decode account created payload", err)
		_ = c.manager.Delete(ctx, linkerConsumerName, eventID)
		return err
	}
	if account.ProfileID == uuid.Nil || account.Email == "" {
		_ = c.manager.Delete(ctx, linkerConsumerName, eventID)
		return fmt.Errorf("account created payload incomplete")
	}

	if err := c.linkOrders(logCtx, account); err != nil {
		_ = c.manager.Delete(ctx, linkerConsumerName, eventID)
		return err
	}
	return nil
}

func (c *Consumer) linkOrders(ctx context.Context, account payloads.AccountCreatedEvent) error {
	orders, err := c.orders.FindUnprocessedMintedByEmail(ctx, account.Email)
	if err != nil {
		return fmt.Errorf("find pending orders: %w", err)
	}
	if len(orders) == 0 {
		c.logg.Info(ctx, "no pending orders for new profile")
		return nil
	}

	var errs error
	linked := 0
	for i := range orders {
		order := &orders[i]
		if err := c.linkOrder(ctx, account.ProfileID, order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		linked++
	}

	c.logg.Info(c.logg.WithField(ctx, "linked_orders", linked), "pending orders linked")
	return errs
}

func (c *Consumer) linkOrder(ctx context.Context, profileID uuid.UUID, order *models.KofiOrder) error {
	if order.LicenseID == nil || order.License == nil {
		return fmt.Errorf("order carries no license")
	}
	license := order.License

	existing, err := c.entitlements.FindByUserAndLicense(ctx, profileID, license.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check entitlement: %w", err)
	}

	return c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if existing == nil {
			claimed, incErr := c.licenses.IncrementActivationsTx(tx, license.ID)
			if incErr != nil {
				return fmt.Errorf("claim activation: %w", incErr)
			}
			if !claimed {
				// the cap was consumed elsewhere; still close out the order
				c.logg.Warn(ctx, "license cap exhausted before linking")
			} else {
				// the entitlement starts when it is granted, not when the
				// payment landed
				expiresAt := c.now().AddDate(0, 0, license.DurationDays)
				if createErr := c.entitlements.CreateTx(tx, &models.UserLicense{
					UserID:    profileID,
					LicenseID: license.ID,
					ExpiresAt: expiresAt,
					IsActive:  true,
				}); createErr != nil {
					return fmt.Errorf("create entitlement: %w", createErr)
				}
			}
		}
		return c.orders.MarkProcessedTx(tx, order.ID, profileID)
	})
}
