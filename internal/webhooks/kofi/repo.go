package kofiwebhook

import (
	"context"

	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes Ko-fi order persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a Ko-fi order repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByMessageID returns the order received under the given message id.
func (r *Repository) FindByMessageID(ctx context.Context, messageID string) (*models.KofiOrder, error) {
	var order models.KofiOrder
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByTransactionID returns the order received under the given Ko-fi
// transaction id.
func (r *Repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.KofiOrder, error) {
	var order models.KofiOrder
	if err := r.db.WithContext(ctx).Where("kofi_transaction_id = ?", transactionID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateTx inserts a new order row inside an existing transaction.
func (r *Repository) CreateTx(tx *gorm.DB, order *models.KofiOrder) error {
	return tx.Create(order).Error
}

// MarkProcessedTx links the order to a user and flips the processed flag.
func (r *Repository) MarkProcessedTx(tx *gorm.DB, id, userID uuid.UUID) error {
	return tx.Model(&models.KofiOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{"processed": true, "user_id": userID}).Error
}

// FindUnprocessedMintedByEmail returns unprocessed orders for the email that
// carry a minted license, oldest first. The linker consumes these when the
// payer registers.
func (r *Repository) FindUnprocessedMintedByEmail(ctx context.Context, email string) ([]models.KofiOrder, error) {
	var rows []models.KofiOrder
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Where("processed = ?", false).
		Where("license_id IS NOT NULL").
		Order("created_at ASC").
		Preload("License").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
