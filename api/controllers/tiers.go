package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/licensegate-backend/api/responses"
	"github.com/angelmondragon/licensegate-backend/api/validators"
	"github.com/angelmondragon/licensegate-backend/internal/tiers"
	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
)

type tierRequest struct {
	Name              string          `json:"name" validate:"required,max=255"`
	TierType          string          `json:"tier_type" validate:"required,oneof=product donation"`
	Amount            decimal.Decimal `json:"amount"`
	DurationDays      int             `json:"duration_days" validate:"omitempty,gte=0"`
	ProductIdentifier *string         `json:"product_identifier" validate:"omitempty,max=100"`
	IsFlexiblePricing bool            `json:"is_flexible_pricing"`
	DaysPerDollar     decimal.Decimal `json:"days_per_dollar"`
	ApplicationID     *uuid.UUID      `json:"application_id"`
	IsActive          *bool           `json:"is_active"`
}

func (r tierRequest) toInput() tiers.TierInput {
	return tiers.TierInput{
		Name:              r.Name,
		TierType:          enums.TierType(r.TierType),
		Amount:            r.Amount,
		DurationDays:      r.DurationDays,
		ProductIdentifier: r.ProductIdentifier,
		IsFlexiblePricing: r.IsFlexiblePricing,
		DaysPerDollar:     r.DaysPerDollar,
		ApplicationID:     r.ApplicationID,
		IsActive:          r.IsActive,
	}
}

type tierResponse struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	TierType          enums.TierType  `json:"tier_type"`
	Amount            decimal.Decimal `json:"amount"`
	DurationDays      int             `json:"duration_days"`
	ProductIdentifier *string         `json:"product_identifier,omitempty"`
	IsFlexiblePricing bool            `json:"is_flexible_pricing"`
	DaysPerDollar     decimal.Decimal `json:"days_per_dollar"`
	ApplicationID     *uuid.UUID      `json:"application_id,omitempty"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func tierResponseFromModel(m *models.PricingTier) tierResponse {
	return tierResponse{
		ID:                m.ID,
		Name:              m.Name,
		TierType:          m.TierType,
		Amount:            m.Amount,
		DurationDays:      m.DurationDays,
		ProductIdentifier: m.ProductIdentifier,
		IsFlexiblePricing: m.IsFlexiblePricing,
		DaysPerDollar:     m.DaysPerDollar,
		ApplicationID:     m.ApplicationID,
		IsActive:          m.IsActive,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// TierCreate registers a pricing tier mapping payments to license durations.
func TierCreate(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body tierRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateTier(r.Context(), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tierResponseFromModel(created))
	}
}

// TierList returns all pricing tiers.
func TierList(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := svc.ListTiers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]tierResponse, 0, len(all))
		for i := range all {
			out = append(out, tierResponseFromModel(&all[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// TierGet returns a single pricing tier by id.
func TierGet(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "tierID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier, err := svc.GetTier(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tierResponseFromModel(tier))
	}
}

// TierUpdate replaces a pricing tier's definition.
func TierUpdate(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "tierID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body tierRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateTier(r.Context(), id, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tierResponseFromModel(updated))
	}
}

// TierDelete removes a pricing tier. Already minted licenses keep their terms.
func TierDelete(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "tierID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteTier(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
