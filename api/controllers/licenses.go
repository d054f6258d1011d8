package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/licensegate-backend/api/middleware"
	"github.com/angelmondragon/licensegate-backend/api/validators"
	"github.com/angelmondragon/licensegate-backend/internal/entitlements"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
)

// The activation and validation endpoints speak a flat wire shape consumed
// by embedded SDK clients, not the admin envelope. Field names here are part
// of the protocol and must not change.

type activateRequest struct {
	LicenseKey string `json:"licenseKey" validate:"required,max=64"`
}

type activateFailure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type validateFailure struct {
	IsValid bool   `json:"isValid"`
	Error   string `json:"error"`
}

func writeFlat(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ActivateUnauthorizedWriter renders credential rejections in the activation
// protocol shape.
func ActivateUnauthorizedWriter(w http.ResponseWriter, status int, message string) {
	writeFlat(w, status, activateFailure{Success: false, Message: message})
}

// ValidateUnauthorizedWriter renders credential rejections in the validation
// protocol shape.
func ValidateUnauthorizedWriter(w http.ResponseWriter, status int, message string) {
	writeFlat(w, status, validateFailure{IsValid: false, Error: message})
}

func protocolIdentity(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	applicationID := middleware.ApplicationIDFromContext(r.Context())
	if applicationID == uuid.Nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "application context missing")
	}
	return userID, applicationID, nil
}

// LicenseActivate binds a license key to the authenticated user for the
// calling application.
func LicenseActivate(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeFlat(w, http.StatusInternalServerError, activateFailure{Message: "Internal server error"})
			return
		}

		userID, applicationID, err := protocolIdentity(r)
		if err != nil {
			writeFlat(w, http.StatusUnauthorized, activateFailure{Message: "Missing application credentials"})
			return
		}

		var body activateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			writeFlat(w, http.StatusBadRequest, activateFailure{Message: "licenseKey is required"})
			return
		}

		result, err := svc.Activate(r.Context(), userID, applicationID, body.LicenseKey)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
				writeFlat(w, http.StatusBadRequest, activateFailure{Message: typed.Message()})
				return
			}
			if logg != nil {
				logg.Error(r.Context(), "license activation failed", err)
			}
			writeFlat(w, http.StatusInternalServerError, activateFailure{Message: "Internal server error"})
			return
		}

		// refusals (bad key, cap reached, expired) are results, not errors;
		// the flag carries the outcome
		writeFlat(w, http.StatusOK, result)
	}
}

// LicenseValidate reports the caller's current entitlement for the
// application, applying expiry lazily.
func LicenseValidate(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeFlat(w, http.StatusInternalServerError, validateFailure{Error: "Internal server error"})
			return
		}

		userID, applicationID, err := protocolIdentity(r)
		if err != nil {
			writeFlat(w, http.StatusUnauthorized, validateFailure{Error: "Missing application credentials"})
			return
		}

		result, err := svc.Validate(r.Context(), userID, applicationID, middleware.ApplicationNameFromContext(r.Context()))
		if err != nil {
			if logg != nil {
				logg.Error(r.Context(), "license validation failed", err)
			}
			writeFlat(w, http.StatusInternalServerError, validateFailure{Error: "Internal server error"})
			return
		}

		writeFlat(w, http.StatusOK, result)
	}
}
