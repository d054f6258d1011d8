package controllers

import (
	"net/http"

	"github.com/angelmondragon/licensegate-backend/api/validators"
	kofiwebhook "github.com/angelmondragon/licensegate-backend/internal/webhooks/kofi"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
)

type webhookError struct {
	Error string `json:"error"`
}

// KofiWebhook ingests Ko-fi payment notifications. Ko-fi posts a form with a
// single `data` field holding the JSON payload and retries on any non-2xx.
func KofiWebhook(svc *kofiwebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeFlat(w, http.StatusInternalServerError, webhookError{Error: "Internal server error"})
			return
		}

		var payload kofiwebhook.Payload
		if err := validators.DecodeFormJSON(r, "data", &payload); err != nil {
			message := "Invalid webhook data format"
			if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
				message = typed.Message()
			}
			writeFlat(w, http.StatusBadRequest, webhookError{Error: message})
			return
		}

		result, err := svc.HandleWebhook(r.Context(), &payload)
		if err != nil {
			typed := pkgerrors.As(err)
			switch {
			case typed != nil && typed.Code() == pkgerrors.CodeForbidden:
				writeFlat(w, http.StatusForbidden, webhookError{Error: typed.Message()})
			case typed != nil && typed.Code() == pkgerrors.CodeValidation:
				writeFlat(w, http.StatusBadRequest, webhookError{Error: typed.Message()})
			default:
				if logg != nil {
					logg.Error(r.Context(), "webhook processing failed", err)
				}
				writeFlat(w, http.StatusInternalServerError, webhookError{Error: "Internal server error"})
			}
			return
		}

		writeFlat(w, http.StatusOK, result)
	}
}
