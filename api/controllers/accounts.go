package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/licensegate-backend/api/responses"
	"github.com/angelmondragon/licensegate-backend/api/validators"
	"github.com/angelmondragon/licensegate-backend/internal/accounts"
	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
)

type profileResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func profileResponseFromModel(m *models.Profile) profileResponse {
	return profileResponse{
		ID:        m.ID,
		Email:     m.Email,
		FullName:  m.FullName,
		IsAdmin:   m.IsAdmin,
		CreatedAt: m.CreatedAt,
	}
}

// AccountRegister creates a profile. Ko-fi orders paid before sign-up are
// linked asynchronously off the emitted event.
func AccountRegister(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accounts.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]profileResponse{
			"user": profileResponseFromModel(profile),
		})
	}
}

// AccountLogin verifies credentials and mints an access token.
func AccountLogin(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accounts.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"token": result.Token,
			"user":  profileResponseFromModel(result.Profile),
		})
	}
}
