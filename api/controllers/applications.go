package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/licensegate-backend/api/responses"
	"github.com/angelmondragon/licensegate-backend/api/validators"
	"github.com/angelmondragon/licensegate-backend/internal/applications"
	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
)

type applicationCreateRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type applicationUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	IsActive    *bool   `json:"is_active"`
}

type applicationResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	AppKey      string    `json:"app_key"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type applicationCreatedResponse struct {
	applicationResponse
	AppSecret string `json:"app_secret"`
}

func applicationResponseFromModel(m *models.Application) applicationResponse {
	return applicationResponse{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		AppKey:      m.AppKey,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid id")
	}
	return id, nil
}

// ApplicationCreate registers a new client application. The secret appears in
// this response only.
func ApplicationCreate(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body applicationCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateApplication(r.Context(), applications.CreateApplicationInput{
			Name:        body.Name,
			Description: body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, applicationCreatedResponse{
			applicationResponse: applicationResponseFromModel(created.Application),
			AppSecret:           created.AppSecret,
		})
	}
}

// ApplicationList returns every registered application, newest first.
func ApplicationList(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := svc.ListApplications(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]applicationResponse, 0, len(apps))
		for i := range apps {
			out = append(out, applicationResponseFromModel(&apps[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ApplicationGet returns a single application by id.
func ApplicationGet(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "applicationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		app, err := svc.GetApplication(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applicationResponseFromModel(app))
	}
}

// ApplicationUpdate applies a partial update to an application.
func ApplicationUpdate(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "applicationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body applicationUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateApplication(r.Context(), id, applications.UpdateApplicationInput{
			Name:        body.Name,
			Description: body.Description,
			IsActive:    body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applicationResponseFromModel(updated))
	}
}

// ApplicationDelete removes an application. Licenses minted for it survive.
func ApplicationDelete(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "applicationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteApplication(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
