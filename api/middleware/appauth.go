package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
)

const (
	headerAppKey    = "x-app-key"
	headerAppSecret = "x-app-secret"
)

// AppCredentialValidator checks the x-app-key/x-app-secret pair against the
// application registry. Invalid or inactive credentials surface as a
// CodeUnauthorized error.
type AppCredentialValidator interface {
	ValidateCredentials(ctx context.Context, appKey, appSecret string) (uuid.UUID, string, error)
}

// UnauthorizedWriter renders the endpoint-specific rejection body. The
// activation and validation protocols disagree on field names, so each route
// supplies its own shape.
type UnauthorizedWriter func(w http.ResponseWriter, status int, message string)

// AppAuth enforces application credentials before any token work happens.
func AppAuth(validator AppCredentialValidator, logg *logger.Logger, writeUnauthorized UnauthorizedWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appKey := strings.TrimSpace(r.Header.Get(headerAppKey))
			appSecret := strings.TrimSpace(r.Header.Get(headerAppSecret))

			if appKey == "" || appSecret == "" {
				writeUnauthorized(w, http.StatusUnauthorized, "Missing application credentials")
				return
			}

			appID, appName, err := validator.ValidateCredentials(r.Context(), appKey, appSecret)
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeUnauthorized {
					writeUnauthorized(w, http.StatusUnauthorized, "Invalid application credentials")
					return
				}
				if logg != nil {
					logg.Error(r.Context(), "app credential validation failed", err)
				}
				writeUnauthorized(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := WithApplication(r.Context(), appID, appName)
			if logg != nil {
				ctx = logg.WithApplicationID(ctx, appID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
