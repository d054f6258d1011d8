package validators

import (
	"encoding/json"
	"net/http"

	pkgerrors "github.com/angelmondragon/licensegate-backend/pkg/errors"
)

// DecodeFormJSON parses a form-encoded request whose named field carries a
// JSON document (Ko-fi posts `data=<json>`), decodes it into dest, and runs
// struct validation.
func DecodeFormJSON(r *http.Request, field string, dest any) error {
	if err := r.ParseForm(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request format")
	}

	raw := r.PostFormValue(field)
	if raw == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid request format")
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook data format")
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}
