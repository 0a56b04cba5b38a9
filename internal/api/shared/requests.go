package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Shared validator instance; validator.Validate caches struct metadata,
// so one instance serves all request types.
var validate = validator.New()

// DecodeJSON decodes the request body into v. Unknown fields are
// rejected so typos in field names surface as 400s instead of
// silently submitting zero values.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ValidateRequest validates a decoded request, preferring the type's
// own Validate method when it has one and falling back to the struct
// tags otherwise.
func ValidateRequest(v interface{}) error {
	if custom, ok := v.(interface{ Validate() error }); ok {
		return custom.Validate()
	}
	return validate.Struct(v)
}
