package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// APIError is the failure half of the response envelope. Code is stable and
// machine-readable; Message is for humans.
type APIError struct {
	OK      bool              `json:"ok"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendData writes the success envelope.
func SendData(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "data": data})
}

// SendError writes the failure envelope. validationErr, when present, is
// unpacked into per-field details.
func SendError(w http.ResponseWriter, statusCode int, code, message string, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := APIError{OK: false, Message: message, Code: code}
	if fieldErrs, ok := validationErr.(validator.ValidationErrors); ok {
		resp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			resp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(resp)
}

// SendRaw replays a stored response body verbatim under the success or
// failure envelope it was originally written with.
func SendRaw(w http.ResponseWriter, statusCode int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if statusCode >= 400 {
		var f struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &f)
		json.NewEncoder(w).Encode(APIError{OK: false, Message: f.Message, Code: f.Code})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "data": body})
}

// decodeJSONBody enforces the shared request-body discipline: bounded size,
// unknown fields rejected, exactly one JSON object.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}
	return nil
}
