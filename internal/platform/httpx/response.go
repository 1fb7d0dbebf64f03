package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// Respond writes body as JSON with the given status.
func Respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	json.NewEncoder(w).Encode(body)
}

// Decode reads a JSON request body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("body", "invalid JSON: %v", err)
	}
	return nil
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindScopeViolation:
		return http.StatusForbidden
	case apperr.KindReferentialConflict, apperr.KindConcurrencyConflict,
		apperr.KindInsufficientStock, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuthorization:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as an ErrorResponse. Internal errors are logged and replaced
// with a generic message.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	resp := ErrorResponse{Error: err.Error(), Kind: kind.String()}
	if kind == apperr.KindInternal {
		log.Error("request failed", zap.Error(err))
		resp.Error = "an internal error occurred"
	} else {
		var e *apperr.Error
		if errors.As(err, &e) {
			resp.Field = e.Field
		}
	}
	Respond(w, status, resp)
}

// UUIDParam parses the chi URL parameter name as a UUID.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation(name, "must be a valid UUID")
	}
	return id, nil
}

// QueryUUID parses an optional UUID query parameter. An absent parameter yields nil.
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation(name, "must be a valid UUID")
	}
	return &id, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.Validation(name, "must be a date in YYYY-MM-DD form")
	}
	return &d, nil
}
