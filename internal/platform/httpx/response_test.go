package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

func TestStatusFor(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindValidation:          http.StatusBadRequest,
		apperr.KindNotFound:            http.StatusNotFound,
		apperr.KindScopeViolation:      http.StatusForbidden,
		apperr.KindReferentialConflict: http.StatusConflict,
		apperr.KindConcurrencyConflict: http.StatusConflict,
		apperr.KindAuthorization:       http.StatusUnauthorized,
		apperr.KindInsufficientStock:   http.StatusConflict,
		apperr.KindConflict:            http.StatusConflict,
		apperr.KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), kind.String())
	}
}

func TestError_ClassifiedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, zap.NewNop(), fmt.Errorf("compose: %w", apperr.Validation("lines[0].quantity", "must be greater than zero")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Kind)
	assert.Equal(t, "lines[0].quantity", body.Field)
}

func TestError_InternalIsNotLeaked(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	rec := httptest.NewRecorder()
	Error(rec, zap.New(core), fmt.Errorf("dial tcp 10.0.0.7:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	var dst struct {
		Quantity int `json:"quantity"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1,"unit_price":"0.01"}`))
	err := Decode(r, &dst)
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindValidation, Field: "body"})
}

func TestQueryParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?shop_id=nope&from=2026-10-18&to=18-10-2026", nil)

	_, err := QueryUUID(r, "shop_id")
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindValidation, Field: "shop_id"})

	id, err := QueryUUID(r, "employee_id")
	require.NoError(t, err)
	assert.Nil(t, id)

	from, err := QueryDate(r, "from")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18", from.Format("2006-01-02"))

	_, err = QueryDate(r, "to")
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindValidation, Field: "to"})
}

func TestUUIDParam(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, err := UUIDParam(r, "id"); err != nil {
			Error(w, zap.NewNop(), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/9b2f6f0e-6a53-4c62-9a39-3c8f0f1f6f11", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/42", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
