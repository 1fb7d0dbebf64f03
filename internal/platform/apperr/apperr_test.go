package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := Validation("quantity", "must be greater than zero")
	wrapped := fmt.Errorf("compose ticket: %w", base)

	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindValidation))
	assert.False(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestErrorMessage(t *testing.T) {
	err := Validation("quantity", "must be greater than zero")
	assert.Equal(t, "quantity: must be greater than zero", err.Error())

	inner := errors.New("connection reset")
	ierr := Internal(inner, "insert receipt")
	assert.Equal(t, "insert receipt: connection reset", ierr.Error())
	assert.ErrorIs(t, ierr, inner)
}

func TestErrorsIs_MatchesKind(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("product", "abc"))
	assert.ErrorIs(t, err, &Error{Kind: KindNotFound})
	assert.NotErrorIs(t, err, &Error{Kind: KindScopeViolation})
}
