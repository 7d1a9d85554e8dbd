package errors

import (
	"context"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/hrygo/libris/store"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"NotFound", pkgerrors.Wrap(store.ErrNotFound, "book"), ErrCodeNotFound, http.StatusNotFound},
		{"Conflict", pkgerrors.Wrap(store.ErrConflict, "isbn"), ErrCodeAlreadyExists, http.StatusConflict},
		{"Canceled", pkgerrors.Wrap(context.Canceled, "fetch"), ErrCodeContextCanceled, 499},
		{"Unknown", pkgerrors.New("disk on fire"), ErrCodeInternal, http.StatusInternalServerError},
		{"AlreadyAPIError", pkgerrors.Wrap(InvalidArgument("bad id %q", "x"), "parse"), ErrCodeInvalidArgument, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := From(tt.err)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.status, apiErr.HTTPStatus())
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NotFound("book %d", 7)
	assert.Equal(t, "[NOT_FOUND] book 7", err.Error())

	wrapped := Wrap(store.ErrNotFound, ErrCodeNotFound, "lookup")
	assert.ErrorIs(t, wrapped, store.ErrNotFound)
	assert.Contains(t, wrapped.Error(), "record not found")
}

func TestIsCode(t *testing.T) {
	err := pkgerrors.Wrap(FailedPrecondition("book is borrowed"), "borrow")
	assert.True(t, IsCode(err, ErrCodeFailedPrecondition))
	assert.False(t, IsCode(err, ErrCodeNotFound))
	assert.False(t, IsCode(store.ErrNotFound, ErrCodeNotFound))
}
