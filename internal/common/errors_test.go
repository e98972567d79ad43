package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTransientIO(t *testing.T) {
	assert.NoError(t, TransientIO(nil))

	err := TransientIO(gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = TransientIO(errors.New("connection reset"))
	assert.ErrorIs(t, err, ErrTransientIO)
	assert.ErrorContains(t, err, "connection reset")

	// 이미 분류된 에러는 그대로
	vetoed := fmt.Errorf("%w: blocked by filter", ErrVetoed)
	assert.Same(t, vetoed, TransientIO(vetoed))
	assert.Equal(t, ErrNotSender, TransientIO(ErrNotSender))
}

func TestErrorKeyAndStatus(t *testing.T) {
	tests := []struct {
		err    error
		key    string
		status int
	}{
		{ErrEditingDisabled, "message.edit_disabled", http.StatusUnprocessableEntity},
		{ErrEditWindowExpired, "message.edit_expired", http.StatusUnprocessableEntity},
		{ErrNotSender, "message.not_sender", http.StatusForbidden},
		{ErrTooFewParticipants, "conversation.too_few_participants", http.StatusUnprocessableEntity},
		{ErrInvalidStatus, "message.invalid_status", http.StatusUnprocessableEntity},
		{ErrInvalidInput, "error.bad_request", http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: x", ErrVetoed), "error.vetoed", http.StatusConflict},
		{ErrUnauthorized, "error.forbidden", http.StatusForbidden},
		{TransientIO(gorm.ErrRecordNotFound), "error.not_found", http.StatusNotFound},
		{ErrExpiredToken, "auth.token_expired", http.StatusUnauthorized},
		{ErrInvalidToken, "auth.token_invalid", http.StatusUnauthorized},
		{TransientIO(errors.New("timeout")), "error.unavailable", http.StatusServiceUnavailable},
		{errors.New("boom"), "error.internal", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.key, ErrorKey(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
	assert.Empty(t, ErrorKey(nil))
}
