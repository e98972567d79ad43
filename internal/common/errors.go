package common

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Failure kinds returned by the conversation engine
var (
	// ErrRefused a structural precondition was not met (e.g. fewer than two participants)
	ErrRefused = errors.New("refused")
	// ErrNotFound the referenced conversation or message does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized the actor is not a participant
	ErrUnauthorized = errors.New("unauthorized")
	// ErrVetoed a before-hook blocked the operation
	ErrVetoed = errors.New("vetoed")
	// ErrTransientIO store or transport failure
	ErrTransientIO = errors.New("transient io failure")
)

// Refused subtypes. errors.Is(err, ErrRefused) holds for each of them.
var (
	ErrInvalidStatus      = fmt.Errorf("%w: invalid status", ErrRefused)
	ErrInvalidInput       = fmt.Errorf("%w: invalid input", ErrRefused)
	ErrTooFewParticipants = fmt.Errorf("%w: at least two participants required", ErrRefused)
	ErrEditingDisabled    = fmt.Errorf("%w: message editing is disabled", ErrRefused)
	ErrEditWindowExpired  = fmt.Errorf("%w: message edit time limit exceeded", ErrRefused)
	ErrNotSender          = fmt.Errorf("%w: only the sender may edit a message", ErrUnauthorized)
)

// Auth errors used by the HTTP adapter
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// TransientIO wraps a store/transport error as ErrTransientIO.
// Record-not-found errors become ErrNotFound; errors that already carry a
// failure kind pass through unchanged.
func TransientIO(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	for _, kind := range []error{ErrTransientIO, ErrNotFound, ErrUnauthorized, ErrRefused, ErrVetoed} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTransientIO, err)
}

// ErrorKey localization key for an engine error. UIs render these differently.
func ErrorKey(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEditingDisabled):
		return "message.edit_disabled"
	case errors.Is(err, ErrEditWindowExpired):
		return "message.edit_expired"
	case errors.Is(err, ErrNotSender):
		return "message.not_sender"
	case errors.Is(err, ErrTooFewParticipants):
		return "conversation.too_few_participants"
	case errors.Is(err, ErrInvalidStatus):
		return "message.invalid_status"
	case errors.Is(err, ErrVetoed):
		return "error.vetoed"
	case errors.Is(err, ErrUnauthorized):
		return "error.forbidden"
	case errors.Is(err, ErrNotFound):
		return "error.not_found"
	case errors.Is(err, ErrRefused):
		return "error.bad_request"
	case errors.Is(err, ErrExpiredToken):
		return "auth.token_expired"
	case errors.Is(err, ErrInvalidToken):
		return "auth.token_invalid"
	case errors.Is(err, ErrTransientIO):
		return "error.unavailable"
	default:
		return "error.internal"
	}
}

// HTTPStatus status code for an engine error
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrVetoed):
		return http.StatusConflict
	case errors.Is(err, ErrRefused):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTransientIO):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
