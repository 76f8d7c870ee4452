package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/venue-tournaments/repositories"
)

// Общие ошибки, используемые сервисами и маппингом HTTP.
var (
	// Ошибки хранилища
	ErrConnectivity  = errors.New("the data store is unavailable, try again")
	ErrNotConfigured = errors.New("the tournament system is not configured")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed      = errors.New("validation failed")
	ErrDuplicateRegistration = errors.New("this number is already registered for the tournament")
	ErrTournamentFull        = errors.New("tournament registration is full")
	ErrTournamentNotFound    = errors.New("tournament not found or not active")
	ErrEditionConflict       = errors.New("current edition does not match the latest edition for this game")
	ErrTournamentInUse       = errors.New("tournament still has registrations")

	// Ошибки аутентификации и авторизации
	ErrUnauthorized           = errors.New("unauthorized")
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
)

// translateGatewayError переводит вид ошибки шлюза в ошибку сервиса, сохраняя
// исходное сообщение драйвера.
func translateGatewayError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repositories.ErrSchema):
		return fmt.Errorf("%s: %w: %w", op, ErrNotConfigured, err)
	case errors.Is(err, repositories.ErrCapacityExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTournamentFull, err)
	case errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicateRegistration, err)
	case errors.Is(err, repositories.ErrReferenceViolation):
		return fmt.Errorf("%s: %w: %w", op, ErrTournamentNotFound, err)
	case errors.Is(err, repositories.ErrConstraint):
		return fmt.Errorf("%s: %w: %w", op, ErrValidationFailed, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrConnectivity, err)
	}
}
