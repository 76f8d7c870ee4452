package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Kinds of gateway failures. Callers branch with errors.Is; the driver message
// stays attached to the wrapped error.
var (
	ErrConnectivity = errors.New("data store unreachable")
	ErrSchema       = errors.New("data store schema is missing or outdated")
	ErrConstraint   = errors.New("data store constraint violation")

	ErrConflict           = fmt.Errorf("%w: unique constraint", ErrConstraint)
	ErrReferenceViolation = fmt.Errorf("%w: foreign key constraint", ErrConstraint)
	ErrCapacityExceeded   = fmt.Errorf("%w: tournament capacity reached", ErrConstraint)
	ErrUnfilteredWrite    = fmt.Errorf("%w: write requires a filter", ErrConstraint)
)

// classifyError приводит ошибку драйвера к одному из видов ошибок шлюза.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectivity) || errors.Is(err, ErrSchema) || errors.Is(err, ErrConstraint) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42P01", pqErr.Code == "42703", pqErr.Code == "3F000":
			// undefined_table, undefined_column, invalid_schema_name
			return fmt.Errorf("%s: %w: %w", op, ErrSchema, err)
		case pqErr.Code == "23505":
			return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
		case pqErr.Code == "23503":
			return fmt.Errorf("%s: %w: %w", op, ErrReferenceViolation, err)
		case strings.HasPrefix(string(pqErr.Code), "23"), strings.HasPrefix(string(pqErr.Code), "22"):
			return fmt.Errorf("%s: %w: %w", op, ErrConstraint, err)
		}
	}

	// Network failures, driver.ErrBadConn and context deadlines all land here.
	return fmt.Errorf("%s: %w: %w", op, ErrConnectivity, err)
}
