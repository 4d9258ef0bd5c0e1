package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/attempt-engine/internal/repositories"
)

// SQLSTATE codes the attempt lifecycle reacts to.
const (
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeRaiseException      = "P0001"
)

// classifyError maps driver failures onto the repository error classes. The
// original error stays in the chain.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrMaxAttemptsExceeded) ||
		errors.Is(err, repositories.ErrConstraintViolation) ||
		errors.Is(err, repositories.ErrUniqueViolation) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", repositories.ErrUniqueViolation, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", repositories.ErrUniqueViolation, err)
	case codeNotNullViolation, codeCheckViolation, codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", repositories.ErrConstraintViolation, err)
	case codeRaiseException:
		// attempt-limit triggers raise with a recognizable message
		if strings.Contains(strings.ToLower(pgErr.Message), "max") &&
			strings.Contains(strings.ToLower(pgErr.Message), "attempt") {
			return fmt.Errorf("%w: %w", repositories.ErrMaxAttemptsExceeded, err)
		}
	}
	return err
}
