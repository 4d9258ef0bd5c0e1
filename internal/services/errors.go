package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/attempt-engine/internal/errors"
	"github.com/SAP-F-2025/attempt-engine/internal/repositories"
	"github.com/SAP-F-2025/attempt-engine/internal/sandbox"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")

	// Session specific errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotReady     = errors.New("session is not ready")
	ErrSessionNotActive    = errors.New("session is not in progress")
	ErrSessionFinished     = errors.New("session already finished")
	ErrSubmitInProgress    = errors.New("submission already in progress")
	ErrSubmitNotConfirmed  = errors.New("submission must be confirmed")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionIndexRange  = errors.New("question index out of range")
	ErrBlankIndexRange     = errors.New("blank index out of range")
	ErrNotCodingQuestion   = errors.New("question does not accept code")
	ErrReviewNotAvailable  = errors.New("review is only available after submission")
	ErrAttemptCreateFailed = errors.New("attempt could not be created")
)

// ===== CUSTOM ERROR TYPES =====

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type PermissionError struct {
	StudentID string `json:"student_id"`
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: student %s cannot %s session %s", pe.StudentID, pe.Action, pe.SessionID)
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, repositories.ErrAssessmentNotFound) ||
		errors.Is(err, repositories.ErrAttemptNotFound)
}

func IsForbidden(err error) bool {
	var pe *PermissionError
	return errors.Is(err, ErrForbidden) || errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrSubmitNotConfirmed) ||
		errors.Is(err, ErrQuestionIndexRange) ||
		errors.Is(err, ErrBlankIndexRange) ||
		errors.Is(err, ErrNotCodingQuestion) ||
		errors.Is(err, sandbox.ErrEmptySource) {
		return true
	}
	var ve apperrors.ValidationErrors
	var single *apperrors.ValidationError
	var ule *sandbox.UnsupportedLanguageError
	return errors.As(err, &ve) || errors.As(err, &single) || errors.As(err, &ule)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrSubmitInProgress) ||
		errors.Is(err, ErrSessionFinished) ||
		errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrSessionNotReady) ||
		errors.Is(err, ErrReviewNotAvailable) ||
		errors.Is(err, repositories.ErrMaxAttemptsExceeded)
}
