package repositories

import (
	"context"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// AttemptStore is the persistence contract the attempt lifecycle relies on.
// Implementations classify driver failures into the errors in errors.go so
// callers can pick a fallback without knowing the backend.
type AttemptStore interface {
	// StartAttempt creates an in-progress attempt and enforces the
	// assessment's attempt limit.
	StartAttempt(ctx context.Context, studentID, assessmentID string) (*models.Attempt, error)
	// FindAttempt returns the newest attempt, optionally filtered by status.
	FindAttempt(ctx context.Context, studentID, assessmentID string, status *models.AttemptStatus) (*models.Attempt, error)
	// InsertAttempt stores an attempt whose id the caller generated.
	InsertAttempt(ctx context.Context, attempt *models.Attempt) error
	// CompleteAttempt atomically finishes an in-progress attempt.
	CompleteAttempt(ctx context.Context, attemptID string, fields models.AttemptFields) error
	// UpdateAttemptFields writes individual columns without a status check.
	UpdateAttemptFields(ctx context.Context, attemptID string, fields models.AttemptFields) error
}

// QuestionSource returns the ordered questions of an assessment.
type QuestionSource interface {
	GetQuestions(ctx context.Context, assessmentID string) ([]models.Question, error)
}

type AssessmentReader interface {
	GetAssessment(ctx context.Context, assessmentID string) (*models.Assessment, error)
}
