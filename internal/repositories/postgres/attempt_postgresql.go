package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptStore {
	return &AttemptPostgreSQL{db: db}
}

// StartAttempt numbers the attempt and checks the limit inside one
// transaction. The assessment row is locked so two concurrent starts cannot
// both pass the limit check.
func (a *AttemptPostgreSQL) StartAttempt(ctx context.Context, studentID, assessmentID string) (*models.Attempt, error) {
	var attempt *models.Attempt

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assessment models.Assessment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "max_attempts").
			Where("id = ?", assessmentID).
			First(&assessment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repositories.ErrAssessmentNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.Attempt{}).
			Where("student_id = ? AND assessment_id = ?", studentID, assessmentID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if assessment.MaxAttempts > 0 && int(count) >= assessment.MaxAttempts {
			return repositories.ErrMaxAttemptsExceeded
		}

		attempt = &models.Attempt{
			ID:            uuid.NewString(),
			AssessmentID:  assessmentID,
			StudentID:     studentID,
			AttemptNumber: int(count) + 1,
			Status:        models.AttemptInProgress,
			StartedAt:     time.Now().UTC(),
		}
		return tx.Create(attempt).Error
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return attempt, nil
}

func (a *AttemptPostgreSQL) FindAttempt(ctx context.Context, studentID, assessmentID string, status *models.AttemptStatus) (*models.Attempt, error) {
	query := a.db.WithContext(ctx).
		Where("student_id = ? AND assessment_id = ?", studentID, assessmentID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var attempt models.Attempt
	if err := query.Order("attempt_number DESC").Order("created_at DESC").First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrAttemptNotFound
		}
		return nil, classifyError(err)
	}
	return &attempt, nil
}

// InsertAttempt stores a caller-built attempt. A zero attempt number is
// filled in from the current count.
func (a *AttemptPostgreSQL) InsertAttempt(ctx context.Context, attempt *models.Attempt) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if attempt.AttemptNumber == 0 {
			var count int64
			if err := tx.Model(&models.Attempt{}).
				Where("student_id = ? AND assessment_id = ?", attempt.StudentID, attempt.AssessmentID).
				Count(&count).Error; err != nil {
				return fmt.Errorf("failed to count attempts: %w", err)
			}
			attempt.AttemptNumber = int(count) + 1
		}
		if attempt.StartedAt.IsZero() {
			attempt.StartedAt = time.Now().UTC()
		}
		return tx.Create(attempt).Error
	})
	return classifyError(err)
}

// CompleteAttempt only touches a row that is still in progress, so a second
// completion for the same attempt reports ErrAttemptNotInProgress instead of
// overwriting the first.
func (a *AttemptPostgreSQL) CompleteAttempt(ctx context.Context, attemptID string, fields models.AttemptFields) error {
	completed := models.AttemptCompleted
	if fields.Status == nil {
		fields.Status = &completed
	}

	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", attemptID, models.AttemptInProgress).
		Updates(fields.Map())
	if result.Error != nil {
		return classifyError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current models.Attempt
	err := a.db.WithContext(ctx).Select("id", "status").Where("id = ?", attemptID).Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrAttemptNotFound
	}
	if err != nil {
		return classifyError(err)
	}
	if current.Status.IsTerminal() {
		return fmt.Errorf("%w: already %s", repositories.ErrAttemptNotInProgress, current.Status)
	}
	return fmt.Errorf("%w: status %s", repositories.ErrAttemptNotInProgress, current.Status)
}

func (a *AttemptPostgreSQL) UpdateAttemptFields(ctx context.Context, attemptID string, fields models.AttemptFields) error {
	updates := fields.Map()
	if len(updates) == 0 {
		return nil
	}

	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", attemptID).
		Updates(updates)
	if result.Error != nil {
		return classifyError(result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrAttemptNotFound
	}
	return nil
}
