package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/repositories"
)

type AssessmentPostgreSQL struct {
	db *gorm.DB
}

func NewAssessmentPostgreSQL(db *gorm.DB) repositories.AssessmentReader {
	return &AssessmentPostgreSQL{db: db}
}

func (a *AssessmentPostgreSQL) GetAssessment(ctx context.Context, assessmentID string) (*models.Assessment, error) {
	var assessment models.Assessment
	if err := a.db.WithContext(ctx).First(&assessment, "id = ?", assessmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment %s: %w", assessmentID, err)
	}
	return &assessment, nil
}
