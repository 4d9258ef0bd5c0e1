package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionSource {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) GetQuestions(ctx context.Context, assessmentID string) ([]models.Question, error) {
	var questions []models.Question
	if err := q.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("question_order ASC").
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to load questions for assessment %s: %w", assessmentID, err)
	}
	return questions, nil
}
