package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockAttemptStore struct {
	mock.Mock
}

func (m *mockAttemptStore) StartAttempt(ctx context.Context, studentID, assessmentID string) (*models.Attempt, error) {
	args := m.Called(ctx, studentID, assessmentID)
	if a := args.Get(0); a != nil {
		return a.(*models.Attempt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAttemptStore) FindAttempt(ctx context.Context, studentID, assessmentID string, status *models.AttemptStatus) (*models.Attempt, error) {
	args := m.Called(ctx, studentID, assessmentID, status)
	if a := args.Get(0); a != nil {
		return a.(*models.Attempt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAttemptStore) InsertAttempt(ctx context.Context, attempt *models.Attempt) error {
	return m.Called(ctx, attempt).Error(0)
}

func (m *mockAttemptStore) CompleteAttempt(ctx context.Context, attemptID string, fields models.AttemptFields) error {
	return m.Called(ctx, attemptID, fields).Error(0)
}

func (m *mockAttemptStore) UpdateAttemptFields(ctx context.Context, attemptID string, fields models.AttemptFields) error {
	return m.Called(ctx, attemptID, fields).Error(0)
}

type mockQuestionSource struct {
	mock.Mock
}

func (m *mockQuestionSource) GetQuestions(ctx context.Context, assessmentID string) ([]models.Question, error) {
	args := m.Called(ctx, assessmentID)
	if q := args.Get(0); q != nil {
		return q.([]models.Question), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAssessmentReader struct {
	mock.Mock
}

func (m *mockAssessmentReader) GetAssessment(ctx context.Context, assessmentID string) (*models.Assessment, error) {
	args := m.Called(ctx, assessmentID)
	if a := args.Get(0); a != nil {
		return a.(*models.Assessment), args.Error(1)
	}
	return nil, args.Error(1)
}

func inProgress() interface{} {
	return mock.MatchedBy(func(s *models.AttemptStatus) bool {
		return s != nil && *s == models.AttemptInProgress
	})
}

func anyStatus() interface{} {
	return mock.MatchedBy(func(s *models.AttemptStatus) bool { return s == nil })
}
