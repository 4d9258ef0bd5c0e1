package services

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

func TestExportReview(t *testing.T) {
	essay := models.Question{ID: "q3", AssessmentID: "a1", Type: models.QuestionEssay, Prompt: "Discuss", Points: 2}
	h := newHarness(t, 10, []models.Question{choice("q1", `"A"`, "A", "B"), blanks("q2"), essay})
	h.store.On("StartAttempt", mock.Anything, "s1", "a1").Return(&models.Attempt{ID: "att-1"}, nil)
	h.store.On("CompleteAttempt", mock.Anything, "att-1", mock.Anything).Return(nil)

	s := h.started(t)
	_, err := ExportReview(s)
	assert.ErrorIs(t, err, ErrReviewNotAvailable)

	require.NoError(t, s.SetAnswer("q1", models.TextAnswer("B")))
	require.NoError(t, s.SetBlank("q2", 0, "sky"))
	require.NoError(t, s.SetBlank("q2", 1, "blue"))
	require.NoError(t, s.SetAnswer("q3", models.TextAnswer("Because.")))
	out, err := s.Submit(context.Background(), true)
	require.NoError(t, err)

	data, err := ExportReview(s)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	score, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(out.ScorePercent), score)
	assert.Contains(t, out.Score.NeedsReview, "q3")

	rows, err := f.GetRows(answersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"1", "q1", "single_choice", "pick one", "B", "1", "0", "incorrect"}, rows[1])
	assert.Equal(t, "sky | blue", rows[2][4])
	assert.Equal(t, "correct", rows[2][7])
	assert.Equal(t, "needs review", rows[3][7])
}
