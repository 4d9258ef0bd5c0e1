package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

const (
	summarySheet = "Summary"
	answersSheet = "Answers"
)

// ExportReview renders a finished session as a workbook for manual
// grading: a summary sheet and one row per question.
func ExportReview(session *Session) ([]byte, error) {
	outcome, ok := session.Outcome()
	if !ok {
		return nil, ErrReviewNotAvailable
	}
	questions := session.Questions()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Session", session.ID},
		{"Attempt", outcome.AttemptID},
		{"Student", session.StudentID},
		{"Assessment", session.AssessmentID},
		{"Status", string(outcome.Status)},
		{"Reason", string(outcome.Reason)},
		{"Score (%)", outcome.ScorePercent},
		{"Earned Points", outcome.Score.EarnedPoints},
		{"Total Points", outcome.Score.TotalPoints},
		{"Time Spent (s)", outcome.TimeSpentSeconds},
		{"Submitted At", outcome.SubmittedAt.Format("2006-01-02 15:04:05")},
		{"Needs Review", len(outcome.Score.NeedsReview)},
	}
	for i, row := range summary {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(answersSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	headers := []interface{}{"#", "Question ID", "Type", "Prompt", "Answer", "Points", "Earned", "Status"}
	if err := writeRow(f, answersSheet, 1, headers); err != nil {
		return nil, err
	}

	verdicts := make(map[string]models.QuestionVerdict, len(outcome.Score.Breakdown))
	for _, v := range outcome.Score.Breakdown {
		verdicts[v.QuestionID] = v
	}

	for i, q := range questions {
		v := verdicts[q.ID]
		row := []interface{}{
			i + 1,
			q.ID,
			string(q.Type),
			q.Prompt,
			answerText(q, outcome.Answers),
			q.Points,
			v.Earned,
			verdictLabel(v),
		}
		if err := writeRow(f, answersSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func answerText(q *models.Question, answers models.AnswerSheet) string {
	if q.Type == models.QuestionFillInBlanks {
		if !answers.IsAnswered(q) {
			return ""
		}
		return strings.Join(answers.Blanks(q.ID, q.View().BlankCount), " | ")
	}
	v, ok := answers.Get(q.ID)
	if !ok {
		return ""
	}
	if v.IsSelection() {
		return strings.Join(v.Selection, ", ")
	}
	return v.Text
}

func verdictLabel(v models.QuestionVerdict) string {
	switch {
	case !v.Graded:
		return "needs review"
	case v.Correct:
		return "correct"
	case !v.Answered:
		return "unanswered"
	}
	return "incorrect"
}
