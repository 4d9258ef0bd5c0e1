package grading

import (
	"log/slog"
	"math"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// Grader folds a whole answer sheet into a ScoreResult.
type Grader struct {
	logger *slog.Logger
}

func NewGrader(logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{logger: logger}
}

// Score awards a question's points only when its answer is correct. Every
// question's points count toward the total, so essay, coding and file upload
// items lower the percentage until someone reviews them by hand.
func (g *Grader) Score(questions []*models.Question, answers models.AnswerSheet) models.ScoreResult {
	result := models.ScoreResult{
		Breakdown: make([]models.QuestionVerdict, 0, len(questions)),
	}
	if answers == nil {
		answers = models.AnswerSheet{}
	}

	for _, q := range questions {
		if q == nil {
			continue
		}
		result.TotalPoints += q.Points

		v := models.QuestionVerdict{
			QuestionID: q.ID,
			Type:       q.Type,
			Points:     q.Points,
		}

		eval, err := Evaluate(q, answers)
		if err != nil {
			g.logger.Warn("Question could not be graded automatically, scoring as incorrect",
				"question_id", q.ID,
				"question_type", q.Type,
				"error", err)
		}
		v.Answered = eval.Answered

		switch eval.Outcome {
		case OutcomeCorrect:
			v.Graded = true
			v.Correct = true
			v.Earned = q.Points
			result.EarnedPoints += q.Points
		case OutcomeUngraded:
			result.NeedsReview = append(result.NeedsReview, q.ID)
		default:
			v.Graded = true
		}

		result.Breakdown = append(result.Breakdown, v)
	}

	result.ScorePercent = Percent(result.EarnedPoints, result.TotalPoints)
	return result
}

// Percent rounds earned/total to a whole percentage, 0 when total is 0.
func Percent(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(total) * 100))
}
