package models

// QuestionVerdict is the per-question outcome of automatic scoring.
type QuestionVerdict struct {
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`
	Answered   bool         `json:"answered"`
	Graded     bool         `json:"graded"`
	Correct    bool         `json:"correct"`
	Points     int          `json:"points"`
	Earned     int          `json:"earned"`
}

type ScoreResult struct {
	ScorePercent int               `json:"score_percent"`
	TotalPoints  int               `json:"total_points"`
	EarnedPoints int               `json:"earned_points"`
	Breakdown    []QuestionVerdict `json:"breakdown"`
	// NeedsReview lists questions excluded from automatic grading.
	NeedsReview []string `json:"needs_review,omitempty"`
}
