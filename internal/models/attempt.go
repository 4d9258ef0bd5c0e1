package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptCreated    AttemptStatus = "created"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// IsTerminal reports whether no further transition is allowed.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptAbandoned
}

type Attempt struct {
	ID               string         `json:"id" gorm:"primaryKey;size:64"`
	AssessmentID     string         `json:"assessment_id" gorm:"not null;size:64;uniqueIndex:idx_attempts_student_assessment_number,priority:2;index"`
	StudentID        string         `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_attempts_student_assessment_number,priority:1;index"`
	AttemptNumber    int            `json:"attempt_number" gorm:"not null;uniqueIndex:idx_attempts_student_assessment_number,priority:3"`
	Status           AttemptStatus  `json:"status" gorm:"not null;size:20;default:in_progress;index" validate:"attempt_status"`
	StartedAt        time.Time      `json:"started_at" gorm:"not null"`
	CompletedAt      *time.Time     `json:"completed_at"`
	Score            *int           `json:"score" validate:"omitempty,min=0,max=100"`
	Answers          datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	TimeSpentSeconds *int           `json:"time_spent_seconds" validate:"omitempty,min=0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// AttemptFields is the field-level update applied when the atomic completion
// path is unavailable.
type AttemptFields struct {
	Status           *AttemptStatus
	CompletedAt      *time.Time
	Score            *int
	Answers          datatypes.JSON
	TimeSpentSeconds *int
}

// Map converts the non-nil fields into a gorm Updates map.
func (f AttemptFields) Map() map[string]interface{} {
	updates := make(map[string]interface{})
	if f.Status != nil {
		updates["status"] = *f.Status
	}
	if f.CompletedAt != nil {
		updates["completed_at"] = *f.CompletedAt
	}
	if f.Score != nil {
		updates["score"] = *f.Score
	}
	if f.Answers != nil {
		updates["answers"] = f.Answers
	}
	if f.TimeSpentSeconds != nil {
		updates["time_spent_seconds"] = *f.TimeSpentSeconds
	}
	return updates
}
