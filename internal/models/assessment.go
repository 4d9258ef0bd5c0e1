package models

import (
	"time"
)

// Assessment is the read-only metadata the engine needs to run a session.
type Assessment struct {
	ID          string `json:"id" gorm:"primaryKey;size:64"`
	Title       string `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Duration    int    `json:"duration" gorm:"not null" validate:"required,min=1,max=300"` // minutes
	MaxAttempts int    `json:"max_attempts" gorm:"default:1" validate:"min=0,max=10"`      // 0 means unlimited
	TimeWarning int    `json:"time_warning" gorm:"default:300"`                            // seconds left when the session warns

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:AssessmentID"`
}

func (Assessment) TableName() string {
	return "assessments"
}

func (a *Assessment) DurationSeconds() int {
	return a.Duration * 60
}
