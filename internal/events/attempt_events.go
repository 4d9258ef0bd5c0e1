package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the domain events emitted by the engine
type EventType string

const (
	EventAttemptStarted        EventType = "attempt.started"
	EventAttemptSubmitted      EventType = "attempt.submitted"
	EventManualGradingRequired EventType = "grading.manual_required"
)

const (
	eventSource  = "attempt-engine"
	eventVersion = "1.0"
)

// Event is the envelope for every published event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func newEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

type AttemptStartedEvent struct {
	AttemptID       string    `json:"attempt_id"`
	AssessmentID    string    `json:"assessment_id"`
	StudentID       string    `json:"student_id"`
	Durable         bool      `json:"durable"`
	Strategy        string    `json:"strategy"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

type AttemptSubmittedEvent struct {
	AttemptID        string    `json:"attempt_id"`
	AssessmentID     string    `json:"assessment_id"`
	StudentID        string    `json:"student_id"`
	ScorePercent     int       `json:"score_percent"`
	EarnedPoints     int       `json:"earned_points"`
	TotalPoints      int       `json:"total_points"`
	Status           string    `json:"status"`
	Reason           string    `json:"reason"` // manual or expired
	Persisted        bool      `json:"persisted"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

type ManualGradingRequiredEvent struct {
	AttemptID    string   `json:"attempt_id"`
	AssessmentID string   `json:"assessment_id"`
	StudentID    string   `json:"student_id"`
	QuestionIDs  []string `json:"question_ids"`
}

func NewAttemptStartedEvent(data AttemptStartedEvent) *Event {
	return newEvent(EventAttemptStarted, data)
}

func NewAttemptSubmittedEvent(data AttemptSubmittedEvent) *Event {
	e := newEvent(EventAttemptSubmitted, data)
	e.Metadata = map[string]interface{}{"reason": data.Reason}
	return e
}

func NewManualGradingRequiredEvent(data ManualGradingRequiredEvent) *Event {
	e := newEvent(EventManualGradingRequired, data)
	e.Metadata = map[string]interface{}{"pending_count": len(data.QuestionIDs)}
	return e
}
