package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/repositories"
)

// StrategyStatus is what one open strategy decided.
type StrategyStatus int

const (
	// StrategyOK ends the chain with an attempt.
	StrategyOK StrategyStatus = iota
	// StrategyRetry hands the failure cause to the next strategy.
	StrategyRetry
	// StrategyFail aborts the chain.
	StrategyFail
)

type strategyResult struct {
	status  StrategyStatus
	attempt *models.Attempt
	cause   error
}

func opened(attempt *models.Attempt) strategyResult {
	return strategyResult{status: StrategyOK, attempt: attempt}
}

func deferred(cause error) strategyResult {
	return strategyResult{status: StrategyRetry, cause: cause}
}

func aborted(cause error) strategyResult {
	return strategyResult{status: StrategyFail, cause: cause}
}

type openRequest struct {
	studentID    string
	assessmentID string
	// cause is the most recent failure worth reacting to.
	cause error
}

type openStrategy struct {
	name    string
	durable bool
	run     func(ctx context.Context, req *openRequest) strategyResult
}

// OpenResult identifies the attempt a session writes to. A non-durable
// attempt only exists in memory. Answers holds what an adopted attempt had
// already stored.
type OpenResult struct {
	AttemptID     string             `json:"attempt_id"`
	AttemptNumber int                `json:"attempt_number"`
	StartedAt     time.Time          `json:"started_at"`
	Durable       bool               `json:"durable"`
	Strategy      string             `json:"strategy"`
	Answers       models.AnswerSheet `json:"-"`
}

// Completion is the final state written when a session is submitted.
type Completion struct {
	ScorePercent     int
	Answers          models.AnswerSheet
	TimeSpentSeconds int
	CompletedAt      time.Time
}

// CompleteOutcome reports how far persistence got. Completion never fails
// from the caller's point of view.
type CompleteOutcome struct {
	Persisted bool   `json:"persisted"`
	Path      string `json:"path,omitempty"`
	Err       error  `json:"-"`
}

type LifecycleOption func(*AttemptLifecycle)

// WithCallTimeout bounds every individual store call.
func WithCallTimeout(d time.Duration) LifecycleOption {
	return func(l *AttemptLifecycle) { l.callTimeout = d }
}

// WithIDGenerator replaces the generator used for client-side attempt ids.
func WithIDGenerator(gen func() string) LifecycleOption {
	return func(l *AttemptLifecycle) { l.newID = gen }
}

// AttemptLifecycle creates and completes attempts against an unreliable
// store. Creation walks an ordered chain of strategies and always ends with
// an attempt unless the context is cancelled.
type AttemptLifecycle struct {
	store       repositories.AttemptStore
	logger      *slog.Logger
	callTimeout time.Duration
	newID       func() string
	now         func() time.Time
	strategies  []openStrategy
}

func NewAttemptLifecycle(store repositories.AttemptStore, logger *slog.Logger, opts ...LifecycleOption) *AttemptLifecycle {
	l := &AttemptLifecycle{
		store:       store,
		logger:      logger,
		callTimeout: 10 * time.Second,
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	l.strategies = []openStrategy{
		{name: "primary", durable: true, run: l.startPrimary},
		{name: "adopt_in_progress", durable: true, run: l.adoptInProgress},
		{name: "adopt_latest_on_limit", durable: true, run: l.adoptLatestOnLimit},
		{name: "insert_client_id", durable: true, run: l.insertClientID},
		{name: "requery_on_conflict", durable: true, run: l.requeryOnConflict},
		{name: "local", durable: false, run: l.localAttempt},
	}
	return l
}

func (l *AttemptLifecycle) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.callTimeout)
}

// Open runs the strategy chain for a student starting an assessment.
func (l *AttemptLifecycle) Open(ctx context.Context, studentID, assessmentID string) (*OpenResult, error) {
	req := &openRequest{studentID: studentID, assessmentID: assessmentID}

	for _, strategy := range l.strategies {
		res := strategy.run(ctx, req)
		switch res.status {
		case StrategyOK:
			l.logger.Info("Attempt opened",
				"attempt_id", res.attempt.ID,
				"student_id", studentID,
				"assessment_id", assessmentID,
				"strategy", strategy.name,
				"durable", strategy.durable)
			return &OpenResult{
				AttemptID:     res.attempt.ID,
				AttemptNumber: res.attempt.AttemptNumber,
				StartedAt:     res.attempt.StartedAt,
				Durable:       strategy.durable,
				Strategy:      strategy.name,
				Answers:       l.storedAnswers(res.attempt),
			}, nil
		case StrategyFail:
			l.logger.Error("Attempt open aborted",
				"student_id", studentID,
				"assessment_id", assessmentID,
				"strategy", strategy.name,
				"error", res.cause)
			return nil, fmt.Errorf("%w: %w", ErrAttemptCreateFailed, res.cause)
		case StrategyRetry:
			if res.cause != nil {
				req.cause = res.cause
			}
			l.logger.Debug("Attempt strategy deferred",
				"strategy", strategy.name,
				"cause", req.cause)
		}
	}

	// the local strategy always succeeds, so this is unreachable in practice
	return nil, fmt.Errorf("%w: %w", ErrAttemptCreateFailed, req.cause)
}

// storedAnswers decodes the answers column. Malformed entries count as
// unanswered and only show up in the log.
func (l *AttemptLifecycle) storedAnswers(attempt *models.Attempt) models.AnswerSheet {
	sheet, skipped, err := models.DecodeAnswerSheet(attempt.Answers)
	if err != nil {
		l.logger.Warn("Stored answers unreadable, starting empty", "attempt_id", attempt.ID, "error", err)
		return make(models.AnswerSheet)
	}
	if len(skipped) > 0 {
		l.logger.Warn("Dropped malformed stored answers", "attempt_id", attempt.ID, "keys", skipped)
	}
	return sheet
}

func (l *AttemptLifecycle) startPrimary(ctx context.Context, req *openRequest) strategyResult {
	callCtx, cancel := l.call(ctx)
	defer cancel()

	attempt, err := l.store.StartAttempt(callCtx, req.studentID, req.assessmentID)
	if err == nil {
		return opened(attempt)
	}
	if ctx.Err() != nil {
		return aborted(ctx.Err())
	}
	l.logger.Warn("Primary attempt start failed", "student_id", req.studentID, "assessment_id", req.assessmentID, "error", err)
	return deferred(err)
}

func (l *AttemptLifecycle) adoptInProgress(ctx context.Context, req *openRequest) strategyResult {
	callCtx, cancel := l.call(ctx)
	defer cancel()

	status := models.AttemptInProgress
	attempt, err := l.store.FindAttempt(callCtx, req.studentID, req.assessmentID, &status)
	if err == nil {
		return opened(attempt)
	}
	if ctx.Err() != nil {
		return aborted(ctx.Err())
	}
	// a failed lookup must not mask why the start failed
	return deferred(nil)
}

func (l *AttemptLifecycle) adoptLatestOnLimit(ctx context.Context, req *openRequest) strategyResult {
	if !repositories.IsMaxAttemptsExceeded(req.cause) {
		return deferred(nil)
	}

	callCtx, cancel := l.call(ctx)
	defer cancel()

	attempt, err := l.store.FindAttempt(callCtx, req.studentID, req.assessmentID, nil)
	if err == nil {
		return opened(attempt)
	}
	if ctx.Err() != nil {
		return aborted(ctx.Err())
	}
	return deferred(nil)
}

func (l *AttemptLifecycle) insertClientID(ctx context.Context, req *openRequest) strategyResult {
	if !repositories.IsConstraintViolation(req.cause) {
		return deferred(nil)
	}

	callCtx, cancel := l.call(ctx)
	defer cancel()

	attempt := &models.Attempt{
		ID:           l.newID(),
		AssessmentID: req.assessmentID,
		StudentID:    req.studentID,
		Status:       models.AttemptInProgress,
		StartedAt:    l.now(),
	}
	err := l.store.InsertAttempt(callCtx, attempt)
	if err == nil {
		return opened(attempt)
	}
	if ctx.Err() != nil {
		return aborted(ctx.Err())
	}
	l.logger.Warn("Client-id attempt insert failed", "attempt_id", attempt.ID, "error", err)
	return deferred(err)
}

func (l *AttemptLifecycle) requeryOnConflict(ctx context.Context, req *openRequest) strategyResult {
	if !repositories.IsUniqueViolation(req.cause) {
		return deferred(nil)
	}

	callCtx, cancel := l.call(ctx)
	defer cancel()

	status := models.AttemptInProgress
	attempt, err := l.store.FindAttempt(callCtx, req.studentID, req.assessmentID, &status)
	if errors.Is(err, repositories.ErrAttemptNotFound) {
		attempt, err = l.store.FindAttempt(callCtx, req.studentID, req.assessmentID, nil)
	}
	if err == nil {
		return opened(attempt)
	}
	if ctx.Err() != nil {
		return aborted(ctx.Err())
	}
	return deferred(nil)
}

func (l *AttemptLifecycle) localAttempt(ctx context.Context, req *openRequest) strategyResult {
	if ctx.Err() != nil {
		return aborted(ctx.Err())
	}
	l.logger.Warn("Falling back to a local attempt",
		"student_id", req.studentID,
		"assessment_id", req.assessmentID,
		"cause", req.cause)
	return opened(&models.Attempt{
		ID:           "local-" + l.newID(),
		AssessmentID: req.assessmentID,
		StudentID:    req.studentID,
		Status:       models.AttemptInProgress,
		StartedAt:    l.now(),
	})
}

// Complete writes the final score and answers. The atomic completion runs
// first; a plain field update is the fallback.
func (l *AttemptLifecycle) Complete(ctx context.Context, attempt *OpenResult, c Completion) CompleteOutcome {
	answers, err := json.Marshal(c.Answers)
	if err != nil {
		l.logger.Warn("Failed to encode answers, persisting without them", "attempt_id", attempt.AttemptID, "error", err)
		answers = nil
	}
	if c.CompletedAt.IsZero() {
		c.CompletedAt = l.now()
	}

	status := models.AttemptCompleted
	fields := models.AttemptFields{
		Status:           &status,
		CompletedAt:      &c.CompletedAt,
		Score:            &c.ScorePercent,
		Answers:          answers,
		TimeSpentSeconds: &c.TimeSpentSeconds,
	}

	callCtx, cancel := l.call(ctx)
	primaryErr := l.store.CompleteAttempt(callCtx, attempt.AttemptID, fields)
	cancel()
	if primaryErr == nil {
		return CompleteOutcome{Persisted: true, Path: "complete"}
	}

	callCtx, cancel = l.call(ctx)
	fallbackErr := l.store.UpdateAttemptFields(callCtx, attempt.AttemptID, fields)
	cancel()
	if fallbackErr == nil {
		l.logger.Info("Attempt completed through field update",
			"attempt_id", attempt.AttemptID,
			"complete_error", primaryErr)
		return CompleteOutcome{Persisted: true, Path: "update_fields"}
	}

	err = errors.Join(primaryErr, fallbackErr)
	if attempt.Durable {
		l.logger.Error("Failed to persist attempt completion",
			"attempt_id", attempt.AttemptID,
			"score", c.ScorePercent,
			"error", err)
	} else {
		l.logger.Debug("Local attempt completion not persisted",
			"attempt_id", attempt.AttemptID,
			"score", c.ScorePercent,
			"error", err)
	}
	return CompleteOutcome{Persisted: false, Err: err}
}
