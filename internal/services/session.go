package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SAP-F-2025/attempt-engine/internal/events"
	"github.com/SAP-F-2025/attempt-engine/internal/grading"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/repositories"
	"github.com/SAP-F-2025/attempt-engine/internal/sandbox"
	"github.com/SAP-F-2025/attempt-engine/internal/timer"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

type SessionState string

const (
	SessionLoading    SessionState = "loading"
	SessionReady      SessionState = "ready"
	SessionInProgress SessionState = "in_progress"
	SessionSubmitting SessionState = "submitting"
	SessionDone       SessionState = "done"
)

type SubmitReason string

const (
	SubmitManual  SubmitReason = "manual"
	SubmitExpired SubmitReason = "expired"
)

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Questions   repositories.QuestionSource
	Assessments repositories.AssessmentReader
	Lifecycle   *AttemptLifecycle
	Grader      *grading.Grader
	Runner      sandbox.Runner
	Publisher   events.EventPublisher
	Logger      *slog.Logger
	// Validator checks loaded questions; nil falls back to the per-kind
	// invariants alone.
	Validator   *utils.Validator
	// Ticker overrides the wall-clock tick source.
	Ticker      timer.TickerFactory
}

// SubmitOutcome is the final report of a session.
type SubmitOutcome struct {
	AttemptID        string               `json:"attempt_id"`
	ScorePercent     int                  `json:"score_percent"`
	Score            models.ScoreResult   `json:"score"`
	Answers          models.AnswerSheet   `json:"answers"`
	Status           models.AttemptStatus `json:"status"`
	Reason           SubmitReason         `json:"reason"`
	Persisted        bool                 `json:"persisted"`
	TimeSpentSeconds int                  `json:"time_spent_seconds"`
	SubmittedAt      time.Time            `json:"submitted_at"`
}

type SubmitPreview struct {
	Answered         int      `json:"answered"`
	Total            int      `json:"total"`
	Unanswered       []string `json:"unanswered"`
	RemainingSeconds int      `json:"remaining_seconds"`
}

type SessionSnapshot struct {
	ID               string               `json:"id"`
	StudentID        string               `json:"student_id"`
	AssessmentID     string               `json:"assessment_id"`
	State            SessionState         `json:"state"`
	AttemptID        string               `json:"attempt_id,omitempty"`
	Durable          bool                 `json:"durable"`
	CurrentIndex     int                  `json:"current_index"`
	TotalQuestions   int                  `json:"total_questions"`
	Answered         int                  `json:"answered"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	TimeWarning      bool                 `json:"time_warning"`
	ScorePercent     *int                 `json:"score_percent,omitempty"`
	AttemptStatus    models.AttemptStatus `json:"attempt_status,omitempty"`
}

// QuestionState is one question as shown to the student with the current
// answer and the latest code run.
type QuestionState struct {
	Index    int                     `json:"index"`
	Question models.QuestionView     `json:"question"`
	Answer   *models.AnswerValue     `json:"answer,omitempty"`
	Blanks   []string                `json:"blanks,omitempty"`
	Result   *models.ExecutionResult `json:"result,omitempty"`
	Running  bool                    `json:"running"`
}

// Session drives one student through one assessment. All state changes go
// through mu; the timer goroutine and sandbox runs are the only other
// goroutines touching it.
type Session struct {
	ID           string
	StudentID    string
	AssessmentID string

	deps       SessionDeps
	logger     *slog.Logger
	timer      *timer.Controller
	results    *sandbox.ResultStore
	submitting atomic.Bool
	onComplete func(scorePercent int, answers models.AnswerSheet)

	mu              sync.Mutex
	state           SessionState
	questions       []*models.Question
	byID            map[string]*models.Question
	durationSeconds int
	warnSeconds     int
	index           int
	answers         models.AnswerSheet
	attempt         *OpenResult
	attemptErr      error
	outcome         *SubmitOutcome
	finishedAt      time.Time

	attemptReady chan struct{}
	done         chan struct{}
}

func NewSession(id, studentID, assessmentID string, deps SessionDeps) *Session {
	s := &Session{
		ID:           id,
		StudentID:    studentID,
		AssessmentID: assessmentID,
		deps:         deps,
		logger:       deps.Logger.With("session_id", id, "student_id", studentID, "assessment_id", assessmentID),
		results:      sandbox.NewResultStore(),
		state:        SessionLoading,
		answers:      make(models.AnswerSheet),
		attemptReady: make(chan struct{}),
		done:         make(chan struct{}),
	}

	opts := []timer.Option{timer.WithGuard(s.submitting.Load)}
	if deps.Ticker != nil {
		opts = append(opts, timer.WithTicker(deps.Ticker))
	}
	s.timer = timer.New(opts...)
	return s
}

// OnComplete registers the outward report. It must be set before Start.
func (s *Session) OnComplete(fn func(scorePercent int, answers models.AnswerSheet)) {
	s.mu.Lock()
	s.onComplete = fn
	s.mu.Unlock()
}

// Done is closed once the session has a final outcome.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Load fetches the assessment and its questions. Questions that fail their
// invariants are kept and logged; the scorer treats them as incorrect.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionLoading {
		s.mu.Unlock()
		return fmt.Errorf("%w: load in state %s", ErrSessionNotReady, s.state)
	}
	s.mu.Unlock()

	assessment, err := s.deps.Assessments.GetAssessment(ctx, s.AssessmentID)
	if err != nil {
		return fmt.Errorf("failed to load assessment: %w", err)
	}
	loaded, err := s.deps.Questions.GetQuestions(ctx, s.AssessmentID)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}

	questions := make([]*models.Question, len(loaded))
	byID := make(map[string]*models.Question, len(loaded))
	for i := range loaded {
		q := &loaded[i]
		if err := s.checkQuestion(q); err != nil {
			s.logger.Warn("Question violates invariants", "question_id", q.ID, "error", err)
		}
		questions[i] = q
		byID[q.ID] = q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = questions
	s.byID = byID
	s.durationSeconds = assessment.DurationSeconds()
	s.warnSeconds = assessment.TimeWarning
	s.state = SessionReady

	s.logger.Info("Session loaded",
		"questions", len(questions),
		"duration_seconds", s.durationSeconds)
	return nil
}

func (s *Session) checkQuestion(q *models.Question) error {
	if s.deps.Validator != nil {
		return s.deps.Validator.ValidateQuestion(q)
	}
	return q.CheckInvariants()
}

// Start opens the attempt in the background and starts the countdown. The
// student can answer immediately; submission waits for the attempt.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionReady {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: start in state %s", ErrSessionNotReady, state)
	}
	s.state = SessionInProgress
	duration := s.durationSeconds
	s.mu.Unlock()

	go s.openAttempt(context.WithoutCancel(ctx))

	if err := s.timer.Start(duration, s.onTick, s.onExpire); err != nil {
		return fmt.Errorf("failed to start timer: %w", err)
	}
	s.logger.Info("Session started")
	return nil
}

func (s *Session) openAttempt(ctx context.Context) {
	defer close(s.attemptReady)

	attempt, err := s.deps.Lifecycle.Open(ctx, s.StudentID, s.AssessmentID)

	s.mu.Lock()
	s.attempt = attempt
	s.attemptErr = err
	duration := s.durationSeconds
	restored := 0
	if attempt != nil {
		// answers given while the attempt was opening win over stored ones
		for key, value := range attempt.Answers {
			if _, ok := s.answers[key]; !ok {
				s.answers[key] = value
				restored++
			}
		}
	}
	s.mu.Unlock()

	if restored > 0 {
		s.logger.Info("Restored stored answers", "attempt_id", attempt.AttemptID, "answers", restored)
	}

	if err != nil {
		s.logger.Error("Attempt could not be opened", "error", err)
		return
	}
	s.publish(ctx, events.NewAttemptStartedEvent(events.AttemptStartedEvent{
		AttemptID:       attempt.AttemptID,
		AssessmentID:    s.AssessmentID,
		StudentID:       s.StudentID,
		Durable:         attempt.Durable,
		Strategy:        attempt.Strategy,
		StartedAt:       attempt.StartedAt,
		DurationSeconds: duration,
	}))
}

func (s *Session) onTick(remaining int) {
	s.mu.Lock()
	warn := s.warnSeconds
	s.mu.Unlock()

	switch {
	case warn > 0 && remaining == warn:
		s.logger.Info("Session entering time warning", "remaining_seconds", remaining)
	case remaining > 0 && remaining%60 == 0:
		s.logger.Debug("Session time remaining", "remaining_seconds", remaining)
	}
}

func (s *Session) onExpire() {
	s.logger.Info("Session time expired, submitting")
	if _, err := s.submit(context.Background(), SubmitExpired); err != nil && !errors.Is(err, ErrSubmitInProgress) {
		s.logger.Warn("Expiry submission skipped", "error", err)
	}
}

// ===== NAVIGATION =====

func (s *Session) navigable() error {
	switch s.state {
	case SessionLoading:
		return ErrSessionNotReady
	case SessionDone:
		return ErrSessionFinished
	}
	return nil
}

func (s *Session) Next() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.navigable(); err != nil {
		return s.index, err
	}
	if s.index < len(s.questions)-1 {
		s.index++
	}
	return s.index, nil
}

func (s *Session) Prev() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.navigable(); err != nil {
		return s.index, err
	}
	if s.index > 0 {
		s.index--
	}
	return s.index, nil
}

func (s *Session) Jump(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.navigable(); err != nil {
		return s.index, err
	}
	if index < 0 || index >= len(s.questions) {
		return s.index, fmt.Errorf("%w: %d", ErrQuestionIndexRange, index)
	}
	s.index = index
	return s.index, nil
}

// Question returns the question at index together with its answer state.
func (s *Session) Question(index int) (*QuestionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionLoading {
		return nil, ErrSessionNotReady
	}
	if index < 0 || index >= len(s.questions) {
		return nil, fmt.Errorf("%w: %d", ErrQuestionIndexRange, index)
	}

	q := s.questions[index]
	view := q.View()
	qs := &QuestionState{Index: index, Question: view}
	if q.Type == models.QuestionFillInBlanks {
		if s.answers.IsAnswered(q) {
			qs.Blanks = s.answers.Blanks(q.ID, view.BlankCount)
		}
	} else if v, ok := s.answers.Get(q.ID); ok {
		qs.Answer = &v
	}
	qs.Result, _ = s.results.Get(q.ID)
	qs.Running = s.results.Running(q.ID)
	return qs, nil
}

// ===== ANSWERS =====

// editable must be called with mu held.
func (s *Session) editable(questionID string) (*models.Question, error) {
	switch s.state {
	case SessionInProgress:
	case SessionSubmitting:
		return nil, ErrSubmitInProgress
	case SessionDone:
		return nil, ErrSessionFinished
	default:
		return nil, ErrSessionNotActive
	}
	q, ok := s.byID[questionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}
	return q, nil
}

// SetAnswer records value for questionID; an empty value clears it.
func (s *Session) SetAnswer(questionID string, value models.AnswerValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.editable(questionID)
	if err != nil {
		return err
	}
	if q.Type == models.QuestionFillInBlanks {
		return NewValidationError("answer", "fill-in-blanks answers are set per blank", questionID)
	}
	s.answers.Set(questionID, value)
	return nil
}

// SetBlank records the answer to one blank of a fill-in-blanks question.
func (s *Session) SetBlank(questionID string, blank int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.editable(questionID)
	if err != nil {
		return err
	}
	if q.Type != models.QuestionFillInBlanks {
		return NewValidationError("blank", "question has no blanks", questionID)
	}
	count := q.View().BlankCount
	if blank < 0 || (count > 0 && blank >= count) {
		return fmt.Errorf("%w: %d", ErrBlankIndexRange, blank)
	}
	s.answers.Set(models.BlankKey(questionID, blank), models.TextAnswer(text))
	return nil
}

func (s *Session) ClearAnswer(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.editable(questionID); err != nil {
		return err
	}
	s.answers.DeleteQuestion(questionID)
	return nil
}

// ===== CODE EXECUTION =====

// RunCode records source as the answer and runs it in the sandbox. The
// returned channel yields exactly one result. The run keeps going if the
// student navigates away and its result still lands in the question's slot.
func (s *Session) RunCode(ctx context.Context, questionID, source, stdin string) (<-chan *models.ExecutionResult, error) {
	s.mu.Lock()
	q, err := s.editable(questionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	body, err := q.Body()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to decode question %s: %w", questionID, err)
	}
	coding, isCoding := body.(models.CodingBody)
	if !isCoding {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotCodingQuestion, questionID)
	}
	if strings.TrimSpace(source) == "" {
		s.mu.Unlock()
		return nil, sandbox.ErrEmptySource
	}
	if _, err := sandbox.ResolveLanguage(coding.Language); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.answers.Set(questionID, models.TextAnswer(source))
	s.mu.Unlock()

	s.results.Begin(questionID)
	out := make(chan *models.ExecutionResult, 1)
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(out)
		result, err := s.deps.Runner.Run(runCtx, coding.Language, source, stdin)
		if err != nil {
			s.logger.Warn("Code run failed", "question_id", questionID, "error", err)
			result = sandbox.FailureResult(err)
		}
		s.logger.Debug("Code run finished", "question_id", questionID, "verdict", result.Verdict, "succeeded", result.Succeeded())
		s.results.Put(questionID, result)
		out <- result
	}()
	return out, nil
}

// Result returns the latest execution result for questionID.
func (s *Session) Result(questionID string) (*models.ExecutionResult, bool) {
	result, _ := s.results.Get(questionID)
	return result, s.results.Running(questionID)
}

// ===== SUBMISSION =====

func (s *Session) Preview() (*SubmitPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionLoading {
		return nil, ErrSessionNotReady
	}

	preview := &SubmitPreview{
		Total:            len(s.questions),
		Unanswered:       []string{},
		RemainingSeconds: s.remainingLocked(),
	}
	for _, q := range s.questions {
		if s.answers.IsAnswered(q) {
			preview.Answered++
		} else {
			preview.Unanswered = append(preview.Unanswered, q.ID)
		}
	}
	return preview, nil
}

// Submit finishes the session on the student's request. confirmed must be
// true: the caller shows the preview first.
func (s *Session) Submit(ctx context.Context, confirmed bool) (*SubmitOutcome, error) {
	if !confirmed {
		return nil, ErrSubmitNotConfirmed
	}
	return s.submit(ctx, SubmitManual)
}

// submit is shared by manual submission and expiry. Exactly one caller gets
// past the state check; later callers see ErrSubmitInProgress or the final
// outcome.
func (s *Session) submit(ctx context.Context, reason SubmitReason) (*SubmitOutcome, error) {
	s.mu.Lock()
	switch s.state {
	case SessionInProgress:
	case SessionSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	case SessionDone:
		outcome := s.outcome
		s.mu.Unlock()
		return outcome, nil
	default:
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: submit in state %s", ErrSessionNotActive, state)
	}
	s.state = SessionSubmitting
	s.submitting.Store(true)
	remaining := s.timer.Remaining()
	questions := s.questions
	duration := s.durationSeconds
	s.mu.Unlock()

	s.timer.Stop()

	// code runs are not awaited; attempt creation is
	<-s.attemptReady

	// answers are read after the attempt so restored ones are included
	s.mu.Lock()
	attempt := s.attempt
	answers := s.answers.Clone()
	s.mu.Unlock()

	score := s.deps.Grader.Score(questions, answers)
	timeSpent := min(max(duration-remaining, 0), duration)

	outcome := &SubmitOutcome{
		ScorePercent:     score.ScorePercent,
		Score:            score,
		Answers:          answers,
		Status:           models.AttemptCompleted,
		Reason:           reason,
		TimeSpentSeconds: timeSpent,
		SubmittedAt:      time.Now().UTC(),
	}

	persistCtx := context.WithoutCancel(ctx)
	if attempt == nil {
		outcome.Status = models.AttemptAbandoned
	} else {
		outcome.AttemptID = attempt.AttemptID
		complete := s.deps.Lifecycle.Complete(persistCtx, attempt, Completion{
			ScorePercent:     score.ScorePercent,
			Answers:          answers,
			TimeSpentSeconds: timeSpent,
			CompletedAt:      outcome.SubmittedAt,
		})
		outcome.Persisted = complete.Persisted
		if reason == SubmitExpired && !complete.Persisted && !attempt.Durable {
			outcome.Status = models.AttemptAbandoned
		}
	}

	s.mu.Lock()
	s.state = SessionDone
	s.outcome = outcome
	s.finishedAt = time.Now()
	onComplete := s.onComplete
	s.mu.Unlock()
	close(s.done)

	s.logger.Info("Session submitted",
		"attempt_id", outcome.AttemptID,
		"reason", reason,
		"score_percent", outcome.ScorePercent,
		"persisted", outcome.Persisted,
		"status", outcome.Status)

	if onComplete != nil {
		onComplete(outcome.ScorePercent, answers)
	}
	s.publishSubmitted(persistCtx, outcome)
	return outcome, nil
}

func (s *Session) publishSubmitted(ctx context.Context, outcome *SubmitOutcome) {
	s.publish(ctx, events.NewAttemptSubmittedEvent(events.AttemptSubmittedEvent{
		AttemptID:        outcome.AttemptID,
		AssessmentID:     s.AssessmentID,
		StudentID:        s.StudentID,
		ScorePercent:     outcome.ScorePercent,
		EarnedPoints:     outcome.Score.EarnedPoints,
		TotalPoints:      outcome.Score.TotalPoints,
		Status:           string(outcome.Status),
		Reason:           string(outcome.Reason),
		Persisted:        outcome.Persisted,
		TimeSpentSeconds: outcome.TimeSpentSeconds,
		SubmittedAt:      outcome.SubmittedAt,
	}))
	if len(outcome.Score.NeedsReview) > 0 {
		s.publish(ctx, events.NewManualGradingRequiredEvent(events.ManualGradingRequiredEvent{
			AttemptID:    outcome.AttemptID,
			AssessmentID: s.AssessmentID,
			StudentID:    s.StudentID,
			QuestionIDs:  outcome.Score.NeedsReview,
		}))
	}
}

func (s *Session) publish(ctx context.Context, event *events.Event) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

// ===== INSPECTION =====

// remainingLocked must be called with mu held.
func (s *Session) remainingLocked() int {
	switch s.state {
	case SessionLoading, SessionReady:
		return s.durationSeconds
	}
	return s.timer.Remaining()
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:               s.ID,
		StudentID:        s.StudentID,
		AssessmentID:     s.AssessmentID,
		State:            s.state,
		CurrentIndex:     s.index,
		TotalQuestions:   len(s.questions),
		Answered:         s.answers.AnsweredCount(s.questions),
		RemainingSeconds: s.remainingLocked(),
	}
	if s.state == SessionInProgress && s.warnSeconds > 0 {
		snap.TimeWarning = snap.RemainingSeconds <= s.warnSeconds
	}
	if s.attempt != nil {
		snap.AttemptID = s.attempt.AttemptID
		snap.Durable = s.attempt.Durable
		snap.AttemptStatus = models.AttemptInProgress
	}
	if s.outcome != nil {
		score := s.outcome.ScorePercent
		snap.ScorePercent = &score
		snap.AttemptStatus = s.outcome.Status
	}
	return snap
}

// Outcome returns the final report once the session is done.
func (s *Session) Outcome() (*SubmitOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.outcome != nil
}

// Questions returns the loaded questions in order.
func (s *Session) Questions() []*models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Question(nil), s.questions...)
}

// finishedBefore reports whether the session ended before cutoff.
func (s *Session) finishedBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SessionDone && s.finishedAt.Before(cutoff)
}

// Abandon stops the countdown without completing the attempt.
func (s *Session) Abandon() {
	s.timer.Stop()
}
