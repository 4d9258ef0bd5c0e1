package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// CompletionHook receives every finished session's report.
type CompletionHook func(session *Session, scorePercent int, answers models.AnswerSheet)

type ManagerOption func(*SessionManager)

func WithCompletionHook(hook CompletionHook) ManagerOption {
	return func(m *SessionManager) { m.hook = hook }
}

func WithSessionIDs(gen func() string) ManagerOption {
	return func(m *SessionManager) { m.newID = gen }
}

// SessionManager is the in-memory registry of running sessions. A student
// has at most one live session per assessment; starting again resumes it.
type SessionManager struct {
	deps      SessionDeps
	retention time.Duration
	logger    *slog.Logger
	hook      CompletionHook
	newID     func() string

	starts   singleflight.Group
	mu       sync.RWMutex
	sessions map[string]*Session
	active   map[string]string
}

func NewSessionManager(deps SessionDeps, retention time.Duration, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		deps:      deps,
		retention: retention,
		logger:    deps.Logger.With("component", "session_manager"),
		newID:     uuid.NewString,
		sessions:  make(map[string]*Session),
		active:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func activeKey(studentID, assessmentID string) string {
	return studentID + "|" + assessmentID
}

// StartSession loads and starts a session, or returns the student's live
// session for the assessment.
func (m *SessionManager) StartSession(ctx context.Context, studentID, assessmentID string) (*Session, error) {
	key := activeKey(studentID, assessmentID)

	v, err, _ := m.starts.Do(key, func() (interface{}, error) {
		if existing := m.liveSession(key); existing != nil {
			m.logger.Info("Resuming live session", "session_id", existing.ID)
			return existing, nil
		}

		session := NewSession(m.newID(), studentID, assessmentID, m.deps)
		session.OnComplete(func(scorePercent int, answers models.AnswerSheet) {
			m.finish(session, scorePercent, answers)
		})
		if err := session.Load(ctx); err != nil {
			return nil, err
		}
		if err := session.Start(ctx); err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.sessions[session.ID] = session
		m.active[key] = session.ID
		m.mu.Unlock()
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *SessionManager) liveSession(key string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.active[key]
	if !ok {
		return nil
	}
	session := m.sessions[id]
	if session == nil {
		return nil
	}
	select {
	case <-session.Done():
		return nil
	default:
		return session
	}
}

func (m *SessionManager) finish(session *Session, scorePercent int, answers models.AnswerSheet) {
	key := activeKey(session.StudentID, session.AssessmentID)
	m.mu.Lock()
	if m.active[key] == session.ID {
		delete(m.active, key)
	}
	m.mu.Unlock()

	if m.hook != nil {
		m.hook(session, scorePercent, answers)
	}
}

// Get returns a session owned by studentID.
func (m *SessionManager) Get(sessionID, studentID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if session.StudentID != studentID {
		return nil, &PermissionError{StudentID: studentID, SessionID: sessionID, Action: "access"}
	}
	return session, nil
}

// Count returns the number of registered sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap drops finished sessions older than the retention period.
func (m *SessionManager) Reap(now time.Time) int {
	cutoff := now.Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	reaped := 0
	for id, session := range m.sessions {
		if session.finishedBefore(cutoff) {
			delete(m.sessions, id)
			reaped++
		}
	}
	if reaped > 0 {
		m.logger.Info("Reaped finished sessions", "count", reaped)
	}
	return reaped
}

// Run reaps on every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Reap(now)
		}
	}
}

// Shutdown stops every live countdown. Attempts of unfinished sessions stay
// in progress in the store.
func (m *SessionManager) Shutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, session := range m.sessions {
		session.Abandon()
	}
	m.logger.Info("Session manager stopped", "sessions", len(m.sessions))
}
