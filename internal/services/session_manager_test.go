package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

func TestSessionManager_ResumesLiveSession(t *testing.T) {
	h := newHarness(t, 10, []models.Question{choice("q1", `0`, "A", "B")})
	h.store.On("StartAttempt", mock.Anything, "s1", "a1").Return(&models.Attempt{ID: "att-1"}, nil).Once()

	ids := []string{"sess-1", "sess-2"}
	var mu sync.Mutex
	m := NewSessionManager(h.deps, time.Minute, WithSessionIDs(func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	first, err := m.StartSession(context.Background(), "s1", "a1")
	require.NoError(t, err)
	second, err := m.StartSession(context.Background(), "s1", "a1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Count())
}

func TestSessionManager_GetChecksOwnership(t *testing.T) {
	h := newHarness(t, 10, []models.Question{choice("q1", `0`, "A", "B")})
	h.store.On("StartAttempt", mock.Anything, "s1", "a1").Return(&models.Attempt{ID: "att-1"}, nil)

	m := NewSessionManager(h.deps, time.Minute)
	session, err := m.StartSession(context.Background(), "s1", "a1")
	require.NoError(t, err)

	got, err := m.Get(session.ID, "s1")
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = m.Get(session.ID, "intruder")
	assert.True(t, IsForbidden(err))

	_, err = m.Get("nope", "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, IsNotFound(err))
}

func TestSessionManager_CompletionHookAndReap(t *testing.T) {
	h := newHarness(t, 10, []models.Question{choice("q1", `0`, "A", "B")})
	h.store.On("StartAttempt", mock.Anything, "s1", "a1").Return(&models.Attempt{ID: "att-1"}, nil)
	h.store.On("CompleteAttempt", mock.Anything, "att-1", mock.Anything).Return(nil)

	hooked := make(chan int, 1)
	m := NewSessionManager(h.deps, time.Minute, WithCompletionHook(func(s *Session, score int, answers models.AnswerSheet) {
		hooked <- score
	}))

	session, err := m.StartSession(context.Background(), "s1", "a1")
	require.NoError(t, err)
	require.NoError(t, session.SetAnswer("q1", models.TextAnswer("A")))
	_, err = session.Submit(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 100, <-hooked)

	assert.Equal(t, 0, m.Reap(time.Now()))
	assert.Equal(t, 1, m.Reap(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, m.Count())
}

func TestSessionManager_NewSessionAfterSubmit(t *testing.T) {
	h := newHarness(t, 10, []models.Question{choice("q1", `0`, "A", "B")})
	h.store.On("StartAttempt", mock.Anything, "s1", "a1").Return(&models.Attempt{ID: "att-1"}, nil)
	h.store.On("CompleteAttempt", mock.Anything, "att-1", mock.Anything).Return(nil)

	m := NewSessionManager(h.deps, time.Minute)
	first, err := m.StartSession(context.Background(), "s1", "a1")
	require.NoError(t, err)
	_, err = first.Submit(context.Background(), true)
	require.NoError(t, err)

	second, err := m.StartSession(context.Background(), "s1", "a1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, m.Count())
}
