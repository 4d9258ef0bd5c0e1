package sandbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

func TestResultStore_LastWriteWins(t *testing.T) {
	s := NewResultStore()

	_, ok := s.Get("q1")
	assert.False(t, ok)

	s.Begin("q1")
	s.Begin("q1")
	assert.True(t, s.Running("q1"))

	s.Put("q1", &models.ExecutionResult{Verdict: models.VerdictRuntimeError})
	assert.True(t, s.Running("q1"))
	s.Put("q1", &models.ExecutionResult{Verdict: models.VerdictAccepted})
	assert.False(t, s.Running("q1"))

	got, ok := s.Get("q1")
	assert.True(t, ok)
	assert.Equal(t, models.VerdictAccepted, got.Verdict)
}

func TestResultStore_ConcurrentWriters(t *testing.T) {
	s := NewResultStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Begin("q")
			s.Put("q", &models.ExecutionResult{Verdict: models.VerdictAccepted})
		}()
	}
	wg.Wait()

	assert.False(t, s.Running("q"))
	got, ok := s.Get("q")
	assert.True(t, ok)
	assert.Equal(t, models.VerdictAccepted, got.Verdict)
}
