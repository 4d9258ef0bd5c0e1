package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/attempt-engine/internal/cache"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

type slowSource struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (s *slowSource) GetQuestions(ctx context.Context, assessmentID string) ([]models.Question, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return []models.Question{
		{ID: "q1", AssessmentID: assessmentID, Type: models.QuestionSingleChoice, Prompt: "2+2?", Options: []string{"3", "4"}, Points: 1},
		{ID: "q2", AssessmentID: assessmentID, Type: models.QuestionEssay, Prompt: "Explain", Points: 5, Order: 1},
	}, nil
}

func newQuestionCache(t *testing.T, src *slowSource) (*CachedQuestionSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedQuestionSource(src, cache.NewRedisCache(client, "", logger), time.Minute, logger), mr
}

func TestCachedQuestionSource_CachesAfterFirstLoad(t *testing.T) {
	src := &slowSource{}
	c, mr := newQuestionCache(t, src)
	ctx := context.Background()

	first, err := c.GetQuestions(ctx, "a1")
	require.NoError(t, err)
	second, err := c.GetQuestions(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, []string{"3", "4"}, []string(second[0].Options))
	assert.True(t, mr.Exists("questions:a1"))

	require.NoError(t, c.Invalidate(ctx, "a1"))
	_, err = c.GetQuestions(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCachedQuestionSource_CollapsesConcurrentLoads(t *testing.T) {
	src := &slowSource{release: make(chan struct{})}
	c, _ := newQuestionCache(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qs, err := c.GetQuestions(context.Background(), "a1")
			assert.NoError(t, err)
			assert.Len(t, qs, 2)
		}()
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.LessOrEqual(t, src.calls.Load(), int32(2))
}

func TestCachedQuestionSource_ErrorsAreNotCached(t *testing.T) {
	src := &slowSource{err: errors.New("db down")}
	c, mr := newQuestionCache(t, src)

	_, err := c.GetQuestions(context.Background(), "a1")
	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists("questions:a1"))
}
