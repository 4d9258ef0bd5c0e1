package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SAP-F-2025/attempt-engine/internal/cache"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/repositories"
)

// CachedQuestionSource keeps assessment question sets in the cache and
// collapses concurrent loads of the same assessment into one query.
type CachedQuestionSource struct {
	source repositories.QuestionSource
	cache  cache.CacheService
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewCachedQuestionSource(source repositories.QuestionSource, c cache.CacheService, ttl time.Duration, logger *slog.Logger) *CachedQuestionSource {
	return &CachedQuestionSource{source: source, cache: c, ttl: ttl, logger: logger}
}

func questionsKey(assessmentID string) string {
	return "questions:" + assessmentID
}

func (c *CachedQuestionSource) GetQuestions(ctx context.Context, assessmentID string) ([]models.Question, error) {
	key := questionsKey(assessmentID)

	var questions []models.Question
	err := c.cache.Get(ctx, key, &questions)
	if err == nil {
		return questions, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("Question cache lookup failed", "assessment_id", assessmentID, "error", err)
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		loaded, err := c.source.GetQuestions(ctx, assessmentID)
		if err != nil {
			return nil, err
		}
		if len(loaded) > 0 {
			if err := c.cache.Set(ctx, key, loaded, c.ttl); err != nil {
				c.logger.Warn("Failed to cache questions", "assessment_id", assessmentID, "error", err)
			}
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("Question load shared", "assessment_id", assessmentID)
	}
	return v.([]models.Question), nil
}

// Invalidate drops the cached set for one assessment.
func (c *CachedQuestionSource) Invalidate(ctx context.Context, assessmentID string) error {
	return c.cache.Delete(ctx, questionsKey(assessmentID))
}
