package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/attempt-engine/internal/cache"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// CachedRunner serves repeated identical runs from the cache. Only
// deterministic verdicts are stored; time limits and sandbox failures are
// retried on the next run.
type CachedRunner struct {
	next   Runner
	cache  cache.CacheService
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedRunner(next Runner, c cache.CacheService, ttl time.Duration, logger *slog.Logger) *CachedRunner {
	return &CachedRunner{next: next, cache: c, ttl: ttl, logger: logger}
}

func cacheable(v models.Verdict) bool {
	switch v {
	case models.VerdictAccepted, models.VerdictCompilationError, models.VerdictRuntimeError:
		return true
	}
	return false
}

func runKey(lang Language, source, stdin string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s\x00%s", lang.ID, source, stdin)
	return "sandbox:" + hex.EncodeToString(h.Sum(nil))
}

func (r *CachedRunner) Run(ctx context.Context, languageLabel, source, stdin string) (*models.ExecutionResult, error) {
	lang, err := ResolveLanguage(languageLabel)
	if err != nil {
		return nil, err
	}
	// rejected locally by the client, never worth a cache round-trip
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}
	if stdin == "" && lang.ReadsInput(source) {
		return NeedsInputResult(lang), nil
	}
	key := runKey(lang, source, stdin)

	var cached models.ExecutionResult
	switch err := r.cache.Get(ctx, key, &cached); {
	case err == nil:
		r.logger.Debug("Sandbox result served from cache", "language", lang.Name)
		return &cached, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		r.logger.Warn("Sandbox cache lookup failed", "error", err)
	}

	result, err := r.next.Run(ctx, languageLabel, source, stdin)
	if err != nil {
		return nil, err
	}
	if cacheable(result.Verdict) {
		if err := r.cache.Set(ctx, key, result, r.ttl); err != nil {
			r.logger.Warn("Failed to cache sandbox result", "error", err)
		}
	}
	return result, nil
}
