package sandbox

import (
	"sync"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// ResultStore holds the latest execution result per question. A run that
// finishes after another run for the same question still overwrites it.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*models.ExecutionResult
	pending map[string]int
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[string]*models.ExecutionResult),
		pending: make(map[string]int),
	}
}

// Begin marks a run as in flight for questionID.
func (s *ResultStore) Begin(questionID string) {
	s.mu.Lock()
	s.pending[questionID]++
	s.mu.Unlock()
}

// Put records result and releases one in-flight run.
func (s *ResultStore) Put(questionID string, result *models.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[questionID] = result
	if s.pending[questionID] > 0 {
		s.pending[questionID]--
	}
	if s.pending[questionID] == 0 {
		delete(s.pending, questionID)
	}
}

func (s *ResultStore) Get(questionID string) (*models.ExecutionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[questionID]
	return r, ok
}

func (s *ResultStore) Running(questionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[questionID] > 0
}
