package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/starford/mimir/internal/engine"
	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/schedule"
	"github.com/starford/mimir/internal/sse"
)

// Session holds the ephemeral UI filter state (active folder + search text)
// and the last computed result set. Keystroke updates are debounced on the
// trailing edge so at most one pipeline pass runs per settling period;
// superseded keystrokes are dropped. The reconciler refreshes the session
// after every applied collection replacement, so results track both the
// user's filters and the backend.
type Session struct {
	engine *engine.Engine
	broker *sse.Broker
	deb    *schedule.Debouncer
	logger *slog.Logger

	mu      sync.Mutex
	folder  string
	query   string
	results []*models.Note
}

// NewSession creates a Session with the given debounce delay.
func NewSession(eng *engine.Engine, broker *sse.Broker, delay time.Duration, logger *slog.Logger) *Session {
	return &Session{
		engine: eng,
		broker: broker,
		deb:    schedule.NewDebouncer(delay),
		logger: logger,
	}
}

// Update records new filter state and schedules a debounced refresh.
func (s *Session) Update(folder, query string) {
	s.mu.Lock()
	s.folder = folder
	s.query = query
	s.mu.Unlock()

	s.deb.Trigger(s.Refresh)
}

// Refresh recomputes the result set against the current collection and
// announces it. Called directly by the reconciler's change hook.
func (s *Session) Refresh() {
	s.mu.Lock()
	folder, query := s.folder, s.query
	s.mu.Unlock()

	results, err := s.engine.Query(folder, query)
	if err != nil {
		s.logger.Warn("session: refresh failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.results = results
	s.mu.Unlock()

	if s.broker != nil {
		s.broker.PublishResults(lo.Map(results, func(n *models.Note, _ int) string {
			return n.Path
		}))
	}
}

// Results returns the last computed result set.
func (s *Session) Results() []*models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Note(nil), s.results...)
}

// State returns the current filter state.
func (s *Session) State() (folder, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder, s.query
}

// Stop cancels any pending debounced refresh.
func (s *Session) Stop() {
	s.deb.Stop()
}
