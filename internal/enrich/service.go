// Package enrich resolves lazy per-note detail payloads (movie, TV,
// Wikipedia) through a persisted time-bounded cache.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/cache"
	"github.com/starford/mimir/internal/models"
)

// DefaultTTL matches the retention window of the note browser this engine was
// extracted from: one week.
const DefaultTTL = 7 * 24 * time.Hour

// Fetcher is the backend lookup the service falls back to on a cache miss.
type Fetcher interface {
	FetchEnrichment(ctx context.Context, kind models.MediaType, slug string) (*models.Enrichment, error)
}

// Service answers enrichment lookups: cache first, backend second. A backend
// 404 is remembered for the rest of the session but never persisted, since
// the data may become available later.
type Service struct {
	store   cache.Store
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	misses map[string]struct{}
}

// New creates a Service. ttl <= 0 falls back to DefaultTTL.
func New(store cache.Store, fetcher Fetcher, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:   store,
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
		misses:  map[string]struct{}{},
	}
}

// Details returns the payload for kind/slug, or (nil, nil) when the backend
// has nothing for that key.
func (s *Service) Details(ctx context.Context, kind models.MediaType, slug string) (*models.Enrichment, error) {
	key := fmt.Sprintf("%s_%s", kind, slug)

	s.mu.Lock()
	_, missed := s.misses[key]
	s.mu.Unlock()
	if missed {
		return nil, nil
	}

	if payload := s.fromCache(key); payload != nil {
		return payload, nil
	}

	data, err := s.fetcher.FetchEnrichment(ctx, kind, slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.mu.Lock()
			s.misses[key] = struct{}{}
			s.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}

	if raw, err := json.Marshal(data); err == nil {
		if err := s.store.Set(key, raw, s.ttl); err != nil {
			s.logger.Warn("enrich: cache write failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return data, nil
}

// fromCache returns a cached payload, evicting malformed entries so the
// lookup proceeds as a miss.
func (s *Service) fromCache(key string) *models.Enrichment {
	raw, ok, err := s.store.Get(key)
	if err != nil {
		s.logger.Warn("enrich: cache read failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}

	var payload models.Enrichment
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warn("enrich: evicting malformed cache entry", slog.String("key", key))
		_ = s.store.Delete(key)
		return nil
	}
	return &payload
}
