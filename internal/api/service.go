package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/checksum"
	"github.com/starford/mimir/internal/engine"
	"github.com/starford/mimir/internal/models"
)

// Backend is the subset of the remote client the service needs for
// mutations. Mutations go to the backend and the authoritative result is
// absorbed through a forced reconciliation; local state is never mutated
// speculatively, so a rejected mutation needs no rollback.
type Backend interface {
	CreateNote(ctx context.Context, path, content string) error
	UpdateNote(ctx context.Context, oldPath, newPath, content string) error
	DeleteNote(ctx context.Context, path string) error
}

// Forcer triggers an immediate reconciliation and tracks view visibility.
type Forcer interface {
	Force(ctx context.Context) error
	SetVisible(visible bool)
}

// Enricher resolves lazy detail payloads.
type Enricher interface {
	Details(ctx context.Context, kind models.MediaType, slug string) (*models.Enrichment, error)
}

// Service coordinates the engine, the backend client, and the reconciler for
// the API layer.
type Service struct {
	engine  *engine.Engine
	backend Backend
	syncer  Forcer
	enrich  Enricher
	logger  *slog.Logger
}

// NewService creates a new API service.
func NewService(eng *engine.Engine, backend Backend, forcer Forcer, enricher Enricher, logger *slog.Logger) *Service {
	return &Service{engine: eng, backend: backend, syncer: forcer, enrich: enricher, logger: logger}
}

// Create creates a note on the backend and absorbs the result.
func (s *Service) Create(ctx context.Context, path, content string) error {
	if _, exists := s.engine.NoteByPath(path); exists {
		return apperr.ErrAlreadyExists
	}
	if err := s.backend.CreateNote(ctx, path, content); err != nil {
		return err
	}
	return s.syncer.Force(ctx)
}

// Update rewrites (and optionally renames) a note on the backend.
func (s *Service) Update(ctx context.Context, oldPath, newPath, content string) error {
	if _, ok := s.engine.NoteByPath(oldPath); !ok {
		return apperr.ErrNotFound
	}
	if err := s.backend.UpdateNote(ctx, oldPath, newPath, content); err != nil {
		return err
	}
	return s.syncer.Force(ctx)
}

// Delete removes a note on the backend.
func (s *Service) Delete(ctx context.Context, path string) error {
	if _, ok := s.engine.NoteByPath(path); !ok {
		return apperr.ErrNotFound
	}
	if err := s.backend.DeleteNote(ctx, path); err != nil {
		return err
	}
	return s.syncer.Force(ctx)
}

// BeginEdit suspends scheduled polling for the duration of a local edit
// session, so the poller cannot clobber an unsaved draft.
func (s *Service) BeginEdit() {
	s.engine.SetEditing(true)
}

// EndEdit flushes the pending draft (when it actually differs from the
// stored content) and resumes polling with an immediate forced check.
func (s *Service) EndEdit(ctx context.Context, path, draft string) error {
	defer s.engine.SetEditing(false)

	if draft != "" {
		note, ok := s.engine.NoteByPath(path)
		if !ok {
			return apperr.ErrNotFound
		}
		if checksum.Sum([]byte(draft)) != checksum.Sum([]byte(note.RawContent)) {
			if err := s.backend.UpdateNote(ctx, path, path, draft); err != nil {
				return fmt.Errorf("flush draft: %w", err)
			}
		}
	}

	return s.syncer.Force(ctx)
}

// Enrich lazily loads the detail payload for a media note and patches it
// onto the live record. Returns (nil, nil) when the backend has no data.
func (s *Service) Enrich(ctx context.Context, path string) (*models.Enrichment, error) {
	note, ok := s.engine.NoteByPath(path)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if !note.IsMediaNote || note.TitleSlug == "" {
		return nil, apperr.ErrNotFound
	}
	if enr := note.Enrichment(); enr != nil {
		return enr, nil
	}

	data, err := s.enrich.Details(ctx, note.MediaType, note.TitleSlug)
	if err != nil {
		return nil, err
	}
	if data != nil {
		s.engine.PatchEnrichment(path, data)
	}
	return data, nil
}
