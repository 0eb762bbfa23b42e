// Package engine owns the canonical application state: the note collection,
// the folder set, the media path map, and the search index derived from them.
//
// Single-writer discipline: the sync reconciler replaces the collection
// wholesale, and the enrichment service patches one note's payload in place.
// Those are the only mutation paths. Readers always observe a complete
// collection/index pair because a replacement index is fully built before the
// swap happens under the lock.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/starford/mimir/internal/filter"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/normalize"
)

// Engine holds the canonical collection and answers filter queries over it.
type Engine struct {
	pipeline *filter.Pipeline
	logger   *slog.Logger

	mu         sync.RWMutex
	notes      []*models.Note
	byPath     map[string]*models.Note
	folders    []string
	mediaFiles map[string]string
	idx        *index.Index
	loaded     bool
	editing    bool
	rebuilds   uint64
}

// New creates an Engine. The factory is used both for the canonical index and
// for the pipeline's scoped per-query indexes.
func New(factory index.Factory, logger *slog.Logger) *Engine {
	return &Engine{
		pipeline:   filter.New(factory),
		logger:     logger,
		byPath:     map[string]*models.Note{},
		mediaFiles: map[string]string{},
	}
}

// Replace swaps in a full backend snapshot: every record is re-normalized and
// the index is rebuilt from scratch before the collection is exposed. The
// folder set is recomputed wholesale, never patched.
func (e *Engine) Replace(snap *models.Snapshot) error {
	notes := lo.Map(snap.Notes, func(rec models.NoteRecord, _ int) *models.Note {
		return normalize.Note(rec)
	})

	idx, err := index.Build(notes)
	if err != nil {
		return fmt.Errorf("engine: rebuild index: %w", err)
	}

	byPath := make(map[string]*models.Note, len(notes))
	for _, n := range notes {
		byPath[n.Path] = n
	}

	folders := append([]string(nil), snap.Folders...)
	sort.Strings(folders)

	mediaFiles := make(map[string]string, len(snap.MediaFiles))
	for name, rel := range snap.MediaFiles {
		mediaFiles[name] = rel
	}

	e.mu.Lock()
	old := e.idx
	e.notes = notes
	e.byPath = byPath
	e.folders = folders
	e.mediaFiles = mediaFiles
	e.idx = idx
	e.loaded = true
	e.rebuilds++
	e.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			e.logger.Warn("engine: close old index", slog.String("error", err.Error()))
		}
	}

	e.logger.Debug("engine: collection replaced",
		slog.Int("notes", len(notes)),
		slog.Int("folders", len(folders)))
	return nil
}

// Query runs the filter pipeline against the current collection.
func (e *Engine) Query(activeFolder, rawSearch string) ([]*models.Note, error) {
	e.mu.RLock()
	notes := e.notes
	e.mu.RUnlock()

	return e.pipeline.Apply(notes, activeFolder, rawSearch)
}

// Notes returns the current collection in collection order.
func (e *Engine) Notes() []*models.Note {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*models.Note(nil), e.notes...)
}

// NoteByPath returns the live record for path, if present.
func (e *Engine) NoteByPath(path string) (*models.Note, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.byPath[path]
	return n, ok
}

// Folders returns the sorted top-level folder set.
func (e *Engine) Folders() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.folders...)
}

// MediaPath resolves an embedded media file name to its backend-relative path.
func (e *Engine) MediaPath(filename string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rel, ok := e.mediaFiles[filename]
	return rel, ok
}

// Stamps returns path -> lastModified for the current collection. The
// reconciler diffs these against a fresh server snapshot.
func (e *Engine) Stamps() map[string]int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]int64, len(e.notes))
	for _, n := range e.notes {
		out[n.Path] = n.LastModified
	}
	return out
}

// Len returns the collection cardinality.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.notes)
}

// Loaded reports whether the initial snapshot has been applied.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// PatchEnrichment attaches a lazily fetched payload to one note in place.
// This is the intentional exception to wholesale replacement: tags and
// content are not re-derived and the index is not rebuilt.
func (e *Engine) PatchEnrichment(path string, data *models.Enrichment) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.byPath[path]
	if !ok {
		return false
	}
	n.SetEnrichment(data)
	return true
}

// SetEditing flips the local edit-session flag consulted by the reconciler.
func (e *Engine) SetEditing(editing bool) {
	e.mu.Lock()
	e.editing = editing
	e.mu.Unlock()
}

// Editing reports whether a local edit session is active.
func (e *Engine) Editing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.editing
}

// Rebuilds returns how many full index rebuilds have happened. An unchanged
// poll must leave this counter untouched.
func (e *Engine) Rebuilds() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rebuilds
}
