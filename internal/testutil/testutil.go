// Package testutil provides shared test helpers for building engines and caches.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/mimir/internal/cache"
	"github.com/starford/mimir/internal/engine"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/models"
)

// Logger returns a quiet logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestCache creates a temporary SQLite cache that is automatically cleaned up.
func TestCache(t *testing.T) *cache.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mimir-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := cache.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestEngine creates an engine backed by the real fuzzy index and loads the
// given snapshot into it.
func TestEngine(t *testing.T, snap *models.Snapshot) *engine.Engine {
	t.Helper()
	eng := engine.New(index.BuildSearcher, Logger())
	if snap != nil {
		if err := eng.Replace(snap); err != nil {
			t.Fatal(err)
		}
	}
	return eng
}

// Record builds a raw backend note record.
func Record(path, content string, lastModified int64) models.NoteRecord {
	return models.NoteRecord{
		ID:           path,
		Path:         path,
		RawContent:   content,
		LastModified: lastModified,
	}
}

// Snapshot builds a backend snapshot from records, deriving no folders or
// media files unless the caller sets them afterwards.
func Snapshot(records ...models.NoteRecord) *models.Snapshot {
	return &models.Snapshot{
		Notes:      records,
		Folders:    []string{},
		MediaFiles: map[string]string{},
	}
}
