// Package remote is the HTTP client for the notes backend: the full snapshot
// fetch, the lazy enrichment lookups, and the note mutation primitives.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/models"
)

// Client talks to the notes backend over HTTP.
type Client struct {
	base string
	http *http.Client
}

// New creates a Client for the given base URL (scheme://host[:port]).
func New(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// FetchNotes retrieves the full authoritative snapshot.
func (c *Client) FetchNotes(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.getJSON(ctx, "/api/notes", &snap); err != nil {
		return nil, fmt.Errorf("remote: fetch notes: %w", err)
	}
	if snap.MediaFiles == nil {
		snap.MediaFiles = map[string]string{}
	}
	return &snap, nil
}

// FetchEnrichment retrieves the lazy detail payload for a media note.
// A backend 404 comes back as apperr.ErrNotFound.
func (c *Client) FetchEnrichment(ctx context.Context, kind models.MediaType, slug string) (*models.Enrichment, error) {
	var path string
	switch kind {
	case models.MediaWikipedia:
		path = "/api/wikipedia_details?slug=" + url.QueryEscape(slug)
	default:
		path = "/api/tmdb_details?type=" + url.QueryEscape(string(kind)) + "&slug=" + url.QueryEscape(slug)
	}

	var payload models.Enrichment
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("remote: fetch enrichment %s/%s: %w", kind, slug, err)
	}
	return &payload, nil
}

// CreateNote asks the backend to create a note. The caller is expected to
// follow up with a forced reconciliation rather than mutate local state.
func (c *Client) CreateNote(ctx context.Context, path, content string) error {
	body := map[string]string{"path": path, "content": content}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/note", body); err != nil {
		return fmt.Errorf("remote: create note %s: %w", path, err)
	}
	return nil
}

// UpdateNote rewrites a note, optionally renaming it.
func (c *Client) UpdateNote(ctx context.Context, oldPath, newPath, content string) error {
	body := map[string]string{"old_path": oldPath, "new_path": newPath, "content": content}
	if err := c.sendJSON(ctx, http.MethodPut, "/api/note", body); err != nil {
		return fmt.Errorf("remote: update note %s: %w", oldPath, err)
	}
	return nil
}

// DeleteNote removes a note from the backend.
func (c *Client) DeleteNote(ctx context.Context, path string) error {
	body := map[string]string{"path": path}
	if err := c.sendJSON(ctx, http.MethodDelete, "/api/note", body); err != nil {
		return fmt.Errorf("remote: delete note %s: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperr.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return apperr.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
