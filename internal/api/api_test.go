package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mimir/internal/engine"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/models"
	"github.com/starford/mimir/internal/testutil"
)

// fakeBackend records mutation calls.
type fakeBackend struct {
	creates, updates, deletes int
	lastPath, lastContent     string
	lastNewPath               string
}

func (b *fakeBackend) CreateNote(_ context.Context, path, content string) error {
	b.creates++
	b.lastPath, b.lastContent = path, content
	return nil
}

func (b *fakeBackend) UpdateNote(_ context.Context, oldPath, newPath, content string) error {
	b.updates++
	b.lastPath, b.lastNewPath, b.lastContent = oldPath, newPath, content
	return nil
}

func (b *fakeBackend) DeleteNote(_ context.Context, path string) error {
	b.deletes++
	b.lastPath = path
	return nil
}

// fakeForcer records forced reconciliations and visibility flips.
type fakeForcer struct {
	forces  int
	visible *bool
}

func (f *fakeForcer) Force(context.Context) error { f.forces++; return nil }
func (f *fakeForcer) SetVisible(v bool)           { f.visible = &v }

// fakeEnricher serves a fixed payload.
type fakeEnricher struct {
	payload *models.Enrichment
	calls   int
}

func (e *fakeEnricher) Details(context.Context, models.MediaType, string) (*models.Enrichment, error) {
	e.calls++
	return e.payload, nil
}

type fixture struct {
	engine   *engine.Engine
	backend  *fakeBackend
	forcer   *fakeForcer
	enricher *fakeEnricher
	session  *Session
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	heat := testutil.Record("movies/heat.md", "movie: heat", 200)
	heat.IsMediaNote = true
	heat.MediaType = models.MediaMovie
	heat.TitleSlug = "heat"

	snap := testutil.Snapshot(
		testutil.Record("cooking/pasta.md", "---\ntags:\n- food\n---\ncarbonara recipe", 100),
		heat,
	)
	snap.Folders = []string{"cooking", "movies"}
	snap.MediaFiles = map[string]string{"take.mp3": "media/take.mp3"}
	eng := testutil.TestEngine(t, snap)

	backend := &fakeBackend{}
	forcer := &fakeForcer{}
	enricher := &fakeEnricher{payload: &models.Enrichment{Title: "Heat"}}

	svc := NewService(eng, backend, forcer, enricher, testutil.Logger())
	session := NewSession(eng, nil, 10*time.Millisecond, testutil.Logger())
	t.Cleanup(session.Stop)

	h := NewHandler(eng, svc, session)
	root := chi.NewRouter()
	root.Mount("/api", NewRouter(h, false, ""))

	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)

	return &fixture{engine: eng, backend: backend, forcer: forcer,
		enricher: enricher, session: session, server: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestResults(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/results?q=carbonara", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[ResultsResponse](t, resp)
	if body.Total != 1 || len(body.Results) != 1 || body.Results[0].Path != "cooking/pasta.md" {
		t.Errorf("results = %+v", body)
	}
	if body.CollectionSize != 2 {
		t.Errorf("collectionSize = %d, want 2", body.CollectionSize)
	}
}

func TestResults_FolderScope(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/results?folder=movies", "")
	body := decode[ResultsResponse](t, resp)
	if body.Total != 1 || body.Results[0].Path != "movies/heat.md" {
		t.Errorf("results = %+v", body)
	}
}

func TestResults_NotLoaded(t *testing.T) {
	eng := engine.New(index.BuildSearcher, testutil.Logger())
	svc := NewService(eng, &fakeBackend{}, &fakeForcer{}, &fakeEnricher{}, testutil.Logger())
	session := NewSession(eng, nil, 10*time.Millisecond, testutil.Logger())
	defer session.Stop()
	h := NewHandler(eng, svc, session)
	root := chi.NewRouter()
	root.Mount("/api", NewRouter(h, false, ""))
	srv := httptest.NewServer(root)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/results")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestFolders(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/folders", "")
	body := decode[FoldersResponse](t, resp)
	if len(body.Folders) != 2 || body.Folders[0] != "cooking" || body.Folders[1] != "movies" {
		t.Errorf("folders = %v", body.Folders)
	}
}

func TestGetNote(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/notes/cooking/pasta.md", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[NoteDetail](t, resp)
	if body.Path != "cooking/pasta.md" {
		t.Errorf("path = %q", body.Path)
	}
	if !strings.Contains(body.RawContent, "tags:") {
		t.Error("detail must include the raw source")
	}
	if strings.Contains(body.Content, "tags:") {
		t.Error("display content must have the tag header stripped")
	}
	if len(body.Tags) != 1 || body.Tags[0] != "food" {
		t.Errorf("tags = %v", body.Tags)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/notes/missing.md", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateNote(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/notes", `{"path":"new/note.md","content":"hello"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if f.backend.creates != 1 || f.backend.lastPath != "new/note.md" {
		t.Errorf("backend create not called correctly: %+v", f.backend)
	}
	if f.forcer.forces != 1 {
		t.Errorf("forces = %d, want 1: mutation must force a reconciliation", f.forcer.forces)
	}
}

func TestCreateNote_Conflict(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/notes", `{"path":"cooking/pasta.md","content":"x"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if f.backend.creates != 0 {
		t.Error("backend must not be called for an existing path")
	}
}

func TestUpdateNote(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/notes/cooking/pasta.md",
		`{"new_path":"cooking/pasta-v2.md","content":"better recipe"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if f.backend.updates != 1 || f.backend.lastPath != "cooking/pasta.md" ||
		f.backend.lastNewPath != "cooking/pasta-v2.md" {
		t.Errorf("backend update not called correctly: %+v", f.backend)
	}
	if f.forcer.forces != 1 {
		t.Errorf("forces = %d, want 1", f.forcer.forces)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPut, "/api/notes/missing.md", `{"content":"x"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteNote(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodDelete, "/api/notes/cooking/pasta.md", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if f.backend.deletes != 1 || f.backend.lastPath != "cooking/pasta.md" {
		t.Errorf("backend delete not called correctly: %+v", f.backend)
	}
}

func TestEnrichment(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/enrichment/movies/heat.md", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[models.Enrichment](t, resp)
	if body.Title != "Heat" {
		t.Errorf("payload = %+v", body)
	}
	if f.enricher.calls != 1 {
		t.Errorf("enricher calls = %d, want 1", f.enricher.calls)
	}

	// The payload must be patched onto the live record: a second request
	// serves it without another lookup.
	resp2 := f.do(t, http.MethodGet, "/api/enrichment/movies/heat.md", "")
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp2.StatusCode)
	}
	if f.enricher.calls != 1 {
		t.Errorf("enricher calls = %d after repeat, want 1", f.enricher.calls)
	}
}

func TestEnrichment_PlainNote(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/enrichment/cooking/pasta.md", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for a non-media note", resp.StatusCode)
	}
}

func TestMedia(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/media/take.mp3", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["path"] != "media/take.mp3" {
		t.Errorf("path = %q, want media/take.mp3", body["path"])
	}
}

func TestMedia_NotFound(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/media/missing.mp3", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSession_EditLifecycleFlushesChangedDraft(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/session", `{"editing":true}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !f.engine.Editing() {
		t.Fatal("edit session not started")
	}

	resp = f.do(t, http.MethodPost, "/api/session",
		`{"editing":false,"path":"cooking/pasta.md","draft":"completely new text"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if f.engine.Editing() {
		t.Error("edit session not ended")
	}
	if f.backend.updates != 1 || f.backend.lastContent != "completely new text" {
		t.Errorf("draft not flushed: %+v", f.backend)
	}
	if f.forcer.forces != 1 {
		t.Errorf("forces = %d, want 1 after edit end", f.forcer.forces)
	}
}

func TestSession_UnchangedDraftNotFlushed(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/session", `{"editing":true}`)
	n, _ := f.engine.NoteByPath("cooking/pasta.md")
	body, _ := json.Marshal(map[string]any{
		"editing": false, "path": "cooking/pasta.md", "draft": n.RawContent,
	})
	resp := f.do(t, http.MethodPost, "/api/session", string(body))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if f.backend.updates != 0 {
		t.Error("identical draft must not be flushed")
	}
	if f.forcer.forces != 1 {
		t.Errorf("forces = %d, want 1: polling still resumes with a check", f.forcer.forces)
	}
}

func TestSession_VisibilityFlip(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/session", `{"visible":false}`)
	if f.forcer.visible == nil || *f.forcer.visible {
		t.Error("visibility flip not forwarded")
	}
	f.do(t, http.MethodPost, "/api/session", `{"visible":true}`)
	if f.forcer.visible == nil || !*f.forcer.visible {
		t.Error("visibility restore not forwarded")
	}
}

func TestQuery_DebouncedSessionRefresh(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/query", `{"folder":"all","query":"carbonara"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		results := f.session.Results()
		if len(results) == 1 && results[0].Path == "cooking/pasta.md" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never refreshed, results = %d", len(results))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAuth_TokenRequired(t *testing.T) {
	eng := engine.New(index.BuildSearcher, testutil.Logger())
	_ = eng.Replace(&models.Snapshot{Notes: nil, Folders: []string{}, MediaFiles: map[string]string{}})
	svc := NewService(eng, &fakeBackend{}, &fakeForcer{}, &fakeEnricher{}, testutil.Logger())
	session := NewSession(eng, nil, 10*time.Millisecond, testutil.Logger())
	defer session.Stop()
	h := NewHandler(eng, svc, session)
	root := chi.NewRouter()
	root.Mount("/api", NewRouter(h, true, "secret"))
	srv := httptest.NewServer(root)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/folders")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without token", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/folders", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 with token", resp2.StatusCode)
	}
}
