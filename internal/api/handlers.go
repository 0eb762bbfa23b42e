package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/engine"
	"github.com/starford/mimir/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	engine  *engine.Engine
	svc     *Service
	session *Session
}

// NewHandler creates a new Handler.
func NewHandler(eng *engine.Engine, svc *Service, session *Session) *Handler {
	return &Handler{engine: eng, svc: svc, session: session}
}

// notePath extracts the note path from the URL (everything after the route
// prefix). Supports encoded slashes (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Results handles GET /api/results?folder=&q=. It runs one immediate filter
// pass; the debounced path for live keystrokes is POST /api/query.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Loaded() {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(apperr.ErrNotLoaded.Error()))
		return
	}

	q := r.URL.Query()
	results, err := h.engine.Query(q.Get("folder"), q.Get("q"))
	if err != nil {
		slog.Error("query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, ResultsResponse{
		Results:        lo.Map(results, func(n *models.Note, _ int) NoteItem { return toItem(n) }),
		Total:          len(results),
		CollectionSize: h.engine.Len(),
	})
}

// Query handles POST /api/query: updates the debounced search session.
// The refreshed result set arrives over /api/events.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	h.session.Update(req.Folder, req.Query)
	w.WriteHeader(http.StatusAccepted)
}

// Folders handles GET /api/folders.
func (h *Handler) Folders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FoldersResponse{Folders: h.engine.Folders()})
}

// ListNotes handles GET /api/notes: the full collection in collection order.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes := h.engine.Notes()
	writeJSON(w, http.StatusOK, map[string]any{
		"notes": lo.Map(notes, func(n *models.Note, _ int) NoteItem { return toItem(n) }),
		"total": len(notes),
	})
}

// GetNote handles GET /api/notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, ok := h.engine.NoteByPath(path)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, NoteDetail{NoteItem: toItem(note), RawContent: note.RawContent})
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}

	if err := h.svc.Create(r.Context(), req.Path, req.Content); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
			return
		}
		slog.Error("create note failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("backend rejected create"))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// UpdateNote handles PUT /api/notes/*.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	newPath := req.NewPath
	if newPath == "" {
		newPath = path
	}

	if err := h.svc.Update(r.Context(), path, newPath, req.Content); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("update note failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("backend rejected update"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNote handles DELETE /api/notes/*.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete note failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("backend rejected delete"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enrichment handles GET /api/enrichment/*: lazy detail loading for media
// notes. 204 means the backend has no data for this note.
func (h *Handler) Enrichment(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	data, err := h.svc.Enrich(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not a media note"))
			return
		}
		slog.Error("enrichment failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("enrichment fetch failed"))
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Media handles GET /api/media/*: resolves an embedded media file name to its
// backend-relative path, so the presentation layer can build a playable URL.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	name := notePath(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("file name is required"))
		return
	}
	rel, ok := h.engine.MediaPath(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": rel})
}

// SessionState handles POST /api/session: edit-session and visibility flips.
func (h *Handler) SessionState(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	if req.Visible != nil {
		h.svc.syncer.SetVisible(*req.Visible)
	}

	if req.Editing != nil {
		if *req.Editing {
			h.svc.BeginEdit()
		} else {
			if err := h.svc.EndEdit(r.Context(), req.Path, req.Draft); err != nil {
				slog.Error("end edit failed", slog.String("path", req.Path), slog.String("error", err.Error()))
				writeJSON(w, http.StatusBadGateway, errorBody("draft flush failed"))
				return
			}
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
