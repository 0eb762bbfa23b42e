package api

import "github.com/starford/mimir/internal/models"

// NoteItem is the render-ready per-note shape handed to the presentation
// layer. Everything here is read-only from the presentation's perspective.
type NoteItem struct {
	ID            string             `json:"id"`
	Path          string             `json:"path"`
	Tags          []string           `json:"tags"`
	Content       string             `json:"contentWithoutTags"`
	LastModified  int64              `json:"lastModified"`
	Kind          models.Kind        `json:"kind"`
	AudioFileName string             `json:"audioFileName,omitempty"`
	MediaType     models.MediaType   `json:"media_type,omitempty"`
	Enrichment    *models.Enrichment `json:"tmdb_data,omitempty"`
}

// NoteDetail adds the raw source text for the edit view.
type NoteDetail struct {
	NoteItem
	RawContent string `json:"rawContent"`
}

// ResultsResponse wraps one filter-pipeline pass. CollectionSize lets the
// presentation distinguish "no matches" from "no notes at all".
type ResultsResponse struct {
	Results        []NoteItem `json:"results"`
	Total          int        `json:"total"`
	CollectionSize int        `json:"collectionSize"`
}

// FoldersResponse wraps the derived top-level folder set.
type FoldersResponse struct {
	Folders []string `json:"folders"`
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateNoteRequest is the request body for updating (and optionally
// renaming) a note.
type UpdateNoteRequest struct {
	NewPath string `json:"new_path"`
	Content string `json:"content"`
}

// QueryRequest updates the debounced search session.
type QueryRequest struct {
	Folder string `json:"folder"`
	Query  string `json:"query"`
}

// SessionRequest flips the edit-session or visibility state. Draft carries
// the unsaved buffer when an edit session ends; it is flushed to the backend
// before polling resumes.
type SessionRequest struct {
	Editing *bool  `json:"editing,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
	Path    string `json:"path,omitempty"`
	Draft   string `json:"draft,omitempty"`
}

func toItem(n *models.Note) NoteItem {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NoteItem{
		ID:            n.ID,
		Path:          n.Path,
		Tags:          tags,
		Content:       n.ContentWithoutTags,
		LastModified:  n.LastModified,
		Kind:          n.Kind(),
		AudioFileName: n.AudioFileName,
		MediaType:     n.MediaType,
		Enrichment:    n.Enrichment(),
	}
}
