// Package models defines the domain types for Mimir.
package models

import "sync/atomic"

// MediaType classifies a media note as supplied by the backend.
type MediaType string

// Known media types.
const (
	MediaMovie     MediaType = "movie"
	MediaTV        MediaType = "tv"
	MediaWikipedia MediaType = "wikipedia"
)

// Kind is the derived variant of a note.
type Kind string

// Note variants.
const (
	KindPlain     Kind = "plain"
	KindAudio     Kind = "audio"
	KindMovie     Kind = "movie"
	KindTV        Kind = "tv"
	KindWikipedia Kind = "wikipedia"
)

// Note is the canonical in-memory unit: a backend record plus derived fields.
//
// RawContent is the source of truth and is never mutated locally. Tags and
// ContentWithoutTags are re-derived from it on every ingestion and must never
// go stale. The enrichment payload is the single exception to wholesale
// replacement: it is patched in place after a lazy fetch, behind an atomic
// pointer because readers access live records without holding the engine lock.
type Note struct {
	ID                 string    `json:"id"`
	Path               string    `json:"path"`
	RawContent         string    `json:"rawContent"`
	Tags               []string  `json:"tags"`
	ContentWithoutTags string    `json:"contentWithoutTags"`
	LastModified       int64     `json:"lastModified"`
	IsAudioNote        bool      `json:"isAudioNote"`
	AudioFileName      string    `json:"audioFileName,omitempty"`
	IsMediaNote        bool      `json:"isMediaNote"`
	MediaType          MediaType `json:"media_type,omitempty"`
	TitleSlug          string    `json:"title_slug,omitempty"`

	enrichment atomic.Pointer[Enrichment]
}

// Enrichment returns the lazily fetched payload, or nil before enrichment.
func (n *Note) Enrichment() *Enrichment {
	return n.enrichment.Load()
}

// SetEnrichment attaches a payload to the note.
func (n *Note) SetEnrichment(e *Enrichment) {
	n.enrichment.Store(e)
}

// Kind derives the note variant from its classification flags.
func (n *Note) Kind() Kind {
	switch {
	case n.IsAudioNote:
		return KindAudio
	case n.IsMediaNote && n.MediaType == MediaMovie:
		return KindMovie
	case n.IsMediaNote && n.MediaType == MediaTV:
		return KindTV
	case n.IsMediaNote && n.MediaType == MediaWikipedia:
		return KindWikipedia
	default:
		return KindPlain
	}
}

// Enrichment is lazily fetched metadata for a media note. Movie/TV payloads
// fill the TMDb fields; Wikipedia payloads fill the article fields. A nil
// Enrichment means "not yet enriched", not "no data".
type Enrichment struct {
	// TMDb fields.
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	BackdropPath string  `json:"backdrop_path,omitempty"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	VoteAverage  float64 `json:"vote_average,omitempty"`
	Overview     string  `json:"overview,omitempty"`

	// Wikipedia fields.
	Extract     string `json:"extract,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	PageURL     string `json:"page_url,omitempty"`
	Description string `json:"description,omitempty"`
	Lang        string `json:"lang,omitempty"`
}

// DisplayTitle returns the best available title from an enrichment payload.
func (e *Enrichment) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Name
}

// NoteRecord is the raw per-note shape of a backend snapshot, before
// normalization.
type NoteRecord struct {
	ID           string      `json:"id"`
	Path         string      `json:"path"`
	RawContent   string      `json:"rawContent"`
	LastModified int64       `json:"lastModified"`
	IsMediaNote  bool        `json:"isMediaNote"`
	MediaType    MediaType   `json:"media_type,omitempty"`
	TitleSlug    string      `json:"title_slug,omitempty"`
	Enrichment   *Enrichment `json:"tmdb_data,omitempty"`
}

// Snapshot is the full authoritative state fetched from the backend.
type Snapshot struct {
	Notes      []NoteRecord      `json:"notes"`
	Folders    []string          `json:"folders"`
	MediaFiles map[string]string `json:"media_files"`
}
