// Package index provides an in-memory fuzzy search index over a note
// collection, built on bleve.
//
// The index is a pure derived structure: it is built wholesale from a
// collection (or any subset of one) and thrown away when that collection
// changes. It is never patched field-by-field.
package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/starford/mimir/internal/models"
)

// Fuzziness is the fixed edit-distance tolerance for query terms.
const Fuzziness = 1

// Searcher answers fuzzy queries with the original note records,
// best match first.
type Searcher interface {
	Query(text string) ([]*models.Note, error)
	Close() error
}

// Factory builds a Searcher over an arbitrary collection or subset. The
// filter pipeline uses it to search within an already-narrowed candidate set,
// and tests use it to observe (or forbid) index builds.
type Factory func(notes []*models.Note) (Searcher, error)

// document is the indexed shape of one note.
type document struct {
	Path            string   `json:"path"`
	RawContent      string   `json:"rawContent"`
	Tags            []string `json:"tags"`
	EnrichmentTitle string   `json:"enrichmentTitle,omitempty"`
	EnrichmentName  string   `json:"enrichmentName,omitempty"`
}

// Index is a bleve-backed fuzzy index over a fixed collection.
type Index struct {
	idx    bleve.Index
	byPath map[string]*models.Note
}

// Verify *Index satisfies Searcher at compile time.
var _ Searcher = (*Index)(nil)

// Build creates a fresh in-memory index over the given notes. Notes are keyed
// by path (unique across a live collection) so query hits map back to the
// original records, not copies.
func Build(notes []*models.Note) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("index: create: %w", err)
	}

	byPath := make(map[string]*models.Note, len(notes))
	batch := idx.NewBatch()
	for _, n := range notes {
		doc := document{
			Path:       n.Path,
			RawContent: n.RawContent,
			Tags:       n.Tags,
		}
		if enr := n.Enrichment(); enr != nil {
			doc.EnrichmentTitle = enr.Title
			doc.EnrichmentName = enr.Name
		}
		if err := batch.Index(n.Path, doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index: add %s: %w", n.Path, err)
		}
		byPath[n.Path] = n
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("index: batch: %w", err)
	}

	return &Index{idx: idx, byPath: byPath}, nil
}

// BuildSearcher is the Factory form of Build.
func BuildSearcher(notes []*models.Note) (Searcher, error) {
	return Build(notes)
}

// Query runs a fuzzy search and returns matching notes ordered by relevance,
// best match first. The empty string is not a valid query: callers are
// expected to treat it as "no filtering" and never reach the index.
func (ix *Index) Query(text string) ([]*models.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("index: empty query")
	}

	// Tolerate typos via edit distance and partial tokens via prefix match;
	// either is enough for a hit.
	fuzzy := bleve.NewMatchQuery(text)
	fuzzy.SetFuzziness(Fuzziness)
	prefix := bleve.NewPrefixQuery(strings.ToLower(text))
	q := bleve.NewDisjunctionQuery(fuzzy, prefix)

	return ix.run(q)
}

func (ix *Index) run(q query.Query) ([]*models.Note, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = len(ix.byPath)

	res, err := ix.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}

	out := make([]*models.Note, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if n, ok := ix.byPath[hit.ID]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// Close releases the underlying bleve resources.
func (ix *Index) Close() error {
	return ix.idx.Close()
}

// Len returns the number of indexed notes.
func (ix *Index) Len() int {
	return len(ix.byPath)
}
