// Package filter implements the layered query pipeline: folder scope, smart
// keyword filters, then residual fuzzy search.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/models"
)

// FolderAll is the sentinel folder value meaning "no folder scope".
const FolderAll = "all"

var (
	dateTokenRe = regexp.MustCompile(`(on|before|after):(\d{4}-\d{2}-\d{2})`)
	imageRe     = regexp.MustCompile(`(?i)!\[\[(.*?\.(png|jpg|jpeg|gif|svg|webp))\]\]|!\[.*?\]\((.*?\.(png|jpg|jpeg|gif|svg|webp))\)`)
)

// category is one smart keyword filter. Keywords are tested in order and the
// longer phrase must come first so consumption strips it whole.
type category struct {
	keywords []string
	match    func(*models.Note) bool
}

// categories in fixed priority order. Only the first category whose keyword
// appears in the search text is applied, even when the text names several.
// That mirrors the observed behavior of the note browser this engine was
// extracted from; see DESIGN.md for the open question around it.
var categories = []category{
	{
		keywords: []string{"movies", "movie"},
		match:    func(n *models.Note) bool { return n.IsMediaNote && n.MediaType == models.MediaMovie },
	},
	{
		keywords: []string{"tv shows", "series"},
		match:    func(n *models.Note) bool { return n.IsMediaNote && n.MediaType == models.MediaTV },
	},
	{
		keywords: []string{"youtube videos", "youtube"},
		match: func(n *models.Note) bool {
			raw := strings.ToLower(n.RawContent)
			return strings.Contains(raw, "youtube.com") || strings.Contains(raw, "youtu.be")
		},
	},
	{
		keywords: []string{"images", "image"},
		match: func(n *models.Note) bool {
			return imageRe.MatchString(n.RawContent) && !n.IsMediaNote && !n.IsAudioNote
		},
	},
	{
		keywords: []string{"audios", "audio"},
		match:    func(n *models.Note) bool { return n.IsAudioNote },
	},
}

// Pipeline narrows a collection through the ordered filter stages. The index
// factory is injected so the residual stage can build a scoped index over the
// surviving candidates, and so tests can observe that an empty residual never
// builds one.
type Pipeline struct {
	factory index.Factory
}

// New creates a Pipeline using the given index factory.
func New(factory index.Factory) *Pipeline {
	return &Pipeline{factory: factory}
}

// Apply runs the stages in strict order: folder scope, date keywords,
// category keywords, residual fuzzy search. Each stage narrows the candidate
// set produced by the previous one. When no residual text remains the
// stage-3 candidates pass through in collection order.
func (p *Pipeline) Apply(notes []*models.Note, activeFolder, rawSearch string) ([]*models.Note, error) {
	candidates := notes

	// 1. Folder scope. The separator is part of the prefix so folder "a"
	// never matches "ab/...".
	if activeFolder != "" && activeFolder != FolderAll {
		prefix := activeFolder + "/"
		candidates = lo.Filter(candidates, func(n *models.Note, _ int) bool {
			return strings.HasPrefix(n.Path, prefix)
		})
	}

	search := strings.ToLower(strings.TrimSpace(rawSearch))

	// 2. Date keywords, AND-composed in the order found, then stripped.
	for _, m := range dateTokenRe.FindAllStringSubmatch(search, -1) {
		pred := datePredicate(m[1], m[2])
		candidates = lo.Filter(candidates, func(n *models.Note, _ int) bool {
			return pred(n.LastModified)
		})
	}
	search = strings.TrimSpace(dateTokenRe.ReplaceAllString(search, ""))

	// 3. Category keywords, first match wins.
	for _, c := range categories {
		if !containsAny(search, c.keywords) {
			continue
		}
		candidates = lo.Filter(candidates, func(n *models.Note, _ int) bool {
			return c.match(n)
		})
		for _, kw := range c.keywords {
			search = strings.ReplaceAll(search, kw, "")
		}
		search = strings.TrimSpace(search)
		break
	}

	// 4. Residual fuzzy search. An empty residual means "no filtering", not
	// "match nothing": the index is never queried with an empty string.
	if search == "" {
		return candidates, nil
	}

	scoped, err := p.factory(candidates)
	if err != nil {
		return nil, fmt.Errorf("filter: scoped index: %w", err)
	}
	defer scoped.Close()

	return scoped.Query(search)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// datePredicate builds the lastModified test for one date token, interpreting
// the date in the local calendar day. An impossible calendar date such as
// 2026-99-99 matches nothing rather than failing the pass.
func datePredicate(keyword, dateStr string) func(int64) bool {
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		return func(int64) bool { return false }
	}

	start := day.UnixMilli()
	end := day.AddDate(0, 0, 1).UnixMilli() - 1

	switch keyword {
	case "on":
		return func(ts int64) bool { return ts >= start && ts <= end }
	case "before":
		return func(ts int64) bool { return ts < start }
	default: // "after"
		return func(ts int64) bool { return ts > end }
	}
}
