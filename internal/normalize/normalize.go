// Package normalize turns raw note text into derived fields: the tag list,
// the body with the tag header stripped, and the audio classification.
package normalize

import (
	"regexp"
	"strings"

	"github.com/starford/mimir/internal/models"
)

var (
	audioEmbedRe = regexp.MustCompile(`(?i)!\[\[\s*(.*?\.mp3)\s*\]\]`)
	listItemRe   = regexp.MustCompile(`^\s*-\s*(.*)`)
)

const frontMatterDelim = "---"

// Result holds the derived fields for one note.
type Result struct {
	Tags               []string
	ContentWithoutTags string
}

// Normalize extracts tags from a leading front-matter block or a legacy
// single-line "tags:" header and returns the content with that header removed.
//
// It recognizes, in order:
//   - a front-matter block: line 0 is exactly "---", tags come from a "tags:"
//     key followed by "- value" list items, and the content is everything
//     after the closing delimiter;
//   - a legacy header: line 0 starts with "tags:" (case-insensitive), the rest
//     of that line is split on "-";
//   - anything else: no tags, content unchanged.
//
// An unterminated front-matter block is not front matter at all. The function
// is pure and idempotent: re-normalizing the returned content finds no tags.
func Normalize(raw string) Result {
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 {
		return Result{ContentWithoutTags: raw}
	}

	if strings.TrimSpace(lines[0]) == frontMatterDelim {
		if res, ok := parseFrontMatter(lines); ok {
			return res
		}
		return Result{ContentWithoutTags: raw}
	}

	if len(lines[0]) >= 5 && strings.EqualFold(lines[0][:5], "tags:") {
		return parseLegacyHeader(lines)
	}

	return Result{ContentWithoutTags: raw}
}

// parseFrontMatter scans the block between the delimiters for a tags list.
// Returns ok=false when no closing delimiter exists. The closing line must be
// the bare delimiter; a line with trailing whitespace does not terminate the
// block.
func parseFrontMatter(lines []string) (Result, bool) {
	end := -1
	for i := 1; i < len(lines); i++ {
		if lines[i] == frontMatterDelim {
			end = i
			break
		}
	}
	if end == -1 {
		return Result{}, false
	}

	var tags []string
	inTags := false
	for _, line := range lines[1:end] {
		if strings.HasPrefix(strings.TrimSpace(line), "tags:") {
			inTags = true
			continue
		}
		if !inTags {
			continue
		}
		m := listItemRe.FindStringSubmatch(line)
		if m != nil && m[1] != "" {
			tags = append(tags, strings.TrimSpace(m[1]))
		} else {
			// First non-list line ends the tag block.
			inTags = false
		}
	}

	content := strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
	return Result{Tags: tags, ContentWithoutTags: content}, true
}

// parseLegacyHeader handles the single-line "tags: a - b - c" form.
func parseLegacyHeader(lines []string) Result {
	header := lines[0][5:]

	var tags []string
	for _, part := range strings.Split(header, "-") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}

	return Result{
		Tags:               tags,
		ContentWithoutTags: strings.Join(lines[1:], "\n"),
	}
}

// DetectAudio reports whether raw embeds an .mp3 reference and returns the
// captured file name.
func DetectAudio(raw string) (string, bool) {
	m := audioEmbedRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Note builds a full in-memory note from one backend record. Derivation never
// fails: a record whose content defeats the tag scanner simply comes back with
// no tags.
func Note(rec models.NoteRecord) *models.Note {
	res := Normalize(rec.RawContent)

	n := &models.Note{
		ID:                 rec.ID,
		Path:               rec.Path,
		RawContent:         rec.RawContent,
		Tags:               res.Tags,
		ContentWithoutTags: res.ContentWithoutTags,
		LastModified:       rec.LastModified,
		IsMediaNote:        rec.IsMediaNote,
		MediaType:          rec.MediaType,
		TitleSlug:          rec.TitleSlug,
	}
	n.SetEnrichment(rec.Enrichment)

	if name, ok := DetectAudio(rec.RawContent); ok {
		n.IsAudioNote = true
		n.AudioFileName = name
	}

	return n
}
