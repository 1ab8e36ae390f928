// Package chunker turns repository metadata and README text into ordered,
// overlapping text windows ready for embedding.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// MaxDocumentLength bounds how much README text is chunked. Longer
// documents are truncated to keep memory predictable.
const MaxDocumentLength = 100_000

// Window tiers. Longer documents use smaller windows and overlap, trading
// window count against context per window.
const (
	shortDocLimit  = 4_000
	mediumDocLimit = 30_000

	shortWindow   = 1200
	shortOverlap  = 200
	mediumWindow  = 900
	mediumOverlap = 120
	longWindow    = 600
	longOverlap   = 60
)

var (
	reCodeBlock    = regexp.MustCompile("(?s)```[^`]*```")
	reInlineCode   = regexp.MustCompile("`([^`]+)`")
	reImage        = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reHTMLTag      = regexp.MustCompile(`<[^>]+>`)
	reHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reBlockquote   = regexp.MustCompile(`(?m)^>\s*`)
	reHorizRule    = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	reListMarker   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	reNumberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	reEntity       = regexp.MustCompile(`&[a-zA-Z]{2,8};|&#\d{1,6};`)
	reMultiNewline = regexp.MustCompile(`\n{3,}`)
	reSpaces       = regexp.MustCompile(`[ \t]{2,}`)
)

// Normalize strips markup from raw README text, preserving the text
// content of links and emphasis. Whitespace is collapsed.
func Normalize(raw string) string {
	text := raw

	text = reCodeBlock.ReplaceAllString(text, "")
	text = reInlineCode.ReplaceAllString(text, "$1")
	text = reImage.ReplaceAllString(text, "")
	text = reLink.ReplaceAllString(text, "$1")
	text = reHTMLTag.ReplaceAllString(text, " ")
	text = reEntity.ReplaceAllString(text, " ")
	text = reHeading.ReplaceAllString(text, "")
	text = reBlockquote.ReplaceAllString(text, "")
	text = reHorizRule.ReplaceAllString(text, "")
	text = reListMarker.ReplaceAllString(text, "")
	text = reNumberedList.ReplaceAllString(text, "")

	// Emphasis markers, keeping the emphasised text.
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ReplaceAll(text, "~~", "")

	text = reSpaces.ReplaceAllString(text, " ")
	text = reMultiNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// windowParams returns the window size and overlap tier for a document of
// the given total length.
func windowParams(length int) (size, overlap int) {
	switch {
	case length <= shortDocLimit:
		return shortWindow, shortOverlap
	case length <= mediumDocLimit:
		return mediumWindow, mediumOverlap
	default:
		return longWindow, longOverlap
	}
}

// snapToRune moves a byte offset backwards until it lands on a rune
// boundary, so slicing never splits a multi-byte character.
func snapToRune(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// metadataHeader builds the short header prepended to the document text so
// every chunk carries identifying context.
func metadataHeader(repo domain.Repository) string {
	var b strings.Builder
	b.WriteString(repo.FullName)
	if repo.Description != "" {
		b.WriteString(" - ")
		b.WriteString(repo.Description)
	}
	b.WriteString("\n")
	if repo.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", repo.Language)
	}
	if len(repo.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(repo.Topics, ", "))
	}
	return b.String()
}

// Chunk splits a repository's metadata header plus normalized README into
// ordered overlapping windows. Empty input still produces exactly one
// chunk so every repository has index representation. Chunk IDs are
// deterministic ("{repoID}:{index}") so re-chunking unchanged text upserts
// in place.
func Chunk(repo domain.Repository, readme string) []domain.Chunk {
	doc := Normalize(readme)
	if len(doc) > MaxDocumentLength {
		doc = doc[:snapToRune(doc, MaxDocumentLength)]
	}

	source := domain.ChunkSourceReadme
	if doc == "" {
		source = domain.ChunkSourceMetadata
	}

	text := metadataHeader(repo) + doc
	size, overlap := windowParams(len(text))

	estimated := len(text)/(size-overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	position := 0
	for {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		end = snapToRune(text, end)

		chunks = append(chunks, domain.Chunk{
			ID:       domain.ChunkID(repo.ID, position),
			RepoID:   repo.ID,
			Position: position,
			Content:  text[start:end],
			Source:   source,
		})
		position++

		if end == len(text) {
			break
		}
		start = snapToRune(text, start+size-overlap)
	}

	return chunks
}
