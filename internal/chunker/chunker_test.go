package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

func testRepo() domain.Repository {
	return domain.Repository{
		ID:          42,
		FullName:    "octo/widgets",
		Description: "Widgets for the terminal",
		Language:    "Go",
		Topics:      []string{"tui", "widgets"},
	}
}

func TestNormalize_StripsMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"heading", "# Title\n\nBody", "Title\n\nBody"},
		{"link keeps text", "see [the docs](https://example.com)", "see the docs"},
		{"image dropped", "![logo](logo.png) hello", "hello"},
		{"bold and italic", "**bold** and *italic* and __under__", "bold and italic and under"},
		{"inline code keeps text", "run `go test` now", "run go test now"},
		{"code fence dropped", "before\n```go\nfunc main() {}\n```\nafter", "before\n\nafter"},
		{"html tags", "<p>hello <b>world</b></p>", "hello world"},
		{"entities", "a &amp; b &#169; c", "a b c"},
		{"blockquote", "> quoted line", "quoted line"},
		{"list markers", "- one\n* two\n3. three", "one\ntwo\nthree"},
		{"horizontal rule", "above\n---\nbelow", "above\nbelow"},
		{"whitespace collapsed", "a  \t b\n\n\n\nc", "a b\n\nc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestChunk_EmptyReadmeProducesOneMetadataChunk(t *testing.T) {
	chunks := Chunk(testRepo(), "")

	require.Len(t, chunks, 1)
	assert.Equal(t, "42:0", chunks[0].ID)
	assert.Equal(t, int64(42), chunks[0].RepoID)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, domain.ChunkSourceMetadata, chunks[0].Source)
	assert.Contains(t, chunks[0].Content, "octo/widgets")
	assert.Contains(t, chunks[0].Content, "Language: Go")
	assert.Contains(t, chunks[0].Content, "Topics: tui, widgets")
}

func TestChunk_DeterministicIDs(t *testing.T) {
	readme := strings.Repeat("lorem ipsum dolor sit amet ", 200)

	first := Chunk(testRepo(), readme)
	second := Chunk(testRepo(), readme)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, i, first[i].Position)
	}
}

func TestChunk_WindowsOverlap(t *testing.T) {
	readme := strings.Repeat("abcdefghij ", 300) // ~3300 chars: short tier

	chunks := Chunk(testRepo(), readme)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev[len(prev)-shortOverlap:]
		assert.True(t, strings.HasPrefix(chunks[i].Content, tail),
			"chunk %d should start with the previous window's tail", i)
	}
}

func TestChunk_AdaptiveTiers(t *testing.T) {
	short := Chunk(testRepo(), strings.Repeat("x", 2_000))
	medium := Chunk(testRepo(), strings.Repeat("x", 20_000))
	long := Chunk(testRepo(), strings.Repeat("x", 60_000))

	assert.LessOrEqual(t, len(short[0].Content), shortWindow)
	assert.LessOrEqual(t, len(medium[0].Content), mediumWindow)
	assert.LessOrEqual(t, len(long[0].Content), longWindow)

	// Larger documents produce more, smaller windows.
	assert.Greater(t, len(long), len(medium))
	assert.Greater(t, len(medium), len(short))
}

func TestChunk_TruncatesVeryLongDocuments(t *testing.T) {
	readme := strings.Repeat("y", MaxDocumentLength+50_000)

	chunks := Chunk(testRepo(), readme)

	var total int
	for _, c := range chunks {
		total += len(c.Content)
	}
	// Total coverage is bounded by the cap plus header and overlap slack.
	overhead := len(chunks) * longOverlap
	assert.LessOrEqual(t, total, MaxDocumentLength+overhead+200)
}

func TestChunk_MultiByteTextStaysValidUTF8(t *testing.T) {
	// 3-byte runes, well past the document cap, so both the cap and the
	// window edges would land mid-rune without boundary snapping.
	readme := strings.Repeat("日本語のドキュメント。", 20_000)

	chunks := Chunk(testRepo(), readme)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Content), "chunk %d split a rune", c.Position)
	}
}

func TestChunk_AllContentCovered(t *testing.T) {
	readme := strings.Repeat("0123456789", 500)

	chunks := Chunk(testRepo(), readme)
	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(last.Content, "9"))
}
