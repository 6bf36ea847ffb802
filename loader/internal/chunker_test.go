package internal

import (
	"strings"
	"testing"

	"dms/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromPages(pages ...string) *types.DocumentContent {
	return &types.DocumentContent{
		FilePath:  "2024/03/test.pdf",
		Text:      strings.Join(pages, "\n"),
		PageTexts: pages,
		PageCount: len(pages),
	}
}

func TestSplitDocument_ShortTextSingleChunk(t *testing.T) {
	doc := docFromPages("short text")
	chunks := SplitDocument(doc, 100, 20)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc.Text, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, "2024/03/test.pdf", chunks[0].DocumentID)
}

func TestSplitDocument_OverlapIsVerbatim(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30) // 300 chars
	doc := docFromPages(text)
	chunkSize, overlap := 100, 20

	chunks := SplitDocument(doc, chunkSize, overlap)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		cur := []rune(chunks[i].Content)

		shared := overlap
		if len(cur) < overlap {
			shared = len(cur)
		}
		assert.Equal(t, string(prev[len(prev)-shared:]), string(cur[:shared]),
			"chunks %d/%d must share the overlap region verbatim", i-1, i)
	}
}

func TestSplitDocument_ChunkSizeBound(t *testing.T) {
	doc := docFromPages(strings.Repeat("x", 1234))
	chunks := SplitDocument(doc, 100, 20)

	for i, c := range chunks {
		if i < len(chunks)-1 {
			assert.Len(t, []rune(c.Content), 100)
		} else {
			assert.LessOrEqual(t, len([]rune(c.Content)), 100)
		}
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestSplitDocument_Reconstruction(t *testing.T) {
	// Dropping each chunk's leading overlap reproduces the original
	// text, so chunking loses nothing.
	text := strings.Repeat("Die Rechnung über 42,00 € ist zahlbar bis Ende März. ", 40)
	doc := docFromPages(text)
	overlap := 50

	chunks := SplitDocument(doc, 200, overlap)
	require.Greater(t, len(chunks), 1)

	var b strings.Builder
	b.WriteString(chunks[0].Content)
	for i := 1; i < len(chunks); i++ {
		cur := []rune(chunks[i].Content)
		shared := overlap
		if len(cur) < shared {
			shared = len(cur)
		}
		b.WriteString(string(cur[shared:]))
	}
	assert.Equal(t, doc.Text, b.String())
}

func TestSplitDocument_PageAttribution(t *testing.T) {
	page1 := strings.Repeat("a", 120)
	page2 := strings.Repeat("b", 120)
	page3 := strings.Repeat("c", 120)
	doc := docFromPages(page1, page2, page3)

	chunks := SplitDocument(doc, 100, 0)
	require.NotEmpty(t, chunks)

	// First chunk starts on page 1, last chunk on page 3.
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 3, chunks[len(chunks)-1].PageNumber)

	// Pages are non-decreasing along the chunk sequence.
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, chunks[i].PageNumber, chunks[i-1].PageNumber)
	}
}

func TestSplitDocument_MultibyteRunesSurviveChunking(t *testing.T) {
	text := strings.Repeat("Fälligkeitsdatum: 31.03.2024 — Betrag 1.234,56 € ", 20)
	doc := docFromPages(text)

	chunks := SplitDocument(doc, 80, 10)
	for _, c := range chunks {
		assert.True(t, strings.ContainsRune(doc.Text, []rune(c.Content)[0]))
		assert.LessOrEqual(t, len([]rune(c.Content)), 80)
	}
}

func TestSplitDocument_EmptyText(t *testing.T) {
	doc := docFromPages("")
	assert.Nil(t, SplitDocument(doc, 100, 20))
}
