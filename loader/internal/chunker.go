package internal

import (
	"dms/types"

	"github.com/google/uuid"
)

// SplitDocument cuts a document's text into overlapping chunks. Chunk
// boundaries run over runes so multibyte text never splits mid-char;
// consecutive chunks share exactly overlap runes of verbatim text
// (clamped to the final chunk's length when it is shorter). The page
// attached to a chunk is the page containing its first character.
// Pure function of its inputs, no I/O.
func SplitDocument(doc *types.DocumentContent, chunkSize, overlap int) []types.TextChunk {
	spans := splitText(doc.Text, chunkSize, overlap)
	if len(spans) == 0 {
		return nil
	}

	pageStarts := pageStartOffsets(doc.PageTexts)

	chunks := make([]types.TextChunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, types.TextChunk{
			ID:         uuid.New(),
			DocumentID: doc.FilePath,
			Content:    s.text,
			PageNumber: pageForOffset(pageStarts, s.start),
			ChunkIndex: i,
		})
	}
	return chunks
}

type span struct {
	start int // rune offset into the full text
	text  string
}

func splitText(text string, chunkSize, overlap int) []span {
	runes := []rune(text)
	if len(runes) == 0 || chunkSize <= 0 {
		return nil
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	if overlap < 0 {
		overlap = 0
	}

	step := chunkSize - overlap
	var spans []span
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		spans = append(spans, span{start: start, text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return spans
}

// pageStartOffsets returns the rune offset of each page's first
// character in the newline-joined full text.
func pageStartOffsets(pageTexts []string) []int {
	starts := make([]int, len(pageTexts))
	offset := 0
	for i, p := range pageTexts {
		starts[i] = offset
		offset += len([]rune(p)) + 1 // joining newline
	}
	return starts
}

func pageForOffset(starts []int, offset int) int {
	if len(starts) == 0 {
		return 1
	}
	page := 1
	for i, s := range starts {
		if offset >= s {
			page = i + 1
		} else {
			break
		}
	}
	return page
}
