package types

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionMethod describes how text was pulled out of a PDF.
type ExtractionMethod string

const (
	ExtractionDirect ExtractionMethod = "direct"
	ExtractionOCR    ExtractionMethod = "ocr"
	ExtractionHybrid ExtractionMethod = "hybrid"
)

// DocumentContent is the result of importing a single PDF. It is created
// once by the loader and never mutated afterwards.
type DocumentContent struct {
	FilePath       string           // source path, doubles as document identity
	Text           string           // full text, pages joined with "\n"
	PageTexts      []string         // per-page text, same order as the PDF
	PageCount      int
	FileSize       int64
	ImportDate     time.Time
	Directory      string           // hierarchical grouping key, e.g. "2024/03/Rechnungen"
	OCRUsed        bool
	Method         ExtractionMethod // direct, ocr or hybrid
	ProcessingTime time.Duration
}

// TextChunk is a page-anchored span of a document's text, the unit of
// retrieval. Embedding is filled in by the embedder before storage.
type TextChunk struct {
	ID         uuid.UUID
	DocumentID string // owning document path
	Content    string
	PageNumber int // page containing the chunk's first character
	ChunkIndex int // ordinal position within the document
	Embedding  []float32
}

// SuggestedCategory is a (category, confidence) alternative to the
// primary category, used in CategoryResult.
type SuggestedCategory struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// CategoryResult is the outcome of categorizing one document.
// PrimaryConfidence is always >= every suggestion's confidence, and the
// primary category never appears among the suggestions.
type CategoryResult struct {
	PrimaryCategory string              `json:"primary_category"`
	Confidence      float64             `json:"confidence"`
	Entities        map[string]string   `json:"entities"`
	Suggestions     []SuggestedCategory `json:"suggested_categories"`
}

// SearchResult is one ranked match from retrieval. Produced per query,
// never persisted.
type SearchResult struct {
	Chunk        TextChunk
	Score        float64 // relevance, higher is better
	DocumentPath string
	PageNumber   int
	Directory    string
}

// Source is the citation unit attached to a generated answer.
type Source struct {
	DocumentPath string  `json:"document_path"`
	PageNumber   int     `json:"page_number"`
	Directory    string  `json:"directory"`
	Excerpt      string  `json:"excerpt"`
	Relevance    float64 `json:"relevance"`
}

// RAGResponse is the answer object returned for one query.
type RAGResponse struct {
	Answer       string    `json:"answer"`
	Sources      []Source  `json:"sources"`
	Confidence   float64   `json:"confidence"`
	ResultsCount int       `json:"search_results_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// CategorySummary is an aggregate row for one category in the metadata
// store.
type CategorySummary struct {
	Category      string  `json:"category"`
	DocumentCount int     `json:"document_count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// SearchFilter narrows retrieval by document metadata. Zero values mean
// "no constraint".
type SearchFilter struct {
	Category  string
	Directory string // prefix match on the directory label, e.g. "2024/03"
	DateFrom  time.Time
	DateTo    time.Time
}
