package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dms/model"
	"dms/pkg/log"
	"dms/types"

	"github.com/pkoukk/tiktoken-go"
)

// NoResultsAnswer is returned verbatim when retrieval comes up empty.
// The language model is never consulted in that case.
const NoResultsAnswer = "Es wurden keine relevanten Informationen zu Ihrer Frage gefunden. " +
	"Versuchen Sie eine andere Formulierung oder überprüfen Sie, " +
	"ob entsprechende Dokumente importiert wurden."

const systemPromptHeader = `Du bist ein hilfreicher Assistent für ein Dokumentenmanagementsystem.
Beantworte Fragen basierend auf den bereitgestellten Dokumenteninhalten auf Deutsch.

WICHTIGE REGELN:
1. Beantworte nur Fragen, die durch die bereitgestellten Dokumente beantwortet werden können
2. Gib immer die Quellen (Dokumentpfad und Seitenzahl) für deine Antworten an
3. Wenn die Informationen nicht ausreichen, sage das ehrlich
4. Antworte präzise und strukturiert
5. Verwende die deutsche Sprache

VERFÜGBARE DOKUMENTE:
`

const systemPromptFooter = "\nBeantworte die folgende Frage basierend auf diesen Dokumenten:"

// Completer is the slice of the provider fallback chain the engine
// needs. An empty preferred model runs the configured chain as is.
type Completer interface {
	CompleteWith(ctx context.Context, messages []model.Message, preferred string) (string, error)
}

// Engine assembles a bounded context from search results, asks the
// provider chain for a grounded answer and attaches the citations.
type Engine struct {
	chain         Completer
	contextBudget int // tokens available for retrieved context
	enc           *tiktoken.Tiktoken
}

func NewEngine(chain Completer, contextBudget int) *Engine {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		log.Warnf("tiktoken unavailable, falling back to character-based budgeting: %v", err)
	}
	return &Engine{chain: chain, contextBudget: contextBudget, enc: enc}
}

// Answer produces a RAGResponse for the question over the given search
// results. Results are consumed in the aggregator's order; when the
// token budget runs out the lowest-ranked results are dropped first.
// An exhausted provider chain surfaces as the chain's error.
func (e *Engine) Answer(ctx context.Context, question string, results []types.SearchResult, preferredModel string) (types.RAGResponse, error) {
	if len(results) == 0 {
		return types.RAGResponse{
			Answer:       NoResultsAnswer,
			Sources:      []types.Source{},
			Confidence:   0,
			ResultsCount: 0,
			Timestamp:    time.Now(),
		}, nil
	}

	included, contextText := e.buildContext(results)

	messages := []model.Message{
		{Role: "system", Content: systemPromptHeader + contextText + systemPromptFooter},
		{Role: "user", Content: question},
	}

	answer, err := e.chain.CompleteWith(ctx, messages, preferredModel)
	if err != nil {
		return types.RAGResponse{}, err
	}

	return types.RAGResponse{
		Answer:       answer,
		Sources:      collectSources(included),
		Confidence:   confidence(results),
		ResultsCount: len(results),
		Timestamp:    time.Now(),
	}, nil
}

// buildContext formats results into the prompt context until the token
// budget is spent. The top result is always included, truncated if it
// alone overflows the budget.
func (e *Engine) buildContext(results []types.SearchResult) ([]types.SearchResult, string) {
	var b strings.Builder
	var included []types.SearchResult
	remaining := e.contextBudget

	for i, r := range results {
		entry := fmt.Sprintf("Quelle: %s (Seite %d)\nInhalt: %s\nRelevanz: %.2f",
			r.DocumentPath, r.PageNumber, r.Chunk.Content, r.Score)

		cost := e.countTokens(entry)
		if cost > remaining {
			if i > 0 {
				break
			}
			entry = e.truncateToBudget(entry, remaining)
			cost = remaining
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(entry)
		included = append(included, r)
		remaining -= cost
	}

	return included, b.String()
}

func (e *Engine) countTokens(text string) int {
	if e.enc == nil {
		return len([]rune(text)) / 4
	}
	return len(e.enc.Encode(text, nil, nil))
}

func (e *Engine) truncateToBudget(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if e.enc == nil {
		runes := []rune(text)
		if len(runes) <= budget*4 {
			return text
		}
		return string(runes[:budget*4])
	}
	tokens := e.enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return e.enc.Decode(tokens[:budget])
}

// collectSources emits one citation per distinct (document, page) pair,
// in context order.
func collectSources(included []types.SearchResult) []types.Source {
	type key struct {
		path string
		page int
	}
	seen := make(map[key]bool)

	sources := make([]types.Source, 0, len(included))
	for _, r := range included {
		k := key{path: r.DocumentPath, page: r.PageNumber}
		if seen[k] {
			continue
		}
		seen[k] = true
		sources = append(sources, types.Source{
			DocumentPath: r.DocumentPath,
			PageNumber:   r.PageNumber,
			Directory:    r.Directory,
			Excerpt:      excerpt(r.Chunk.Content),
			Relevance:    r.Score,
		})
	}
	return sources
}

const excerptLen = 200

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLen {
		return content
	}
	return string(runes[:excerptLen]) + "..."
}

// confidence weighs the top result's relevance against how many
// results backed the answer. Zero only without results; otherwise it
// grows with the top score.
func confidence(results []types.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}

	countFactor := float64(len(results)) / 3.0
	if countFactor > 1 {
		countFactor = 1
	}

	c := results[0].Score*0.7 + countFactor*0.3
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}
