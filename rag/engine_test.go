package rag

import (
	"context"
	"strings"
	"testing"

	"dms/model"
	"dms/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	answer    string
	err       error
	calls     int
	messages  []model.Message
	preferred string
}

func (f *fakeCompleter) CompleteWith(_ context.Context, messages []model.Message, preferred string) (string, error) {
	f.calls++
	f.messages = messages
	f.preferred = preferred
	return f.answer, f.err
}

// newTestEngine skips the tokenizer so budgeting runs on the
// deterministic character estimate (4 chars per token).
func newTestEngine(chain Completer, budget int) *Engine {
	return &Engine{chain: chain, contextBudget: budget}
}

func TestAnswer_EmptyResultsSkipsProvider(t *testing.T) {
	chain := &fakeCompleter{answer: "should not be used"}
	e := newTestEngine(chain, 3000)

	resp, err := e.Answer(context.Background(), "Wie hoch ist die Miete?", nil, "")
	require.NoError(t, err)

	assert.Equal(t, NoResultsAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, resp.Confidence)
	assert.Zero(t, resp.ResultsCount)
	assert.Zero(t, chain.calls, "the model must never be invoked without results")
	assert.False(t, resp.Timestamp.IsZero())
}

func TestAnswer_GroundedPrompt(t *testing.T) {
	chain := &fakeCompleter{answer: "Die Miete beträgt 950 Euro [Quelle: vertrag.pdf, Seite 2]."}
	e := newTestEngine(chain, 3000)

	results := []types.SearchResult{
		result("vertrag.pdf", 2, 0.91, "Die monatliche Miete beträgt 950 Euro."),
		result("nebenkosten.pdf", 1, 0.74, "Nebenkosten von 120 Euro monatlich."),
	}

	resp, err := e.Answer(context.Background(), "Wie hoch ist die Miete?", results, "openai/gpt-4")
	require.NoError(t, err)

	require.Equal(t, 1, chain.calls)
	assert.Equal(t, "openai/gpt-4", chain.preferred)

	require.Len(t, chain.messages, 2)
	system := chain.messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "vertrag.pdf (Seite 2)")
	assert.Contains(t, system.Content, "nebenkosten.pdf (Seite 1)")
	assert.Contains(t, system.Content, "Die monatliche Miete beträgt 950 Euro.")
	assert.Equal(t, model.Message{Role: "user", Content: "Wie hoch ist die Miete?"}, chain.messages[1])

	assert.Equal(t, chain.answer, resp.Answer)
	assert.Equal(t, 2, resp.ResultsCount)
}

func TestAnswer_SourcesFollowContextOrderAndDeduplicate(t *testing.T) {
	chain := &fakeCompleter{answer: "ok"}
	e := newTestEngine(chain, 3000)

	results := []types.SearchResult{
		result("a.pdf", 3, 0.9, "erster Treffer"),
		result("a.pdf", 3, 0.8, "zweiter Treffer auf derselben Seite"),
		result("b.pdf", 1, 0.7, "anderes Dokument"),
	}

	resp, err := e.Answer(context.Background(), "Frage", results, "")
	require.NoError(t, err)

	require.Len(t, resp.Sources, 2, "one source per distinct document/page pair")
	assert.Equal(t, "a.pdf", resp.Sources[0].DocumentPath)
	assert.Equal(t, 3, resp.Sources[0].PageNumber)
	assert.Equal(t, "erster Treffer", resp.Sources[0].Excerpt)
	assert.Equal(t, "b.pdf", resp.Sources[1].DocumentPath)
}

func TestAnswer_BudgetDropsLowestRankedFirst(t *testing.T) {
	chain := &fakeCompleter{answer: "ok"}

	filler := strings.Repeat("Inhalt ", 50)
	results := []types.SearchResult{
		result("top.pdf", 1, 0.9, filler),
		result("second.pdf", 1, 0.5, filler),
	}

	// Budget fits roughly one formatted entry under the 4 chars/token
	// estimate, so only the top result makes it into the context.
	e := newTestEngine(chain, len(filler)/4+20)

	resp, err := e.Answer(context.Background(), "Frage", results, "")
	require.NoError(t, err)

	assert.Contains(t, chain.messages[0].Content, "top.pdf")
	assert.NotContains(t, chain.messages[0].Content, "second.pdf")

	require.Len(t, resp.Sources, 1, "dropped results are not cited")
	assert.Equal(t, "top.pdf", resp.Sources[0].DocumentPath)
	assert.Equal(t, 2, resp.ResultsCount, "the count reflects retrieval, not the context")
}

func TestAnswer_TopResultTruncatedWhenOverBudget(t *testing.T) {
	chain := &fakeCompleter{answer: "ok"}
	e := newTestEngine(chain, 10)

	huge := strings.Repeat("Vertragstext ", 200)
	resp, err := e.Answer(context.Background(), "Frage", []types.SearchResult{
		result("big.pdf", 1, 0.8, huge),
	}, "")
	require.NoError(t, err)

	assert.Less(t, len(chain.messages[0].Content), len(huge))
	require.Len(t, resp.Sources, 1)
}

func TestAnswer_ProviderErrorPropagates(t *testing.T) {
	chain := &fakeCompleter{err: &types.ProviderExhaustedError{
		Attempts: []types.ProviderAttempt{{Model: "a"}},
	}}
	e := newTestEngine(chain, 3000)

	_, err := e.Answer(context.Background(), "Frage", []types.SearchResult{
		result("a.pdf", 1, 0.9, "Text"),
	}, "")

	var exhausted *types.ProviderExhaustedError
	require.ErrorAs(t, err, &exhausted)
}

func TestConfidence(t *testing.T) {
	assert.Zero(t, confidence(nil))

	one := confidence([]types.SearchResult{result("a.pdf", 1, 0.9, "")})
	assert.InDelta(t, 0.9*0.7+0.3/3.0, one, 0.001)

	three := confidence([]types.SearchResult{
		result("a.pdf", 1, 0.9, ""),
		result("b.pdf", 1, 0.5, ""),
		result("c.pdf", 1, 0.4, ""),
	})
	assert.InDelta(t, 0.9*0.7+0.3, three, 0.001)
	assert.Greater(t, three, one, "more results raise confidence")

	perfect := confidence([]types.SearchResult{
		result("a.pdf", 1, 1.0, ""),
		result("b.pdf", 1, 1.0, ""),
		result("c.pdf", 1, 1.0, ""),
		result("d.pdf", 1, 1.0, ""),
	})
	assert.Equal(t, 1.0, perfect)
}

func TestExcerpt(t *testing.T) {
	short := "kurz"
	assert.Equal(t, short, excerpt(short))

	long := strings.Repeat("ä", 300)
	e := excerpt(long)
	assert.Equal(t, excerptLen+3, len([]rune(e)))
	assert.True(t, strings.HasSuffix(e, "..."))
}
