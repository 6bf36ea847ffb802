// Package rag turns retrieval results into grounded, cited answers.
package rag

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"dms/model"
	"dms/pkg/log"
	"dms/store"
	"dms/types"
)

// DefaultLimit is used when the caller does not cap the result count.
const DefaultLimit = 5

// keyword fallback fetches more candidates than the limit so that
// density scoring has something to rank.
const candidateFactor = 4

// Aggregator answers "which chunks are relevant to this question". It
// embeds the question, queries the store with the caller's filters and
// degrades to keyword matching when the store's vector search is down.
type Aggregator struct {
	store store.DBStorer
	embed model.Embedder
}

func NewAggregator(st store.DBStorer, embed model.Embedder) *Aggregator {
	return &Aggregator{store: st, embed: embed}
}

// Search returns up to params.Limit results ordered by descending
// relevance; ties break on shorter document path, then page number.
// A store outage is never surfaced: retrieval degrades to keyword
// matching with a warning.
func (a *Aggregator) Search(ctx context.Context, params types.QueryParams) ([]types.SearchResult, error) {
	filter, err := translateFilter(params)
	if err != nil {
		return nil, err
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := a.embed.Embed(ctx, params.Question)
	if err != nil {
		log.Warnw("embedding unavailable, degrading to keyword search", "error", err)
		return a.keywordSearch(ctx, params.Question, filter, limit)
	}

	results, err := a.store.Search(ctx, vec, filter, limit)
	if err != nil {
		if errors.Is(err, types.ErrStoreUnavailable) {
			log.Warnw("vector search unavailable, degrading to keyword search", "error", err)
			return a.keywordSearch(ctx, params.Question, filter, limit)
		}
		return nil, err
	}

	sortResults(results)
	return results, nil
}

// keywordSearch is the degraded path: candidate chunks come from a
// substring match, scored here by term match density instead of vector
// similarity.
func (a *Aggregator) keywordSearch(ctx context.Context, question string, filter types.SearchFilter, limit int) ([]types.SearchResult, error) {
	terms := queryTerms(question)
	if len(terms) == 0 {
		return nil, nil
	}

	candidates, err := a.store.FetchByKeywords(ctx, terms, filter, limit*candidateFactor)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		candidates[i].Score = matchDensity(candidates[i].Chunk.Content, terms)
	}
	sortResults(candidates)

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// matchDensity scores a chunk by the fraction of query terms it
// contains plus a small bonus for repeated occurrences. Always in
// (0,1] for a chunk that matched at least one term.
func matchDensity(content string, terms []string) float64 {
	lower := strings.ToLower(content)

	matched := 0
	occurrences := 0
	for _, t := range terms {
		n := strings.Count(lower, t)
		if n > 0 {
			matched++
			occurrences += n
		}
	}
	if matched == 0 {
		return 0
	}

	score := float64(matched) / float64(len(terms))
	bonus := float64(occurrences-matched) * 0.01
	if bonus > 0.1 {
		bonus = 0.1
	}
	score += bonus
	if score > 1 {
		score = 1
	}
	return score
}

// queryTerms lowercases the question and keeps the words long enough to
// be selective.
func queryTerms(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !isWordRune(r)
	})

	terms := make([]string, 0, len(fields))
	seen := make(map[string]bool)
	for _, f := range fields {
		if len([]rune(f)) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func isWordRune(r rune) bool {
	return r == '-' || r == 'ä' || r == 'ö' || r == 'ü' || r == 'ß' ||
		(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// sortResults orders by score descending; ties break on the shorter
// document path, then lexicographic path, then ascending page.
func sortResults(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.DocumentPath) != len(b.DocumentPath) {
			return len(a.DocumentPath) < len(b.DocumentPath)
		}
		if a.DocumentPath != b.DocumentPath {
			return a.DocumentPath < b.DocumentPath
		}
		return a.PageNumber < b.PageNumber
	})
}

// translateFilter maps request-level filter strings onto the store's
// filter shape. Dates arrive validated as 2006-01-02.
func translateFilter(params types.QueryParams) (types.SearchFilter, error) {
	f := types.SearchFilter{
		Category:  params.Category,
		Directory: strings.Trim(params.Directory, "/"),
	}

	if params.DateFrom != "" {
		t, err := time.Parse("2006-01-02", params.DateFrom)
		if err != nil {
			return types.SearchFilter{}, err
		}
		f.DateFrom = t
	}
	if params.DateTo != "" {
		t, err := time.Parse("2006-01-02", params.DateTo)
		if err != nil {
			return types.SearchFilter{}, err
		}
		// Inclusive upper bound for the whole day.
		f.DateTo = t.Add(24*time.Hour - time.Nanosecond)
	}
	return f, nil
}
