package api

import (
	"context"

	"dms/types"

	"github.com/gofiber/fiber/v2"
)

// Searcher retrieves ranked chunks for a query.
type Searcher interface {
	Search(ctx context.Context, params types.QueryParams) ([]types.SearchResult, error)
}

// Answerer turns retrieval results into a cited answer.
type Answerer interface {
	Answer(ctx context.Context, question string, results []types.SearchResult, preferredModel string) (types.RAGResponse, error)
}

// Summarizer provides the per-category aggregates.
type Summarizer interface {
	CategorySummaries(ctx context.Context) ([]types.CategorySummary, error)
}

type QueryHandler struct {
	searcher  Searcher
	answerer  Answerer
	summaries Summarizer
}

func NewQueryHandler(searcher Searcher, answerer Answerer, summaries Summarizer) *QueryHandler {
	return &QueryHandler{
		searcher:  searcher,
		answerer:  answerer,
		summaries: summaries,
	}
}

// HandleQuery runs retrieval and answer generation for one question.
func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	results, err := h.searcher.Search(c.Context(), params)
	if err != nil {
		return err
	}

	resp, err := h.answerer.Answer(c.Context(), params.Question, results, params.Model)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// HandleCategories returns document counts and average confidence per
// category.
func (h *QueryHandler) HandleCategories(c *fiber.Ctx) error {
	summaries, err := h.summaries.CategorySummaries(c.Context())
	if err != nil {
		return err
	}
	if summaries == nil {
		summaries = []types.CategorySummary{}
	}
	return c.JSON(summaries)
}
