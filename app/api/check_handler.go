package api

import (
	"context"

	"dms/model"

	"github.com/gofiber/fiber/v2"
)

// LLMChecker is the provider chain entry used by connectivity checks.
type LLMChecker interface {
	CompleteWith(ctx context.Context, messages []model.Message, preferred string) (string, error)
}

// ModelLister lists the models the provider currently offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

type CheckHandler struct {
	chain  LLMChecker
	lister ModelLister
}

func NewCheckHandler(chain LLMChecker, lister ModelLister) *CheckHandler {
	return &CheckHandler{chain: chain, lister: lister}
}

func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

// HandleLLM sends a minimal prompt through the whole fallback chain, so
// the check exercises exactly the path a real query takes.
func (h *CheckHandler) HandleLLM(c *fiber.Ctx) error {
	answer, err := h.chain.CompleteWith(c.Context(), []model.Message{
		{Role: "user", Content: "Antworte nur mit OK."},
	}, "")
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": "ok", "answer": answer})
}

func (h *CheckHandler) HandleModels(c *fiber.Ctx) error {
	models, err := h.lister.ListModels(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"models": models})
}
