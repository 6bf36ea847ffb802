package api

import (
	"dms/config"

	"github.com/gofiber/fiber/v2"
)

type ConfigHandler struct {
	cfg config.Config
}

func NewConfigHandler(cfg config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// HandleGetConfig exposes the effective runtime settings. Credentials
// and connection strings stay out of the response.
func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ocr": fiber.Map{
			"enabled":   h.cfg.OCR.Enabled,
			"threshold": h.cfg.OCR.Threshold,
			"language":  h.cfg.OCR.Language,
		},
		"chunk_size":    h.cfg.ChunkSize,
		"chunk_overlap": h.cfg.Overlap,
		"openrouter": fiber.Map{
			"model_chain":    h.cfg.OpenRouter.ModelChain(),
			"timeout":        h.cfg.OpenRouter.Timeout.String(),
			"max_retries":    h.cfg.OpenRouter.MaxRetries,
			"context_budget": h.cfg.OpenRouter.ContextBudget,
		},
		"embedding_model": h.cfg.Embedding.Model,
	})
}
