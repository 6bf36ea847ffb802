package server

import (
	"context"

	"dms/app/api"
	"dms/config"
	"dms/model"
	"dms/pkg/log"
	"dms/rag"
	"dms/store"

	"github.com/gofiber/fiber/v2"
)

var fiberConfig = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	cfg config.Config
}

func New(cfg config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Stop() {
	log.Info("server stopped")
}

// Run wires the query stack and serves until Listen returns.
func (s *Server) Run() error {
	ctx := context.Background()

	pool, err := store.NewPostgresStore(ctx, s.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Init(ctx); err != nil {
		return err
	}

	embedder := model.NewOllamaEmbedder(s.cfg.Embedding.ServerURL, s.cfg.Embedding.Model)
	provider := model.NewOpenRouterClient(
		s.cfg.OpenRouter.APIKey,
		s.cfg.OpenRouter.BaseURL,
		s.cfg.OpenRouter.Timeout,
	)
	chain := model.NewFallbackChain(provider, s.cfg.OpenRouter.ModelChain(), s.cfg.OpenRouter.MaxRetries)

	aggregator := rag.NewAggregator(pool, embedder)
	engine := rag.NewEngine(chain, s.cfg.OpenRouter.ContextBudget)

	var (
		app           = fiber.New(fiberConfig)
		queryHandler  = api.NewQueryHandler(aggregator, engine, pool)
		checkHandler  = api.NewCheckHandler(chain, provider)
		configHandler = api.NewConfigHandler(s.cfg)
		check         = app.Group("/check")
		apiv1         = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	check.Get("/llm", checkHandler.HandleLLM)
	check.Get("/models", checkHandler.HandleModels)

	apiv1.Post("/query", queryHandler.HandleQuery)
	apiv1.Get("/categories", queryHandler.HandleCategories)
	apiv1.Get("/config", configHandler.HandleGetConfig)

	log.Infof("listening on %s", s.cfg.Server.ListenAddr)
	return app.Listen(s.cfg.Server.ListenAddr)
}
