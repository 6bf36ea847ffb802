package main

import (
	"context"

	"dms/config"
	"dms/loader/internal"
	"dms/loader/service"
	"dms/model"
	"dms/pkg/log"
	"dms/store"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("error loading configuration", err)
	}
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	ctx := context.Background()
	pool, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatal("error connecting to postgres", err)
	}
	defer pool.Close()

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error creating tables", err)
	}

	ocr := model.NewTesseractClient(cfg.OCR.ServerURL, cfg.OCR.Language)
	extractor := internal.NewExtractor(internal.OpenPDF, ocr, cfg.OCR)
	embedder := model.NewOllamaEmbedder(cfg.Embedding.ServerURL, cfg.Embedding.Model)

	service.New(cfg, pool, extractor, embedder).Run()
}
