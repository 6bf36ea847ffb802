package main

import (
	"os"
	"os/signal"
	"syscall"

	"dms/app/server"
	"dms/config"
	"dms/pkg/log"

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

	s := server.New(cfg)
	go func() {
		if err := s.Run(); err != nil {
			log.Fatal("server error", err)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Info("received shutdown signal, shutting down server")
	s.Stop()
}
