package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pressworks/disseminator/internal/config"
	"github.com/pressworks/disseminator/internal/journal"
	"github.com/pressworks/disseminator/internal/packaging"
	"github.com/pressworks/disseminator/internal/pipeline"
	"github.com/pressworks/disseminator/internal/registry"
	"github.com/pressworks/disseminator/internal/secrets"
	"github.com/pressworks/disseminator/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var jrnl pipeline.Journal
	if cfg.DatabaseURL != "" {
		pool, err := journal.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect journal: %v", err)
		}
		defer pool.Close()
		if err := journal.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		jrnl = journal.New(pool)
	}

	reg := registry.NewGraphQL(cfg.RegistryURL, cfg.RegistryTimeout)
	fetcher := packaging.NewFetcher(cfg.FetchTimeout, cfg.VerifyChecksums, cfg.VerifyPDF)
	builder := packaging.NewBuilder(fetcher, nil)
	orchestrator := pipeline.NewOrchestrator(reg, builder, jrnl, nil)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Concurrency,
	})
	processor := worker.NewProcessor(cfg, secrets.NewStore(), orchestrator)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
