package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pharmakg/sentinel/internal/engine"
	"github.com/pharmakg/sentinel/internal/queue"
	"github.com/pharmakg/sentinel/internal/storage"
	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/config"
	"github.com/pharmakg/sentinel/pkg/logger"
	"github.com/pharmakg/sentinel/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	logger.Init(console.New(console.Params{Debug: debug}))

	cfg := config.Load()
	eng, err := engine.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build query engine", "err", err)
	}
	defer eng.Close()

	s3Client := storage.NewS3Client(ctx)

	conn := queue.Init()
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Worker started", "queue", queue.QueryQueue)
	if err := queue.ConsumeQueryJobs(ctx, ch, eng.Orchestrator, s3Client); err != nil && ctx.Err() == nil {
		logger.Fatal("Worker stopped unexpectedly", "err", err)
	}
}
