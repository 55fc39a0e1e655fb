package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pharmakg/sentinel/internal/engine"
	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/config"
	"github.com/pharmakg/sentinel/pkg/logger"
	"github.com/pharmakg/sentinel/pkg/logger/console"
)

func main() {
	maxIterations := flag.Int("iterations", 0, "override the iteration budget (1-10)")
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: query [-iterations N] [-json] <question>")
		os.Exit(2)
	}

	util.LoadEnv()
	logger.Init(console.New(console.Params{Debug: util.GetEnvBool("DEBUG", false)}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	eng, err := engine.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build query engine", "err", err)
	}
	defer eng.Close()

	result := eng.Orchestrator.Run(ctx, query, *maxIterations)

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logger.Fatal("Failed to serialize result", "err", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Println(result.Summary)
	if len(result.Paths) > 0 {
		fmt.Println("\nRanked mechanistic paths:")
		for i, path := range result.Paths {
			fmt.Printf("%d. %s (score=%.3f, evidence=%d)\n", i+1, path.String(), path.Score, path.EvidenceCount)
		}
	}
	fmt.Printf("\ncompletion: %s (%d iterations)\n", result.CompletionReason, len(result.Trace))
}
