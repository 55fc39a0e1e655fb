package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/pharmakg/sentinel/internal/engine"
	"github.com/pharmakg/sentinel/internal/queue"
	mid "github.com/pharmakg/sentinel/internal/server/middleware"
	"github.com/pharmakg/sentinel/internal/storage"
	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/config"
	"github.com/pharmakg/sentinel/pkg/logger"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// Init builds the engine and serves the HTTP API until interrupted. The
// graph schema probe runs during engine build; a mismatch refuses startup.
func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	eng, err := engine.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build query engine", "err", err)
	}
	defer eng.Close()

	var key *keyfunc.Keyfunc
	if jwksURL := util.GetEnv("AUTH_JWKS_URL"); jwksURL != "" {
		k, err := keyfunc.NewDefault([]string{jwksURL})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = &k
	}

	app := &mid.App{
		Orchestrator: eng.Orchestrator,
		S3:           storage.NewS3Client(ctx),
		Key:          key,
		QuerySlots:   semaphore.NewWeighted(int64(util.GetEnvNumeric("MAX_CONCURRENT_QUERIES", 4))),
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	if util.GetEnv("RABBITMQ_HOST") != "" {
		que := queue.Init()
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(ch); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		app.Queue = ch
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "err", err)
	}
}
