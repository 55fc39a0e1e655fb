package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/pharmakg/sentinel/internal/server/middleware"
	"github.com/pharmakg/sentinel/pkg/logger"
)

// PostQueryHandler runs a query synchronously through the ReAct loop and
// returns the full result. Concurrency is bounded by the query semaphore so
// the graph pool is never oversubscribed.
func PostQueryHandler(c echo.Context) error {
	type postQueryParams struct {
		Query         string `json:"query" validate:"required"`
		MaxIterations int    `json:"max_iterations" validate:"omitempty,min=1,max=10"`
	}

	params := new(postQueryParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if err := app.QuerySlots.Acquire(ctx, 1); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Server busy"})
	}
	defer app.QuerySlots.Release(1)

	result := app.Orchestrator.Run(ctx, params.Query, params.MaxIterations)
	if result.CompletionReason == "error" {
		logger.Error("Query failed", "query_id", result.QueryID, "error", result.Error)
		return c.JSON(http.StatusBadGateway, result)
	}
	return c.JSON(http.StatusOK, result)
}
