package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmakg/sentinel/internal/queue"
	"github.com/pharmakg/sentinel/internal/server/middleware"
	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/logger"
)

// PostQueryAsyncHandler enqueues a query as a batch job and returns its job
// id. The worker archives the finished trace to the audit bucket.
func PostQueryAsyncHandler(c echo.Context) error {
	type postQueryAsyncParams struct {
		Query         string `json:"query" validate:"required"`
		MaxIterations int    `json:"max_iterations" validate:"omitempty,min=1,max=10"`
	}

	params := new(postQueryAsyncParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Batch queries are not configured"})
	}

	job := queue.QueryJob{
		JobID:         util.NewJobID(),
		Query:         params.Query,
		MaxIterations: params.MaxIterations,
	}
	body, err := json.Marshal(job)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	if err := queue.Publish(app.Queue, queue.QueryQueue, body); err != nil {
		logger.Error("Failed to enqueue query job", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"job_id": job.JobID})
}
