package server

import (
	"github.com/labstack/echo/v4"

	mid "github.com/pharmakg/sentinel/internal/server/middleware"
	"github.com/pharmakg/sentinel/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", routes.GetHealthHandler)

	api := e.Group("/api")
	api.Use(mid.AuthMiddleware)
	api.POST("/query", routes.PostQueryHandler)
	api.POST("/query/async", routes.PostQueryAsyncHandler)
}
