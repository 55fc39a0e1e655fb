package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetHealthHandler reports liveness. The graph schema probe already gated
// startup, so a running server implies a reachable, compatible store at
// boot time.
func GetHealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
