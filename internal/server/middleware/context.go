package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/semaphore"

	"github.com/pharmakg/sentinel/pkg/react"
)

// AppUser is the authenticated caller.
type AppUser struct {
	UserID string
	Role   string
}

// App holds the shared read-only components every request handler needs.
type App struct {
	Orchestrator *react.Orchestrator
	Queue        *amqp091.Channel
	S3           *s3.Client
	Key          *keyfunc.Keyfunc
	QuerySlots   *semaphore.Weighted
	MasterAPIKey string
}

// AppContext wraps the echo context with the application state.
type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware attaches the shared application state to every
// request.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
