package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/simaogato/portfolio-valuation/internal/adapter/dto"
	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/platform/metrics"
)

// RouterConfig configures the HTTP surface
type RouterConfig struct {
	AppName  string
	APIToken string
	Logger   zerolog.Logger
}

// NewRouter builds the Fiber app serving h
func NewRouter(h *Handler, cfg RouterConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ErrorHandler:          ErrorHandler(cfg.Logger),
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(metrics.Middleware("/metrics", "/health"))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": cfg.AppName,
		})
	})
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/v1", BearerAuth(cfg.APIToken))

	// Portfolio endpoints
	api.Get("/portfolios/:id/value", h.GetValueSeries)
	api.Get("/portfolios/:id/weights", h.GetWeightsFromInception)
	api.Get("/portfolios/:id/overview", h.GetOverview)
	api.Post("/portfolios/:id/trade", h.SimulateTrade)
	api.Post("/portfolios/:id/deposits", h.RecordDeposit)
	api.Post("/portfolios/:id/reconcile", h.Reconcile)

	// Market data endpoints
	api.Post("/assets/:symbol/prices", h.RecordPrice)
	api.Get("/assets/:symbol/prices/latest", h.GetLatestPrice)

	return app
}

// BearerAuth rejects requests whose Authorization header does not carry token
func BearerAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}
		if got, ok := strings.CutPrefix(header, "Bearer "); !ok || got != token {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		return c.Next()
	}
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindInvalidState:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error as {"error": message}
func ErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusFor(err)

		message := dto.Message(err)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			message = fe.Message
		}

		event := logger.Debug()
		if code >= fiber.StatusInternalServerError {
			event = logger.Error()
		}
		event.Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", code).
			Msg("request error")

		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}
