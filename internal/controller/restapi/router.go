package restapi

import (
	"github.com/andreyxaxa/Event-Pseudonymizer/config"
	v1 "github.com/andreyxaxa/Event-Pseudonymizer/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// @title Event pseudonymizer
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	ingest usecase.IngestUseCase,
	tr usecase.TransformUseCase,
	l logger.Interface,
) {
	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Prometheus metrics
	if cfg.Metrics.Enabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// K8s probe
	app.Get("/healthz", func(ctx *fiber.Ctx) error { return ctx.SendStatus(fiber.StatusOK) })

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewEventRoutes(apiV1Group, ingest, tr, l, cfg.Transform.Deadline)
	}
}
