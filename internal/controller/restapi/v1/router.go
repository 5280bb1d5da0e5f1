package v1

import (
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewEventRoutes(
	apiV1Group fiber.Router,
	ingest usecase.IngestUseCase,
	tr usecase.TransformUseCase,
	l logger.Interface,
	transformDeadline time.Duration,
) {
	r := &V1{ingest: ingest, tr: tr, logger: l, transformDeadline: transformDeadline}

	{
		apiV1Group.Post("/events", r.postEvent)
		apiV1Group.Post("/transform", r.transform)
	}
}
