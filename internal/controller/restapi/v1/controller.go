package v1

import (
	"time"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/usecase"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/logger"
)

type V1 struct {
	ingest usecase.IngestUseCase
	tr     usecase.TransformUseCase
	logger logger.Interface

	transformDeadline time.Duration
}
