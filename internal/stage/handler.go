package stage

import (
	"context"
	"log/slog"

	"github.com/seanwevans/fhir-department/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets stage handlers receive a request-scoped logger before
// Prepare runs. Handlers that do not implement it keep their construction-time
// logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
