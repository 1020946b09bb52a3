package mapping

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
	"github.com/seanwevans/fhir-department/internal/staging"
)

// Mapper runs extracted payloads through the entity mapping boundary and
// stages validated records for reconciliation.
type Mapper struct {
	store   *queue.Store
	cfg     *config.Config
	logger  *slog.Logger
	service Service
}

// NewMapper constructs the mapping stage handler using default dependencies.
func NewMapper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Mapper {
	return NewMapperWithDependencies(cfg, store, logger, NewService(cfg))
}

// NewMapperWithDependencies allows injecting the mapping service (used in tests).
func NewMapperWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, service Service) *Mapper {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "mapper"))
	}
	return &Mapper{store: store, cfg: cfg, logger: stageLogger, service: service}
}

func (m *Mapper) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, m.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Mapping"
	}
	item.ProgressMessage = "Preparing entity mapping"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info(
		"starting mapping preparation",
		logging.String("payload_path", strings.TrimSpace(item.PayloadPath)),
		logging.String("extraction_kind", strings.TrimSpace(item.ExtractionKind)),
	)
	return nil
}

func (m *Mapper) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, m.logger)
	payloadPath := strings.TrimSpace(item.PayloadPath)
	if payloadPath == "" {
		return services.Wrap(
			services.ErrValidation,
			"mapping",
			"validate inputs",
			"No extraction payload recorded; rerun extraction",
			nil,
		)
	}
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "mapping", "read payload", "Extraction payload is no longer readable; rerun extraction", err)
	}

	workspace, err := staging.NewWorkspace(item, m.cfg.Paths.StagingDir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "mapping", "open workspace", "Failed to open staging workspace", err)
	}

	m.updateProgress(ctx, item, "Mapping entities", 30)
	records, err := m.service.Map(ctx, Request{
		Title:   strings.TrimSpace(item.DocumentTitle),
		MIME:    mimeLabel(item),
		Kind:    strings.TrimSpace(item.ExtractionKind),
		Payload: string(payload),
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "mapping", "map entities", "Entity mapper rejected the document; review the extraction payload", err)
	}
	if len(records) == 0 {
		return services.Wrap(services.ErrValidation, "mapping", "map entities", "Entity mapper returned no records; review the document", nil)
	}

	recordsPath := workspace.RecordsPath()
	if err := SaveRecords(recordsPath, records); err != nil {
		return err
	}
	item.RecordsPath = recordsPath

	m.updateProgress(ctx, item, "Mapping completed", 100)
	item.ProgressMessage = fmt.Sprintf("Mapped %d entity records", len(records))
	logger.Info(
		"mapping completed",
		logging.Int("records", len(records)),
		logging.String("records_path", recordsPath),
	)
	return nil
}

func mimeLabel(item *queue.Item) string {
	mimeType := strings.TrimSpace(item.MIMEType)
	subtype := strings.TrimSpace(item.MIMESubtype)
	switch {
	case mimeType == "":
		return ""
	case subtype == "":
		return mimeType
	default:
		return mimeType + "/" + subtype
	}
}

// HealthCheck verifies the mapper endpoint shape and the boundary schema.
func (m *Mapper) HealthCheck(ctx context.Context) stage.Health {
	const name = "mapper"
	if m.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if endpoint := strings.TrimSpace(m.cfg.Mapper.Endpoint); endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return stage.Unhealthy(name, fmt.Sprintf("mapper endpoint %q is not a valid http(s) URL", endpoint))
		}
	}
	if _, err := compiledRecordSchema(); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("record schema unusable: %v", err))
	}
	if m.service == nil {
		return stage.Unhealthy(name, "mapping service unavailable")
	}
	return stage.Healthy(name)
}

func (m *Mapper) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, m.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := m.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist mapper progress", logging.Error(err))
		return
	}
	*item = copy
}
