package extraction

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/notifications"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
	"github.com/seanwevans/fhir-department/internal/staging"
)

// Extractor runs the extraction decision flow for classified documents.
type Extractor struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	decider  *Decider
	notifier notifications.Service
}

// NewExtractor constructs the extractor stage handler using default dependencies.
func NewExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	return NewExtractorWithDependencies(cfg, store, logger, NewTools(cfg, logger), notifications.NewService(cfg))
}

// NewExtractorWithDependencies allows injecting the toolset and notifier (used in tests).
func NewExtractorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, tools Toolset, notifier notifications.Service) *Extractor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "extractor"))
	}
	return &Extractor{
		store:    store,
		cfg:      cfg,
		logger:   stageLogger,
		decider:  NewDecider(tools, logger),
		notifier: notifier,
	}
}

func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Extracting"
	}
	item.ProgressMessage = "Preparing extraction"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info(
		"starting extraction preparation",
		logging.String("source_path", strings.TrimSpace(item.SourcePath)),
		logging.String("mime_type", strings.TrimSpace(item.MIMEType)),
	)
	return nil
}

func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	source := strings.TrimSpace(item.SourcePath)
	if source == "" {
		return services.Wrap(
			services.ErrValidation,
			"extracting",
			"validate inputs",
			"No source file recorded for extraction; run classification first",
			nil,
		)
	}
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrNotFound, "extracting", "stat source", "Source file is no longer readable; restore it and retry", err)
	}

	workspace, err := staging.NewWorkspace(item, e.cfg.Paths.StagingDir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "extracting", "create workspace", "Failed to create staging workspace", err)
	}

	e.updateProgress(ctx, item, "Checking for embedded text layer", 20)
	result, err := e.decider.Run(ctx, Request{
		Source:    source,
		Workspace: workspace,
		RasterDPI: e.cfg.Extraction.RasterDPI,
		Language:  e.cfg.Extraction.OCRLanguage,
	})
	if err != nil {
		return err
	}

	item.ExtractionKind = result.Kind
	item.PayloadPath = result.PayloadPath

	e.updateProgress(ctx, item, "Extraction completed", 100)
	item.ProgressMessage = extractionSummary(result.Kind)
	logger.Info(
		"extraction completed",
		logging.String("extraction_kind", result.Kind),
		logging.String("payload_path", result.PayloadPath),
	)

	if e.notifier != nil {
		if err := e.notifier.Publish(ctx, notifications.EventExtractionCompleted, notifications.Payload{
			"title": strings.TrimSpace(item.DocumentTitle),
			"kind":  result.Kind,
		}); err != nil {
			logger.Warn("extraction notifier failed", logging.Error(err))
		}
	}

	return nil
}

func extractionSummary(kind string) string {
	switch kind {
	case KindText:
		return "Extracted embedded text layer"
	case KindOCR:
		return "Recognized text via OCR"
	default:
		return "Extraction completed"
	}
}

// HealthCheck verifies the extraction tool binaries are available.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "extractor"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(e.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	binaries := []struct {
		label string
		path  string
	}{
		{"pdftotext", e.cfg.Extraction.PdftotextBinary},
		{"ghostscript", e.cfg.Extraction.GhostscriptBinary},
		{"tesseract", e.cfg.Extraction.TesseractBinary},
	}
	for _, binary := range binaries {
		trimmed := strings.TrimSpace(binary.path)
		if trimmed == "" {
			return stage.Unhealthy(name, fmt.Sprintf("%s binary not configured", binary.label))
		}
		if _, err := exec.LookPath(trimmed); err != nil {
			return stage.Unhealthy(name, fmt.Sprintf("%s binary %q not found", binary.label, trimmed))
		}
	}
	if e.decider == nil {
		return stage.Unhealthy(name, "extraction decider unavailable")
	}
	return stage.Healthy(name)
}

func (e *Extractor) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, e.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := e.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist extractor progress", logging.Error(err))
		return
	}
	*item = copy
}
