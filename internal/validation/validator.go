package validation

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
)

// Validator runs reconciled resources through the validation enricher and
// rewrites the staged resource list in place.
type Validator struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	enricher *Enricher
}

// NewValidator constructs the validation stage handler.
func NewValidator(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Validator {
	return NewValidatorWithEnricher(cfg, store, logger, NewEnricher(cfg))
}

// NewValidatorWithEnricher allows injecting the enricher (used in tests).
func NewValidatorWithEnricher(cfg *config.Config, store *queue.Store, logger *slog.Logger, enricher *Enricher) *Validator {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "validator"))
	}
	return &Validator{store: store, cfg: cfg, logger: stageLogger, enricher: enricher}
}

func (v *Validator) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, v.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Validating"
	}
	item.ProgressMessage = "Preparing validation"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info("starting validation preparation", logging.String("resources_path", strings.TrimSpace(item.ResourcesPath)))
	return nil
}

func (v *Validator) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, v.logger)
	resourcesPath := strings.TrimSpace(item.ResourcesPath)
	if resourcesPath == "" {
		return services.Wrap(
			services.ErrValidation,
			"validating",
			"validate inputs",
			"No reconciled resources recorded; rerun reconciliation",
			nil,
		)
	}
	resources, err := stage.LoadResources(resourcesPath)
	if err != nil {
		return err
	}

	if v.enricher == nil || !v.enricher.Configured() {
		item.SetProgressComplete(item.ProgressStage, fmt.Sprintf("Validation skipped for %d resources (no endpoint configured)", len(resources)))
		logger.Info("validation endpoint not configured; resources pass through unchanged", logging.Int("resources", len(resources)))
		return nil
	}

	errorCount := 0
	for i, resource := range resources {
		percent := 10 + float64(i)/float64(len(resources))*80
		v.updateProgress(ctx, item, fmt.Sprintf("Validating resource %d of %d", i+1, len(resources)), percent)
		resources[i] = v.enricher.Enrich(ctx, resource)
		if hasErrorResult(resources[i]) {
			errorCount++
		}
	}

	if err := stage.SaveResources(resourcesPath, resources); err != nil {
		return err
	}

	v.updateProgress(ctx, item, "Validation completed", 100)
	item.ProgressMessage = validationSummary(len(resources), errorCount)
	logger.Info(
		"validation completed",
		logging.Int("resources", len(resources)),
		logging.Int("error_annotations", errorCount),
		logging.String("endpoint", v.enricher.Endpoint()),
	)
	return nil
}

func hasErrorResult(resource map[string]any) bool {
	results, ok := resource[ResultsField].([]any)
	if !ok || len(results) == 0 {
		return false
	}
	record, ok := results[0].(map[string]any)
	if !ok {
		return false
	}
	_, isError := record["error"]
	return isError
}

func validationSummary(total, errors int) string {
	if errors == 0 {
		return fmt.Sprintf("Validated %d resources", total)
	}
	return fmt.Sprintf("Validated %d resources (%d with errors)", total, errors)
}

// HealthCheck verifies the endpoint shape when one is configured.
func (v *Validator) HealthCheck(ctx context.Context) stage.Health {
	const name = "validator"
	if v.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if endpoint := strings.TrimSpace(v.cfg.Validation.Endpoint); endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return stage.Unhealthy(name, fmt.Sprintf("validation endpoint %q is not a valid http(s) URL", endpoint))
		}
	}
	return stage.Healthy(name)
}

func (v *Validator) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, v.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := v.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist validator progress", logging.Error(err))
		return
	}
	*item = copy
}
