package reconcile

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/mapping"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
	"github.com/seanwevans/fhir-department/internal/staging"

	"github.com/seanwevans/fhir-department/internal/fhir"
)

// Reconciler folds mapped entity records into a deduplicated resource list
// staged for validation.
type Reconciler struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewReconciler constructs the reconciliation stage handler.
func NewReconciler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Reconciler {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "reconciler"))
	}
	return &Reconciler{store: store, cfg: cfg, logger: stageLogger}
}

func (r *Reconciler) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Reconciling"
	}
	item.ProgressMessage = "Preparing reconciliation"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info("starting reconciliation preparation", logging.String("records_path", strings.TrimSpace(item.RecordsPath)))
	return nil
}

func (r *Reconciler) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	recordsPath := strings.TrimSpace(item.RecordsPath)
	if recordsPath == "" {
		return services.Wrap(
			services.ErrValidation,
			"reconciling",
			"validate inputs",
			"No entity records recorded; rerun mapping",
			nil,
		)
	}
	records, err := mapping.LoadRecords(recordsPath)
	if err != nil {
		return err
	}

	workspace, err := staging.NewWorkspace(item, r.cfg.Paths.StagingDir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "reconciling", "open workspace", "Failed to open staging workspace", err)
	}

	r.updateProgress(ctx, item, "Reconciling resources", 40)
	resources := make([]fhir.Resource, 0, len(records))
	for _, record := range records {
		resources = append(resources, record.Resource())
	}
	set := Reconcile(resources)

	resourcesPath := workspace.ResourcesPath()
	if err := stage.SaveResources(resourcesPath, set.Resources()); err != nil {
		return err
	}
	item.ResourcesPath = resourcesPath

	r.updateProgress(ctx, item, "Reconciliation completed", 100)
	item.ProgressMessage = reconcileSummary(len(resources), set.Len())
	logger.Info(
		"reconciliation completed",
		logging.Int("input_resources", len(resources)),
		logging.Int("canonical_resources", set.Len()),
		logging.String("resources_path", resourcesPath),
	)
	return nil
}

func reconcileSummary(inputs, canonical int) string {
	merged := inputs - canonical
	if merged <= 0 {
		return fmt.Sprintf("Reconciled %d resources", canonical)
	}
	return fmt.Sprintf("Reconciled %d resources (%d duplicates merged)", canonical, merged)
}

// HealthCheck reports readiness. Reconciliation is a pure in-process pass,
// so only the staging directory configuration matters.
func (r *Reconciler) HealthCheck(ctx context.Context) stage.Health {
	const name = "reconciler"
	if r.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(r.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	return stage.Healthy(name)
}

func (r *Reconciler) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, r.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := r.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist reconciler progress", logging.Error(err))
		return
	}
	*item = copy
}
