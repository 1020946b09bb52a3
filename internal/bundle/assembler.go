package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/fileutil"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/notifications"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
	"github.com/seanwevans/fhir-department/internal/staging"
	"github.com/seanwevans/fhir-department/internal/textutil"
)

// Assembler wraps the validated resource set into the final bundle, archives
// the source document, and releases the item's staging workspace.
type Assembler struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
}

// NewAssembler constructs the assembler stage handler using default dependencies.
func NewAssembler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Assembler {
	return NewAssemblerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewAssemblerWithNotifier allows injecting the notifier (used in tests).
func NewAssemblerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Assembler {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "assembler"))
	}
	return &Assembler{store: store, cfg: cfg, logger: stageLogger, notifier: notifier}
}

func (a *Assembler) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Assembling"
	}
	item.ProgressMessage = "Preparing bundle assembly"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info("starting assembly preparation", logging.String("resources_path", strings.TrimSpace(item.ResourcesPath)))
	return nil
}

func (a *Assembler) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)
	resourcesPath := strings.TrimSpace(item.ResourcesPath)
	if resourcesPath == "" {
		return services.Wrap(
			services.ErrValidation,
			"assembling",
			"validate inputs",
			"No validated resources recorded; rerun validation",
			nil,
		)
	}
	resources, err := stage.LoadResources(resourcesPath)
	if err != nil {
		return err
	}

	a.updateProgress(ctx, item, "Assembling bundle", 30)
	document := Assemble(resources, strings.TrimSpace(a.cfg.Bundle.Type))
	data, err := document.Encode()
	if err != nil {
		return services.Wrap(services.ErrTransient, "assembling", "encode bundle", "Could not encode the bundle document", err)
	}

	bundlePath := a.bundlePath(item)
	if err := os.MkdirAll(filepath.Dir(bundlePath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "assembling", "create bundles directory", "Could not create the bundles directory", err)
	}
	if err := os.WriteFile(bundlePath, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "assembling", "write bundle", "Could not write the bundle document", err)
	}
	item.BundlePath = bundlePath

	a.updateProgress(ctx, item, "Archiving source document", 70)
	a.archiveSource(ctx, item)
	a.releaseWorkspace(ctx, item)

	a.updateProgress(ctx, item, "Bundle completed", 100)
	item.ProgressMessage = fmt.Sprintf("Bundled %d resources", len(resources))
	logger.Info(
		"bundle assembled",
		logging.String("bundle_path", bundlePath),
		logging.String("bundle_id", document.ID),
		logging.Int("resources", len(resources)),
	)

	if a.notifier != nil {
		if err := a.notifier.Publish(ctx, notifications.EventBundleCompleted, notifications.Payload{
			"title":         strings.TrimSpace(item.DocumentTitle),
			"resourceCount": len(resources),
			"bundleFile":    filepath.Base(bundlePath),
		}); err != nil {
			logger.Warn("bundle notification failed", logging.Error(err))
		}
	}
	return nil
}

// bundlePath allocates the output name <title>-<txn8>.bundle.json. The
// transaction prefix keeps names unique when the same document is bundled
// more than once.
func (a *Assembler) bundlePath(item *queue.Item) string {
	title := textutil.SanitizeFileName(strings.TrimSpace(item.DocumentTitle))
	title = strings.ReplaceAll(strings.TrimSpace(title), " ", "-")
	if title == "" {
		title = fmt.Sprintf("document-%d", item.ID)
	}
	txn := strings.TrimSpace(item.TransactionID)
	if len(txn) > 8 {
		txn = txn[:8]
	}
	name := title + ".bundle.json"
	if txn != "" {
		name = fmt.Sprintf("%s-%s.bundle.json", title, txn)
	}
	return filepath.Join(a.cfg.Paths.BundlesDir, name)
}

// archiveSource moves the original document into the archive directory.
// Archiving is best-effort: a failure leaves the source in the inbox and is
// logged, never escalated, since the bundle has already been produced.
func (a *Assembler) archiveSource(ctx context.Context, item *queue.Item) {
	logger := logging.WithContext(ctx, a.logger)
	archiveDir := strings.TrimSpace(a.cfg.Paths.ArchiveDir)
	source := strings.TrimSpace(item.SourcePath)
	if archiveDir == "" || source == "" {
		return
	}
	if _, err := os.Stat(source); err != nil {
		logger.Warn("source document missing at archive time", logging.Error(err))
		return
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		logger.Warn("could not create archive directory", logging.Error(err))
		return
	}
	target := filepath.Join(archiveDir, filepath.Base(source))
	if _, err := os.Stat(target); err == nil {
		txn := strings.TrimSpace(item.TransactionID)
		if len(txn) > 8 {
			txn = txn[:8]
		}
		ext := filepath.Ext(target)
		target = strings.TrimSuffix(target, ext) + "-" + txn + ext
	}
	if err := fileutil.MoveFile(source, target); err != nil {
		logger.Warn("failed to archive source document",
			logging.Error(err),
			logging.String("archive_target", target),
		)
		return
	}
	logger.Info("source document archived", logging.String("archive_target", target))
}

// releaseWorkspace removes the item's staging workspace once the bundle is
// safely written. Removal failures are logged; the cleanup sweeps catch
// leftovers.
func (a *Assembler) releaseWorkspace(ctx context.Context, item *queue.Item) {
	logger := logging.WithContext(ctx, a.logger)
	workspace, err := staging.NewWorkspace(item, a.cfg.Paths.StagingDir)
	if err != nil {
		logger.Warn("could not resolve staging workspace for cleanup", logging.Error(err))
		return
	}
	if err := workspace.Remove(); err != nil {
		logger.Warn("failed to remove staging workspace", logging.Error(err))
	}
}

// HealthCheck verifies the bundles directory is configured and writable.
func (a *Assembler) HealthCheck(ctx context.Context) stage.Health {
	const name = "assembler"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	bundlesDir := strings.TrimSpace(a.cfg.Paths.BundlesDir)
	if bundlesDir == "" {
		return stage.Unhealthy(name, "bundles directory not configured")
	}
	if err := os.MkdirAll(bundlesDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("bundles directory unusable: %v", err))
	}
	return stage.Healthy(name)
}

func (a *Assembler) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, a.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := a.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist assembler progress", logging.Error(err))
		return
	}
	*item = copy
}
