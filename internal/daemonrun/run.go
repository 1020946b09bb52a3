// Package daemonrun wires configuration, logging, queue storage, the stage
// pipeline, the inbox watcher, and the IPC server into a running daemon
// process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/seanwevans/fhir-department/internal/bundle"
	"github.com/seanwevans/fhir-department/internal/classify"
	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/daemon"
	"github.com/seanwevans/fhir-department/internal/daemonctl"
	"github.com/seanwevans/fhir-department/internal/extraction"
	"github.com/seanwevans/fhir-department/internal/ipc"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/mapping"
	"github.com/seanwevans/fhir-department/internal/notifications"
	"github.com/seanwevans/fhir-department/internal/preflight"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/reconcile"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/validation"
	"github.com/seanwevans/fhir-department/internal/watcher"
	"github.com/seanwevans/fhir-department/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	SocketPath  string
	LogLevel    string
	Development bool
}

// Run starts the daemon runtime loop and blocks until shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("fhirhose-%s.log", runID))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update fhirhose.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "fhirhose-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, daemonctl.PidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	for _, result := range preflight.RunAll(signalCtx, cfg, store) {
		if result.Passed {
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"))
	}

	notifier := notifications.NewService(cfg)
	workflowManager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	registerStages(workflowManager, cfg, store, logger, notifier)

	inboxWatcher := watcher.NewWithNotifier(cfg, store, logger, notifier)

	d, err := daemon.New(cfg, store, logger, workflowManager, inboxWatcher)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()
	d.SetLogPath(logPath)

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = filepath.Join(cfg.Paths.LogDir, "fhirhose.sock")
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger, cancel)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "daemon may not process queue items"),
		)
	}

	<-signalCtx.Done()
	logger.Info("daemon shutting down")
	d.Stop()
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) {
	if mgr == nil || cfg == nil {
		return
	}

	runner := services.NewRunner(logger, time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second)
	mgr.ConfigureStages(workflow.StageSet{
		Classifier: classify.NewClassifierWithDependencies(cfg, store, logger, runner, notifier),
		Extractor:  extraction.NewExtractorWithDependencies(cfg, store, logger, extraction.NewTools(cfg, logger), notifier),
		Mapper:     mapping.NewMapper(cfg, store, logger),
		Reconciler: reconcile.NewReconciler(cfg, store, logger),
		Validator:  validation.NewValidator(cfg, store, logger),
		Assembler:  bundle.NewAssemblerWithNotifier(cfg, store, logger, notifier),
	})
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "fhirhose.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("file_available", binaryAvailable(cfg.Classifier.FileBinary)),
		logging.String("file_binary", cfg.Classifier.FileBinary),
		logging.Bool("pdftotext_available", binaryAvailable(cfg.Extraction.PdftotextBinary)),
		logging.String("pdftotext_binary", cfg.Extraction.PdftotextBinary),
		logging.Bool("ghostscript_available", binaryAvailable(cfg.Extraction.GhostscriptBinary)),
		logging.String("ghostscript_binary", cfg.Extraction.GhostscriptBinary),
		logging.Bool("tesseract_available", binaryAvailable(cfg.Extraction.TesseractBinary)),
		logging.String("tesseract_binary", cfg.Extraction.TesseractBinary),
		logging.Bool("mapper_endpoint_configured", strings.TrimSpace(cfg.Mapper.Endpoint) != ""),
		logging.Bool("validation_endpoint_configured", strings.TrimSpace(cfg.Validation.Endpoint) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
