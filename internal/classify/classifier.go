package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/notifications"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
)

// Classifier computes content fingerprints and MIME classifications for newly
// queued documents.
type Classifier struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	runner   services.Runner
	notifier notifications.Service
}

// NewClassifier constructs the classifier stage handler using default dependencies.
func NewClassifier(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Classifier {
	runner := services.NewRunner(logger, time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second)
	return NewClassifierWithDependencies(cfg, store, logger, runner, notifications.NewService(cfg))
}

// NewClassifierWithDependencies allows injecting collaborators (used in tests).
func NewClassifierWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, runner services.Runner, notifier notifications.Service) *Classifier {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "classifier"))
	}
	return &Classifier{store: store, cfg: cfg, logger: stageLogger, runner: runner, notifier: notifier}
}

// classificationIssue records a non-fatal classification failure carried on
// the item for downstream visibility.
type classificationIssue struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (c *Classifier) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Classifying"
	}
	item.ProgressMessage = "Preparing classification"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info("starting classification preparation", logging.String("source_path", strings.TrimSpace(item.SourcePath)))
	return nil
}

func (c *Classifier) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	source := strings.TrimSpace(item.SourcePath)
	if source == "" {
		return services.Wrap(
			services.ErrValidation,
			"classifying",
			"validate inputs",
			"No source file recorded for classification; re-add the document",
			nil,
		)
	}
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrNotFound, "classifying", "stat source", "Source file is no longer readable; restore it and retry", err)
	}

	var issues []classificationIssue

	c.updateProgress(ctx, item, "Computing content fingerprint", 25)
	fingerprint, err := Fingerprint(source)
	if err != nil {
		issues = append(issues, classificationIssue{Error: "Failed to compute content fingerprint", Details: err.Error()})
		logger.Warn(
			"fingerprint computation failed; continuing without fingerprint",
			logging.Error(err),
			logging.String(logging.FieldEventType, "classification_issue"),
			logging.String(logging.FieldErrorHint, "check file permissions and disk health"),
			logging.String(logging.FieldImpact, "duplicate detection disabled for this document"),
		)
	} else {
		item.Fingerprint = fingerprint
		logger.Info("content fingerprint captured", logging.String(logging.FieldFingerprint, fingerprint))
		if err := c.handleDuplicateFingerprint(ctx, item); err != nil {
			return err
		}
		if item.Status == queue.StatusReview {
			return nil
		}
	}

	c.updateProgress(ctx, item, "Detecting MIME type", 65)
	classification, sniffErr := Sniff(ctx, c.runner, strings.TrimSpace(c.cfg.Classifier.FileBinary), source)
	if sniffErr != nil {
		issues = append(issues, classificationIssue{Error: "Failed to determine MIME type", Details: sniffErr.Error()})
		logger.Warn(
			"mime detection failed; continuing without classification",
			logging.Error(sniffErr),
			logging.String(logging.FieldEventType, "classification_issue"),
			logging.String(logging.FieldErrorHint, "verify the file tool is installed and executable"),
			logging.String(logging.FieldImpact, "extraction decisions fall back to content probing"),
		)
	} else {
		item.MIMEType = classification.Type
		item.MIMESubtype = classification.Subtype
		item.MIMECharset = classification.Charset
	}

	item.ClassificationNote = ""
	if len(issues) > 0 {
		if note, marshalErr := json.Marshal(issues); marshalErr == nil {
			item.ClassificationNote = string(note)
		}
	}

	c.updateProgress(ctx, item, "Classification completed", 100)
	item.ProgressMessage = classificationSummary(item, len(issues))
	logger.Info(
		"classification completed",
		logging.String(logging.FieldFingerprint, item.Fingerprint),
		logging.String("mime_type", classification.String()),
		logging.Int("issue_count", len(issues)),
	)

	if c.notifier != nil {
		if err := c.notifier.Publish(ctx, notifications.EventClassificationCompleted, notifications.Payload{
			"title":    strings.TrimSpace(item.DocumentTitle),
			"mimeType": classification.String(),
		}); err != nil {
			logger.Warn("classification notifier failed", logging.Error(err))
		}
	}

	return nil
}

func classificationSummary(item *queue.Item, issueCount int) string {
	if issueCount > 0 {
		return fmt.Sprintf("Classification completed with %d issues", issueCount)
	}
	mime := item.MIMEType
	if item.MIMESubtype != "" {
		mime = item.MIMEType + "/" + item.MIMESubtype
	}
	if mime == "" {
		return "Classification completed"
	}
	return fmt.Sprintf("Classified as %s", mime)
}

// HealthCheck verifies the content identification tool is available.
func (c *Classifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "classifier"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	binary := strings.TrimSpace(c.cfg.Classifier.FileBinary)
	if binary == "" {
		return stage.Unhealthy(name, "file binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("file binary %q not found", binary))
	}
	if c.runner == nil {
		return stage.Unhealthy(name, "command runner unavailable")
	}
	return stage.Healthy(name)
}

func (c *Classifier) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, c.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := c.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist classifier progress", logging.Error(err))
		return
	}
	*item = copy
}
