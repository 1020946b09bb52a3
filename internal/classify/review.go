package classify

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/notifications"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
)

func (c *Classifier) handleDuplicateFingerprint(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	found, err := c.store.FindByFingerprint(ctx, item.Fingerprint)
	if err != nil {
		return services.Wrap(services.ErrTransient, "classifying", "lookup fingerprint", "Failed to query existing document fingerprints", err)
	}
	if found != nil && found.ID != item.ID {
		logger.Info(
			"duplicate document fingerprint detected",
			logging.Int64("existing_item_id", found.ID),
			logging.String(logging.FieldFingerprint, item.Fingerprint),
		)
		c.flagReview(ctx, item, "Duplicate document fingerprint")
	}
	return nil
}

func (c *Classifier) flagReview(ctx context.Context, item *queue.Item, message string) {
	logger := logging.WithContext(ctx, c.logger).With(logging.Int64(logging.FieldItemID, item.ID))
	logger.Warn(
		"flagging queue item for review",
		logging.String("reason", message),
		logging.Alert("review"),
	)
	item.SetReview(message)
	item.ProgressPercent = 100
	item.ErrorMessage = message
	if c.notifier != nil {
		title := strings.TrimSpace(item.DocumentTitle)
		if title == "" {
			title = filepath.Base(strings.TrimSpace(item.SourcePath))
		}
		if err := c.notifier.Publish(ctx, notifications.EventReviewRequired, notifications.Payload{
			"title":  title,
			"reason": message,
		}); err != nil {
			logger.Warn("review notification failed", logging.Error(err))
		}
	}
}
