package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seanwevans/fhir-department/internal/config"
)

const userAgent = "fhirhose/0.1.0"

// Event identifies a pipeline milestone worth broadcasting.
type Event string

const (
	EventDocumentDetected        Event = "document-detected"
	EventClassificationCompleted Event = "classification-completed"
	EventExtractionCompleted     Event = "extraction-completed"
	EventBundleCompleted         Event = "bundle-completed"
	EventProcessingCompleted     Event = "processing-completed"
	EventReviewRequired          Event = "review-required"
	EventQueueStarted            Event = "queue-started"
	EventQueueCompleted          Event = "queue-completed"
	EventError                   Event = "error"
)

// Payload carries the event-specific fields used to render a message.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventDocumentDetected: cfg.Notifications.Queue,
			EventQueueStarted:     cfg.Notifications.Queue,
			EventQueueCompleted:   cfg.Notifications.Queue,
			EventBundleCompleted:  cfg.Notifications.Bundles,
			EventReviewRequired:   cfg.Notifications.Review,
			EventError:            cfg.Notifications.Errors,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

// Publish renders the event into an ntfy message and posts it. Events without
// a renderer, or whose category is toggled off, are dropped silently so stage
// handlers can publish unconditionally.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "fhirhose - Test",
		body:     "Notification system test",
		tags:     []string{"fhirhose", "test"},
		priority: "low",
	})
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventDocumentDetected:
		body := fmt.Sprintf("Document detected: %s", textField(payload, "title"))
		if source := textField(payload, "source"); source != "" {
			body = fmt.Sprintf("%s\nSource: %s", body, source)
		}
		return message{
			title: "fhirhose - Document Detected",
			body:  body,
			tags:  []string{"fhirhose", "document", "detected"},
		}, true
	case EventBundleCompleted:
		body := fmt.Sprintf("Bundle ready: %s", textField(payload, "title"))
		if count := intField(payload, "resourceCount"); count > 0 {
			body = fmt.Sprintf("Bundle ready: %s (%d resources)", textField(payload, "title"), count)
		}
		if file := textField(payload, "bundleFile"); file != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, file)
		}
		return message{
			title: "fhirhose - Bundle Ready",
			body:  body,
			tags:  []string{"fhirhose", "bundle", "completed"},
		}, true
	case EventReviewRequired:
		body := fmt.Sprintf("Manual review required: %s", textField(payload, "title"))
		if reason := textField(payload, "reason"); reason != "" {
			body = fmt.Sprintf("%s\nReason: %s", body, reason)
		}
		return message{
			title: "fhirhose - Review Required",
			body:  body,
			tags:  []string{"fhirhose", "review", "required"},
		}, true
	case EventQueueStarted:
		return message{
			title: "fhirhose - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %d documents", intField(payload, "count")),
			tags:  []string{"fhirhose", "queue", "started"},
		}, true
	case EventQueueCompleted:
		return renderQueueCompleted(payload), true
	case EventError:
		return renderError(payload), true
	}
	return message{}, false
}

func renderQueueCompleted(payload Payload) message {
	duration := durationField(payload, "duration").Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	processed := intField(payload, "processed")
	failed := intField(payload, "failed")

	var title string
	var body string
	if failed == 0 {
		title = "fhirhose - Queue Complete"
		body = fmt.Sprintf("Queue processing complete: %d documents processed in %s", processed, durationText)
	} else {
		title = "fhirhose - Queue Complete (with errors)"
		body = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	return message{
		title: title,
		body:  body,
		tags:  []string{"fhirhose", "queue", "completed"},
	}
}

func renderError(payload Payload) message {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel := textField(payload, "context"); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if errText := textField(payload, "error"); errText != "" {
		builder.WriteString(errText)
	} else {
		builder.WriteString("unknown")
	}

	return message{
		title:    "fhirhose - Error",
		body:     builder.String(),
		tags:     []string{"fhirhose", "error", "alert"},
		priority: "high",
	}
}

func textField(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intField(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func durationField(payload Payload, key string) time.Duration {
	if v, ok := payload[key].(time.Duration); ok {
		return v
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) TestNotification(context.Context) error        { return nil }
