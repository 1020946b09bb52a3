package bundle_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/seanwevans/fhir-department/internal/bundle"
	"github.com/seanwevans/fhir-department/internal/fhir"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/notifications"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
	"github.com/seanwevans/fhir-department/internal/testsupport"
)

type capturingNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (c *capturingNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *capturingNotifier) TestNotification(ctx context.Context) error { return nil }

func TestAssemblerProducesBundleAndArchivesSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &capturingNotifier{}
	handler := bundle.NewAssemblerWithNotifier(cfg, store, logging.NewNop(), notifier)

	source := filepath.Join(cfg.Paths.InboxDir, "discharge summary.pdf")
	testsupport.WriteTextFile(t, source, "%PDF-1.4")
	item := testsupport.NewDocument(t, store, source)

	workspaceResources := filepath.Join(item.StagingRoot(cfg.Paths.StagingDir), "resources.json")
	if err := stage.SaveResources(workspaceResources, []fhir.Resource{
		{"resourceType": "Observation", "id": "o1", "status": "final"},
		{"resourceType": "Patient", "id": "p1"},
	}); err != nil {
		t.Fatalf("stage resources: %v", err)
	}
	item.ResourcesPath = workspaceResources

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if item.BundlePath == "" {
		t.Fatal("bundle path not recorded")
	}
	data, err := os.ReadFile(item.BundlePath)
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	var document bundle.Document
	if err := json.Unmarshal(data, &document); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if document.ResourceType != "Bundle" || document.Type != cfg.Bundle.Type {
		t.Fatalf("unexpected bundle shape %+v", document)
	}
	if len(document.Entry) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(document.Entry))
	}

	// Source moves to the archive and the staging workspace is released.
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("source should have been archived, stat err = %v", err)
	}
	archived := filepath.Join(cfg.Paths.ArchiveDir, "discharge summary.pdf")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("archived copy missing: %v", err)
	}
	if _, err := os.Stat(item.StagingRoot(cfg.Paths.StagingDir)); !os.IsNotExist(err) {
		t.Fatalf("staging workspace should be removed, stat err = %v", err)
	}

	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventBundleCompleted {
		t.Fatalf("expected bundle notification, got %v", notifier.events)
	}
	if notifier.payloads[0]["resourceCount"] != 2 {
		t.Fatalf("unexpected payload %v", notifier.payloads[0])
	}
}

func TestAssemblerMissingResourcesRoutesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := bundle.NewAssembler(cfg, store, logging.NewNop())

	item := testsupport.NewDocument(t, store, "/tmp/report.pdf")
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for missing resources path")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if status := services.FailureStatus(err); status != queue.StatusReview {
		t.Fatalf("expected review routing, got %s", status)
	}
}

func TestAssemblerSurvivesArchiveFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := bundle.NewAssembler(cfg, store, logging.NewNop())

	// Source never existed on disk; archiving is skipped with a warning and
	// the bundle still lands.
	item := testsupport.NewDocument(t, store, filepath.Join(cfg.Paths.InboxDir, "ghost.pdf"))
	resourcesPath := filepath.Join(t.TempDir(), "resources.json")
	if err := stage.SaveResources(resourcesPath, []fhir.Resource{
		{"resourceType": "Observation", "id": "o1"},
	}); err != nil {
		t.Fatalf("stage resources: %v", err)
	}
	item.ResourcesPath = resourcesPath

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := os.Stat(item.BundlePath); err != nil {
		t.Fatalf("bundle missing despite archive failure: %v", err)
	}
}

func TestAssemblerHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := bundle.NewAssembler(cfg, store, logging.NewNop())

	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy assembler, got %+v", health)
	}

	cfg.Paths.BundlesDir = ""
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy assembler without bundles directory")
	}
}
