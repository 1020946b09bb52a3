package reconcile_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/mapping"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/reconcile"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
	"github.com/seanwevans/fhir-department/internal/testsupport"
)

func TestReconcilerStagesCanonicalResources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := reconcile.NewReconciler(cfg, store, logging.NewNop())

	source := filepath.Join(cfg.Paths.InboxDir, "labs.pdf")
	testsupport.WriteTextFile(t, source, "%PDF-1.4")
	item := testsupport.NewDocument(t, store, source)

	recordsPath := filepath.Join(t.TempDir(), "records.json")
	records := []mapping.Record{
		{ResourceType: "Observation", ID: "o1", Fields: map[string]any{"status": "final"}},
		{
			ResourceType: "Observation",
			ID:           "o1",
			Fields:       map[string]any{"status": "amended"},
			Extensions:   []any{map[string]any{"url": "x", "value": "Extra"}},
		},
		{ResourceType: "Patient", ID: "p1"},
	}
	if err := mapping.SaveRecords(recordsPath, records); err != nil {
		t.Fatalf("save records: %v", err)
	}
	item.RecordsPath = recordsPath

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := filepath.Join(item.StagingRoot(cfg.Paths.StagingDir), "resources.json")
	if item.ResourcesPath != want {
		t.Fatalf("resources path %q, want %q", item.ResourcesPath, want)
	}

	resources, err := stage.LoadResources(item.ResourcesPath)
	if err != nil {
		t.Fatalf("load staged resources: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 canonical resources, got %d", len(resources))
	}
	observation := resources[0]
	if observation["status"] != "final" {
		t.Fatalf("first-seen status should survive the merge, got %v", observation["status"])
	}
	extensions := observation.Extensions()
	if len(extensions) != 1 {
		t.Fatalf("expected merged extension, got %v", extensions)
	}
	if item.ProgressMessage != "Reconciled 2 resources (1 duplicates merged)" {
		t.Fatalf("unexpected progress message %q", item.ProgressMessage)
	}
}

func TestReconcilerMissingRecordsRoutesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := reconcile.NewReconciler(cfg, store, logging.NewNop())

	item := testsupport.NewDocument(t, store, "/tmp/missing.pdf")
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for missing records path")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if status := services.FailureStatus(err); status != queue.StatusReview {
		t.Fatalf("expected review routing, got %s", status)
	}
}

func TestReconcilerHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := reconcile.NewReconciler(cfg, store, logging.NewNop())

	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy reconciler, got %+v", health)
	}

	cfg.Paths.StagingDir = ""
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy reconciler without staging directory")
	}
}
