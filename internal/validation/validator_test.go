package validation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/seanwevans/fhir-department/internal/fhir"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/stage"
	"github.com/seanwevans/fhir-department/internal/testsupport"
	"github.com/seanwevans/fhir-department/internal/validation"
)

func stageResources(t *testing.T, item *queue.Item, resources []fhir.Resource) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resources.json")
	if err := stage.SaveResources(path, resources); err != nil {
		t.Fatalf("save resources: %v", err)
	}
	item.ResourcesPath = path
	return path
}

func TestValidatorRewritesStagedResourcesInPlace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []any{map[string]any{"severity": "information", "message": "ok"}},
		})
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithValidationEndpoint(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	handler := validation.NewValidator(cfg, store, logging.NewNop())

	item := testsupport.NewDocument(t, store, "/tmp/report.pdf")
	path := stageResources(t, item, []fhir.Resource{
		{"resourceType": "Observation", "id": "o1", "status": "final"},
		{"resourceType": "Patient", "id": "p1"},
	})

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	reloaded, err := stage.LoadResources(path)
	if err != nil {
		t.Fatalf("reload resources: %v", err)
	}
	for _, resource := range reloaded {
		results, ok := resource[validation.ResultsField].([]any)
		if !ok || len(results) != 1 {
			t.Fatalf("resource %s missing results: %v", resource.Identity(), resource)
		}
	}
	if item.ProgressMessage != "Validated 2 resources" {
		t.Fatalf("unexpected progress message %q", item.ProgressMessage)
	}
}

func TestValidatorRecordsErrorsWithoutFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithValidationEndpoint(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	handler := validation.NewValidator(cfg, store, logging.NewNop())

	item := testsupport.NewDocument(t, store, "/tmp/report.pdf")
	path := stageResources(t, item, []fhir.Resource{
		{"resourceType": "Observation", "id": "o1"},
	})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("validation must not fail the job: %v", err)
	}

	reloaded, err := stage.LoadResources(path)
	if err != nil {
		t.Fatalf("reload resources: %v", err)
	}
	results := reloaded[0][validation.ResultsField].([]any)
	record := results[0].(map[string]any)
	if _, ok := record["error"]; !ok {
		t.Fatalf("expected error annotation, got %v", record)
	}
	if item.ProgressMessage != "Validated 1 resources (1 with errors)" {
		t.Fatalf("unexpected progress message %q", item.ProgressMessage)
	}
}

func TestValidatorSkipsWhenUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := validation.NewValidator(cfg, store, logging.NewNop())

	item := testsupport.NewDocument(t, store, "/tmp/report.pdf")
	path := stageResources(t, item, []fhir.Resource{
		{"resourceType": "Observation", "id": "o1"},
	})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	reloaded, err := stage.LoadResources(path)
	if err != nil {
		t.Fatalf("reload resources: %v", err)
	}
	if _, annotated := reloaded[0][validation.ResultsField]; annotated {
		t.Fatalf("resources must pass through unchanged without an endpoint: %v", reloaded[0])
	}
}

func TestValidatorMissingResourcesRoutesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := validation.NewValidator(cfg, store, logging.NewNop())

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

func TestValidatorHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := validation.NewValidator(cfg, store, logging.NewNop())

	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy validator, got %+v", health)
	}

	cfg.Validation.Endpoint = "://broken"
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy validator for malformed endpoint")
	}
}
