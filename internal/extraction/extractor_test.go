package extraction_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/extraction"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/testsupport"
)

func newTestExtractor(t *testing.T, tools extraction.Toolset) (*extraction.Extractor, *config.Config, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := extraction.NewExtractorWithDependencies(cfg, store, logging.NewNop(), tools, nil)
	return handler, cfg, store
}

func TestExtractorRecordsTextLayerPayload(t *testing.T) {
	tools := &fakeTools{t: t, textLayer: "Discharge summary for Jane Doe", forbidOCR: true}
	handler, cfg, store := newTestExtractor(t, tools)

	source := filepath.Join(cfg.Paths.InboxDir, "discharge.pdf")
	testsupport.WriteTextFile(t, source, "%PDF-1.4")
	item := testsupport.NewDocument(t, store, source)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if item.ExtractionKind != extraction.KindText {
		t.Fatalf("expected kind %q, got %q", extraction.KindText, item.ExtractionKind)
	}
	want := filepath.Join(item.StagingRoot(cfg.Paths.StagingDir), "payload.txt")
	if item.PayloadPath != want {
		t.Fatalf("payload path %q, want %q", item.PayloadPath, want)
	}
	content, err := os.ReadFile(item.PayloadPath)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(content) != tools.textLayer {
		t.Fatalf("payload content %q", content)
	}
	if item.ProgressPercent != 100 || item.ProgressMessage != "Extracted embedded text layer" {
		t.Fatalf("unexpected progress: %v %q", item.ProgressPercent, item.ProgressMessage)
	}
}

func TestExtractorRecordsOCRPayload(t *testing.T) {
	tools := &fakeTools{t: t}
	handler, cfg, store := newTestExtractor(t, tools)

	source := filepath.Join(cfg.Paths.InboxDir, "scan.pdf")
	testsupport.WriteTextFile(t, source, "%PDF-1.4")
	item := testsupport.NewDocument(t, store, source)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if item.ExtractionKind != extraction.KindOCR {
		t.Fatalf("expected kind %q, got %q", extraction.KindOCR, item.ExtractionKind)
	}
	if !strings.HasSuffix(item.PayloadPath, "payload.hocr") {
		t.Fatalf("unexpected payload path %q", item.PayloadPath)
	}
	if _, err := os.Stat(item.PayloadPath); err != nil {
		t.Fatalf("payload missing: %v", err)
	}
	if tools.lastDPI != cfg.Extraction.RasterDPI {
		t.Fatalf("expected configured dpi %d, got %d", cfg.Extraction.RasterDPI, tools.lastDPI)
	}
	if item.ProgressMessage != "Recognized text via OCR" {
		t.Fatalf("unexpected progress message %q", item.ProgressMessage)
	}
}

func TestExtractorMissingSourceRoutesToReview(t *testing.T) {
	tools := &fakeTools{t: t, forbidOCR: true}
	handler, cfg, store := newTestExtractor(t, tools)

	blank := testsupport.NewDocument(t, store, "/tmp/placeholder.pdf")
	blank.SourcePath = ""
	err := handler.Execute(context.Background(), blank)
	if err == nil {
		t.Fatal("expected error for blank source")
	}
	if status := services.FailureStatus(err); status != queue.StatusReview {
		t.Fatalf("expected review routing for blank source, got %s", status)
	}

	vanished := testsupport.NewDocument(t, store, filepath.Join(cfg.Paths.InboxDir, "gone.pdf"))
	err = handler.Execute(context.Background(), vanished)
	if err == nil {
		t.Fatal("expected error for vanished source")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
	if status := services.FailureStatus(err); status != queue.StatusReview {
		t.Fatalf("expected review routing for vanished source, got %s", status)
	}
}

func TestExtractorToolFailureIsRetryable(t *testing.T) {
	tools := &fakeTools{t: t, textErr: errors.New("pdftotext: command not found")}
	handler, cfg, store := newTestExtractor(t, tools)

	source := filepath.Join(cfg.Paths.InboxDir, "report.pdf")
	testsupport.WriteTextFile(t, source, "%PDF-1.4")
	item := testsupport.NewDocument(t, store, source)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error when the text-layer tool fails")
	}
	if status := services.FailureStatus(err); status != queue.StatusFailed {
		t.Fatalf("expected failed routing, got %s", status)
	}
	if !strings.Contains(err.Error(), "pdftotext") {
		t.Fatalf("expected operator hint in %q", err)
	}
}

func TestExtractorHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	handler := extraction.NewExtractorWithDependencies(cfg, store, logging.NewNop(), &fakeTools{t: t}, nil)
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy extractor, got %+v", health)
	}

	cfg.Extraction.TesseractBinary = "definitely-not-installed-anywhere"
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy extractor for missing binary")
	}
}
