package services_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "extractor", "rasterize", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extractor", "rasterize", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFailureStatusMapping(t *testing.T) {
	validationErr := services.Wrap(services.ErrValidation, "mapper", "decode", "invalid record", nil)
	if status := services.FailureStatus(validationErr); status != queue.StatusReview {
		t.Fatalf("expected review for validation error, got %s", status)
	}

	toolErr := services.Wrap(services.ErrExternalTool, "extractor", "ocr", "tesseract exited 1", errors.New("exit status 1"))
	if status := services.FailureStatus(toolErr); status != queue.StatusFailed {
		t.Fatalf("expected failed for tool error, got %s", status)
	}

	if status := services.FailureStatus(nil); status != queue.StatusFailed {
		t.Fatalf("expected failed for nil error, got %s", status)
	}
}

type kindError struct{ kind string }

func (e kindError) Error() string { return "classified failure" }

func (e kindError) ErrorKind() string { return e.kind }

func TestFailureStatusHonorsExplicitKind(t *testing.T) {
	wrapped := services.Wrap(services.ErrTransient, "mapper", "post", "service rejected record", kindError{kind: "configuration"})
	if status := services.FailureStatus(wrapped); status != queue.StatusReview {
		t.Fatalf("expected explicit kind to route to review, got %s", status)
	}
}

func TestDetailsStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "classifier", "sniff", "file tool missing", nil)
	details := services.Details(err)
	if strings.Contains(details.Message, "external tool error") {
		t.Fatalf("expected marker stripped, got %q", details.Message)
	}
	if !strings.Contains(details.Message, "classifier: sniff: file tool missing") {
		t.Fatalf("unexpected details message %q", details.Message)
	}

	if got := services.Details(nil).Message; got != "" {
		t.Fatalf("expected empty message for nil error, got %q", got)
	}
}
