package main

import (
	"testing"

	"github.com/seanwevans/fhir-department/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":       "Pending",
		"needs_review":  "Needs Review",
		"ocr_extracted": "Ocr Extracted",
		"":              "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDisplayTitleFallsBackToSourcePath(t *testing.T) {
	item := api.QueueItem{SourcePath: "/inbox/Lab Results.pdf"}
	if got := displayTitle(item); got != "Lab Results.pdf" {
		t.Fatalf("displayTitle = %q", got)
	}

	item.DocumentTitle = "Lab Results"
	if got := displayTitle(item); got != "Lab Results" {
		t.Fatalf("displayTitle with title = %q", got)
	}

	if got := displayTitle(api.QueueItem{}); got != "Unknown" {
		t.Fatalf("displayTitle empty = %q", got)
	}
}

func TestFormatFingerprintTruncates(t *testing.T) {
	full := "abcdef0123456789abcdef0123456789"
	if got := formatFingerprint(full); got != "abcdef012345" {
		t.Fatalf("formatFingerprint = %q", got)
	}
	if got := formatFingerprint("short"); got != "short" {
		t.Fatalf("formatFingerprint short = %q", got)
	}
}

func TestBuildQueueListRowsSortsNewestFirst(t *testing.T) {
	items := []api.QueueItem{
		{ID: 1, DocumentTitle: "Older", Status: "pending", CreatedAt: "2026-01-01T10:00:00Z"},
		{ID: 2, DocumentTitle: "Newer", Status: "pending", CreatedAt: "2026-01-02T10:00:00Z"},
	}
	rows := buildQueueListRows(items)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Newer" || rows[1][1] != "Older" {
		t.Fatalf("expected newest first, got %v", rows)
	}
	if rows[0][4] != "2026-01-02 10:00" {
		t.Fatalf("unexpected created column: %q", rows[0][4])
	}
}

func TestBuildQueueStatusRowsSorted(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"pending": 2, "failed": 1})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Failed" || rows[1][0] != "Pending" {
		t.Fatalf("expected alphabetical order, got %v", rows)
	}
}
