package queue_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/seanwevans/fhir-department/internal/queue"
	"github.com/seanwevans/fhir-department/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewDocument(ctx, filepath.Join(cfg.Paths.InboxDir, "discharge-summary.pdf"))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.TransactionID == "" {
		t.Fatal("expected transaction ID to be assigned")
	}
	if item.DocumentTitle != "Discharge Summary" {
		t.Fatalf("unexpected title %q", item.DocumentTitle)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("unexpected status %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.DocumentTitle != "Discharge Summary" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}
}

func TestFindByFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewDocument(t, store, "/tmp/lab-report.pdf")
	item.Fingerprint = "sha256:abc123"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	found, err := store.FindByFingerprint(ctx, "sha256:abc123")
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found == nil || found.ID != item.ID {
		t.Fatalf("expected to find inserted item, got %#v", found)
	}

	missing, err := store.FindByFingerprint(ctx, "sha256:nope")
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown fingerprint, got %#v", missing)
	}
}

func TestUpdateRoundTripsClassification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewDocument(t, store, "/tmp/note.pdf")
	item.Status = queue.StatusClassified
	item.Fingerprint = "sha256:feed"
	item.MIMEType = "application"
	item.MIMESubtype = "pdf"
	item.MIMECharset = "binary"
	item.ExtractionKind = "text-layer"
	item.PayloadPath = "/staging/docs/item-1/payload.txt"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.MIMEType != "application" || fetched.MIMESubtype != "pdf" || fetched.MIMECharset != "binary" {
		t.Fatalf("classification fields lost: %#v", fetched)
	}
	if fetched.ExtractionKind != "text-layer" || fetched.PayloadPath == "" {
		t.Fatalf("extraction fields lost: %#v", fetched)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"classifying", queue.StatusClassifying, queue.StatusPending},
		{"extracting", queue.StatusExtracting, queue.StatusClassified},
		{"mapping", queue.StatusMapping, queue.StatusExtracted},
		{"reconciling", queue.StatusReconciling, queue.StatusMapped},
		{"validating", queue.StatusValidating, queue.StatusReconciled},
		{"assembling", queue.StatusAssembling, queue.StatusValidated},
	}
	var ids []int64
	for i, tc := range cases {
		item := testsupport.NewDocument(t, store, fmt.Sprintf("/tmp/doc-%s-%d.pdf", tc.name, i))
		item.Status = tc.initialStatus
		item.ProgressStage = tc.name
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d items reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewDocument(t, store, "/tmp/stale.pdf")
	stale.Status = queue.StatusExtracting
	old := time.Now().Add(-10 * time.Minute).UTC()
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.NewDocument(t, store, "/tmp/fresh.pdf")
	fresh.Status = queue.StatusExtracting
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaimed item, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != queue.StatusClassified {
		t.Fatalf("expected stale item back at classified, got %s", reclaimed.Status)
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != queue.StatusExtracting {
		t.Fatalf("expected fresh item untouched, got %s", untouched.Status)
	}
}

func TestNextForStatusesOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewDocument(t, store, "/tmp/first.pdf")
	time.Sleep(5 * time.Millisecond)
	testsupport.NewDocument(t, store, "/tmp/second.pdf")

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending item %d, got %#v", first.ID, next)
	}

	none, err := store.NextForStatuses(ctx, queue.StatusValidated)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no validated item, got %#v", none)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	failed := testsupport.NewDocument(t, store, "/tmp/broken.pdf")
	failed.SetFailed("extraction blew up")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	completed := testsupport.NewDocument(t, store, "/tmp/done.pdf")
	completed.Status = queue.StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 retried item, got %d", count)
	}

	retried, err := store.GetByID(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retried.Status != queue.StatusPending {
		t.Fatalf("expected pending after retry, got %s", retried.Status)
	}
	if retried.ErrorMessage != "" {
		t.Fatalf("expected error cleared, got %q", retried.ErrorMessage)
	}
}

func TestRetryFailedSelectedIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewDocument(t, store, "/tmp/a.pdf")
	a.SetFailed("boom")
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	b := testsupport.NewDocument(t, store, "/tmp/b.pdf")
	b.SetFailed("boom")
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx, a.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 retried item, got %d", count)
	}

	other, err := store.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if other.Status != queue.StatusFailed {
		t.Fatalf("expected unselected item still failed, got %s", other.Status)
	}
}

func TestStopItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	active := testsupport.NewDocument(t, store, "/tmp/active.pdf")
	active.Status = queue.StatusMapping
	if err := store.Update(ctx, active); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	done := testsupport.NewDocument(t, store, "/tmp/finished.pdf")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.StopItems(ctx, active.ID, done.ID)
	if err != nil {
		t.Fatalf("StopItems failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stopped item, got %d", count)
	}

	stopped, err := store.GetByID(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stopped.Status != queue.StatusReview || !stopped.NeedsReview {
		t.Fatalf("expected stopped item in review, got %#v", stopped)
	}
	if !queue.IsUserStopReason(stopped.ReviewReason) {
		t.Fatalf("expected user stop reason, got %q", stopped.ReviewReason)
	}

	untouched, err := store.GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != queue.StatusCompleted {
		t.Fatalf("expected completed item untouched, got %s", untouched.Status)
	}
}

func TestActiveFingerprintsExcludesTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	set := func(path, fingerprint string, status queue.Status) {
		item := testsupport.NewDocument(t, store, path)
		item.Fingerprint = fingerprint
		item.Status = status
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	set("/tmp/one.pdf", "fp-active", queue.StatusClassified)
	set("/tmp/two.pdf", "fp-done", queue.StatusCompleted)
	set("/tmp/three.pdf", "fp-failed", queue.StatusFailed)

	fingerprints, err := store.ActiveFingerprints(ctx)
	if err != nil {
		t.Fatalf("ActiveFingerprints failed: %v", err)
	}
	if _, ok := fingerprints["fp-active"]; !ok {
		t.Fatal("expected fp-active in active set")
	}
	if _, ok := fingerprints["fp-done"]; ok {
		t.Fatal("did not expect completed fingerprint in active set")
	}
	if _, ok := fingerprints["fp-failed"]; ok {
		t.Fatal("did not expect failed fingerprint in active set")
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusExtracting,
		queue.StatusFailed,
		queue.StatusReview,
		queue.StatusCompleted,
	}
	for i, status := range statuses {
		item := testsupport.NewDocument(t, store, fmt.Sprintf("/tmp/doc-%d.pdf", i))
		item.Status = status
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != len(statuses) {
		t.Fatalf("expected total %d, got %d", len(statuses), health.Total)
	}
	if health.Processing != 1 || health.Failed != 1 || health.Review != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestCheckHealthReportsColumns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health: %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}

func TestClearCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done := testsupport.NewDocument(t, store, "/tmp/done.pdf")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.NewDocument(t, store, "/tmp/pending.pdf")

	count, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 cleared item, got %d", count)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Status != queue.StatusPending {
		t.Fatalf("unexpected remaining items: %#v", remaining)
	}
}

func TestClaimForProcessingGuardsStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewDocument(t, store, "/tmp/contested.pdf")

	first := *item
	first.Status = queue.StatusClassifying
	first.ProgressStage = "Classifying"
	claimed, err := store.ClaimForProcessing(ctx, &first, queue.StatusPending)
	if err != nil {
		t.Fatalf("ClaimForProcessing failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to win the row")
	}

	// A second worker that read the item before the first claim landed must
	// lose: the row no longer carries the expected status.
	second := *item
	second.Status = queue.StatusClassifying
	claimed, err = store.ClaimForProcessing(ctx, &second, queue.StatusPending)
	if err != nil {
		t.Fatalf("ClaimForProcessing failed: %v", err)
	}
	if claimed {
		t.Fatal("expected stale claim to lose the row")
	}

	current, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.Status != queue.StatusClassifying {
		t.Fatalf("expected classifying after claim, got %s", current.Status)
	}
	if current.ProgressStage != "Classifying" {
		t.Fatalf("expected winner's progress stage, got %q", current.ProgressStage)
	}
}
