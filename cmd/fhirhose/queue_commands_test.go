package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/seanwevans/fhir-department/internal/queue"
)

func TestQueueStatusAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.NewDocument(ctx, "/inbox/Discharge Summary.pdf"); err != nil {
		t.Fatalf("discharge doc: %v", err)
	}

	labs, err := env.store.NewDocument(ctx, "/inbox/Lab Results.pdf")
	if err != nil {
		t.Fatalf("labs doc: %v", err)
	}
	labs.Status = queue.StatusFailed
	if err := env.store.Update(ctx, labs); err != nil {
		t.Fatalf("labs failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Discharge Summary")
	requireContains(t, out, "Lab Results")
}

func TestQueueRetryAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDocument(ctx, "/inbox/Referral.pdf")
	if err != nil {
		t.Fatalf("referral doc: %v", err)
	}
	item.Status = queue.StatusFailed
	if err := env.store.Update(ctx, item); err != nil {
		t.Fatalf("referral failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed items")

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup referral: %v", err)
	}
	if updated.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", updated.Status)
	}

	updated.Status = queue.StatusFailed
	if err := env.store.Update(ctx, updated); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "clear", "--failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed items")

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared")
}

func TestQueueRetrySpecificID(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDocument(ctx, "/inbox/Referral.pdf")
	if err != nil {
		t.Fatalf("referral doc: %v", err)
	}
	item.Status = queue.StatusFailed
	if err := env.store.Update(ctx, item); err != nil {
		t.Fatalf("referral failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "retry", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry specific: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Item %d reset for retry", item.ID))
}

func TestQueueRetryInvalidID(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "retry", "abc"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid item id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestQueueStopSpecificID(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDocument(ctx, "/inbox/Progress Note.pdf")
	if err != nil {
		t.Fatalf("note doc: %v", err)
	}
	item.Status = queue.StatusExtracting
	if err := env.store.Update(ctx, item); err != nil {
		t.Fatalf("note extracting: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "stop", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue stop: %v", err)
	}
	requireContains(t, out, "Stopped 1 queue items")

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup note: %v", err)
	}
	if updated.Status != queue.StatusReview {
		t.Fatalf("expected review, got %s", updated.Status)
	}
	if !queue.IsUserStopReason(updated.ReviewReason) {
		t.Fatalf("expected user stop reason, got %q", updated.ReviewReason)
	}
}

func TestQueueShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDocument(ctx, "/inbox/Discharge Summary.pdf")
	if err != nil {
		t.Fatalf("discharge doc: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("ID: %d", item.ID))
	requireContains(t, out, "Discharge Summary")
	requireContains(t, out, "Status: Pending")
}

func TestQueueHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Database path:")
	requireContains(t, out, "queue_items table present:")
}

func TestQueueListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.NewDocument(ctx, "/inbox/Discharge Summary.pdf"); err != nil {
		t.Fatalf("discharge doc: %v", err)
	}
	if _, err := env.store.NewDocument(ctx, "/inbox/Lab Results.pdf"); err != nil {
		t.Fatalf("labs doc: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, entry := range items {
		if _, ok := entry["id"]; !ok {
			t.Fatal("missing 'id' key in JSON item")
		}
		if _, ok := entry["status"]; !ok {
			t.Fatal("missing 'status' key in JSON item")
		}
	}
}

func TestQueueResetStuck(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDocument(ctx, "/inbox/Imaging Report.pdf")
	if err != nil {
		t.Fatalf("imaging doc: %v", err)
	}
	item.Status = queue.StatusMapping
	if err := env.store.Update(ctx, item); err != nil {
		t.Fatalf("imaging mapping: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "reset-stuck"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue reset-stuck: %v", err)
	}
	requireContains(t, out, "Reset 1 items")

	updated, err := env.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("lookup imaging: %v", err)
	}
	if updated.Status != queue.StatusExtracted {
		t.Fatalf("expected extracted, got %s", updated.Status)
	}
}

func TestQueueStopReportsTerminalItems(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	done, err := env.store.NewDocument(ctx, "/inbox/Lab Panel.pdf")
	if err != nil {
		t.Fatalf("completed doc: %v", err)
	}
	done.Status = queue.StatusCompleted
	if err := env.store.Update(ctx, done); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	parked, err := env.store.NewDocument(ctx, "/inbox/Referral Letter.pdf")
	if err != nil {
		t.Fatalf("parked doc: %v", err)
	}
	parked.Status = queue.StatusReview
	if err := env.store.Update(ctx, parked); err != nil {
		t.Fatalf("mark review: %v", err)
	}

	out, _, err := runCLI(
		t,
		[]string{"queue", "stop", fmt.Sprintf("%d", done.ID), fmt.Sprintf("%d", parked.ID)},
		env.socketPath,
		env.configPath,
	)
	if err != nil {
		t.Fatalf("queue stop: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Item %d already completed", done.ID))
	requireContains(t, out, fmt.Sprintf("Item %d is already parked for review", parked.ID))
	requireContains(t, out, "Stopped 0 queue items")

	unchanged, err := env.store.GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("lookup completed: %v", err)
	}
	if unchanged.Status != queue.StatusCompleted {
		t.Fatalf("completed item should be untouched, got %s", unchanged.Status)
	}
}

func TestQueueRetryReportsNonFailedItems(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDocument(ctx, "/inbox/Operative Report.pdf")
	if err != nil {
		t.Fatalf("pending doc: %v", err)
	}

	out, _, err := runCLI(
		t,
		[]string{"queue", "retry", fmt.Sprintf("%d", item.ID), "424242"},
		env.socketPath,
		env.configPath,
	)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Item %d is not in failed state", item.ID))
	requireContains(t, out, "Item 424242 not found")
}
