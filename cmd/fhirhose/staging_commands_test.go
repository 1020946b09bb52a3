package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/seanwevans/fhir-department/internal/staging"
)

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.store.NewDocument(ctx, "/inbox/Discharge Summary.pdf")
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	workspace, err := staging.NewWorkspace(item, env.cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	orphan := filepath.Join(env.cfg.Paths.StagingDir, "docs", "item-999-dead9999")
	if err := os.MkdirAll(orphan, 0o755); err != nil {
		t.Fatalf("mkdir orphan: %v", err)
	}

	out, _, err := runCLI(t, []string{"staging", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, item.StagingName())
	requireContains(t, out, "item-999-dead9999")

	out, _, err = runCLI(t, []string{"staging", "clean"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 orphaned staging workspaces")
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("orphan workspace should be removed, stat err=%v", err)
	}
	if _, err := os.Stat(workspace.Root); err != nil {
		t.Fatalf("active workspace should remain: %v", err)
	}

	out, _, err = runCLI(t, []string{"staging", "clean", "--all"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("staging clean --all: %v", err)
	}
	requireContains(t, out, "Removed 1 staging workspaces")
	if _, err := os.Stat(workspace.Root); !os.IsNotExist(err) {
		t.Fatalf("workspace should be removed by --all, stat err=%v", err)
	}
}
