package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seanwevans/fhir-department/internal/queue"
)

// syncBuffer is a thread-safe wrapper around bytes.Buffer for use in tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ io.Writer = (*syncBuffer)(nil)

func TestDaemonStartAlreadyRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"daemon", "start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestDaemonStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.NewDocument(ctx, "/inbox/Discharge Summary.pdf"); err != nil {
		t.Fatalf("create doc: %v", err)
	}
	labs, err := env.store.NewDocument(ctx, "/inbox/Lab Results.pdf")
	if err != nil {
		t.Fatalf("create labs doc: %v", err)
	}
	labs.Status = queue.StatusFailed
	if err := env.store.Update(ctx, labs); err != nil {
		t.Fatalf("update status: %v", err)
	}

	out, _, err := runCLI(t, []string{"daemon", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "Storage Paths")
	requireContains(t, out, "Queue Status")
	requireContains(t, out, "Pending")
	requireContains(t, out, "Failed")
}

func TestDaemonLogs(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := appendLine(env.logPath, "first entry"); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := appendLine(env.logPath, "second entry"); err != nil {
		t.Fatalf("append second: %v", err)
	}

	out, _, err := runCLI(t, []string{"daemon", "logs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon logs: %v", err)
	}
	requireContains(t, out, "first entry")
	requireContains(t, out, "second entry")
}

func TestDaemonLogsFollow(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := appendLine(env.logPath, "first"); err != nil {
		t.Fatalf("append first: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--socket", env.socketPath, "--config", env.configPath, "daemon", "logs", "--follow"})
	cmd.SetContext(ctx)
	stdout := &syncBuffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	done := make(chan error, 1)
	go func() {
		done <- cmd.Execute()
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(stdout.String(), "first") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(stdout.String(), "first") {
		t.Fatalf("expected initial line, got %q", stdout.String())
	}

	if err := appendLine(env.logPath, "second"); err != nil {
		t.Fatalf("append second: %v", err)
	}
	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(stdout.String(), "second") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(stdout.String(), "second") {
		t.Fatalf("expected follow output, got %q", stdout.String())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not exit after cancel")
	}
}
