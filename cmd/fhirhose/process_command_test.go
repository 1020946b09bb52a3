package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/seanwevans/fhir-department/internal/testsupport"
)

func TestProcessRefusesWhileDaemonRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	docPath := filepath.Join(env.cfg.Paths.InboxDir, "visit-note.pdf")
	testsupport.WriteTextFile(t, docPath, "%PDF-1.4")

	_, _, err := runCLI(t, []string{"process", docPath}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected process to refuse while the daemon answers the socket")
	}
	if !strings.Contains(err.Error(), "daemon is running") {
		t.Fatalf("unexpected error %q", err.Error())
	}
}
