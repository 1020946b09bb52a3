package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seanwevans/fhir-department/internal/queue"
)

// Item workspaces live under <staging_dir>/docs. Scratch directories for
// intermediate artifacts live inside the workspace so removing the workspace
// removes everything the item produced.
const docsSubdir = "docs"

// Workspace is the staging directory scoped to a single queue item. All
// intermediate artifacts for the item are written beneath Root.
type Workspace struct {
	Root string
}

// NewWorkspace creates (or reuses) the staging workspace for an item.
func NewWorkspace(item *queue.Item, stagingDir string) (Workspace, error) {
	if item == nil {
		return Workspace{}, errors.New("item is nil")
	}
	root := item.StagingRoot(stagingDir)
	if root == "" {
		return Workspace{}, fmt.Errorf("no staging root for item %d", item.ID)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("create staging workspace: %w", err)
	}
	return Workspace{Root: root}, nil
}

// PayloadTextPath returns the location for a text-layer extraction payload.
func (w Workspace) PayloadTextPath() string {
	return filepath.Join(w.Root, "payload.txt")
}

// PayloadHOCRPath returns the location for an OCR extraction payload.
func (w Workspace) PayloadHOCRPath() string {
	return filepath.Join(w.Root, "payload.hocr")
}

// RecordsPath returns the location for mapped entity records.
func (w Workspace) RecordsPath() string {
	return filepath.Join(w.Root, "records.json")
}

// ResourcesPath returns the location for the reconciled resource list.
func (w Workspace) ResourcesPath() string {
	return filepath.Join(w.Root, "resources.json")
}

// Scratch creates a temporary directory inside the workspace and returns it
// with a cleanup function. Callers must invoke cleanup (normally via defer)
// so intermediate artifacts never outlive the operation that created them.
// Cleanup failures are reported, not escalated; callers decide whether to
// log them.
func (w Workspace) Scratch(prefix string) (string, func() error, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = "scratch"
	}
	dir, err := os.MkdirTemp(w.Root, prefix+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup := func() error {
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

// Remove deletes the workspace and everything in it.
func (w Workspace) Remove() error {
	if strings.TrimSpace(w.Root) == "" {
		return nil
	}
	return os.RemoveAll(w.Root)
}
