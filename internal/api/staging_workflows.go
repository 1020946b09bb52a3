package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/seanwevans/fhir-department/internal/staging"
)

// WorkspaceNameProvider surfaces the workspace names of items still present
// in the queue, so orphan sweeps know which directories remain referenced.
type WorkspaceNameProvider interface {
	StagingNames(ctx context.Context) (map[string]struct{}, error)
}

type CleanStagingRequest struct {
	StagingDir string
	CleanAll   bool
	Workspaces WorkspaceNameProvider
}

type CleanStagingResult struct {
	Configured bool
	Scope      string
	Cleanup    staging.CleanStaleResult
}

// CleanStagingDirectories applies the staging cleanup policy used by CLI
// commands: --all removes every workspace regardless of age, the default
// removes only workspaces no queue row references.
func CleanStagingDirectories(ctx context.Context, req CleanStagingRequest) (CleanStagingResult, error) {
	stagingDir := strings.TrimSpace(req.StagingDir)
	if stagingDir == "" {
		return CleanStagingResult{Configured: false}, nil
	}

	if req.CleanAll {
		return CleanStagingResult{
			Configured: true,
			Scope:      "staging",
			Cleanup:    staging.CleanStale(ctx, stagingDir, 0, nil),
		}, nil
	}

	if req.Workspaces == nil {
		return CleanStagingResult{}, fmt.Errorf("workspace name provider is required unless clean_all is set")
	}
	names, err := req.Workspaces.StagingNames(ctx)
	if err != nil {
		return CleanStagingResult{}, err
	}
	return CleanStagingResult{
		Configured: true,
		Scope:      "orphaned staging",
		Cleanup:    staging.CleanOrphaned(ctx, stagingDir, names, nil),
	}, nil
}
