package preflight

import (
	"context"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/queue"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Endpoint checks only run when the corresponding service is configured.
// The store may be nil, in which case the queue probe is skipped.
func RunAll(ctx context.Context, cfg *config.Config, store *queue.Store) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir))
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Bundles directory", cfg.Paths.BundlesDir))
	results = append(results, CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if store != nil {
		results = append(results, CheckQueueStore(ctx, store))
	}

	if cfg.Mapper.Endpoint != "" {
		results = append(results, CheckServiceEndpoint(ctx, "Entity mapper", cfg.Mapper.Endpoint))
	}
	if cfg.Validation.Endpoint != "" {
		results = append(results, CheckServiceEndpoint(ctx, "Validation service", cfg.Validation.Endpoint))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
