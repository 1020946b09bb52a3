package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/deps"
	"github.com/seanwevans/fhir-department/internal/queue"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckQueueStore verifies the queue database exists, is readable, and has
// the expected schema.
func CheckQueueStore(ctx context.Context, store *queue.Store) Result {
	const name = "Queue database"

	if store == nil {
		return Result{Name: name, Detail: "store unavailable"}
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !health.DatabaseExists {
		return Result{Name: name, Detail: fmt.Sprintf("%s does not exist", health.DBPath)}
	}
	if !health.DatabaseReadable {
		return Result{Name: name, Detail: "database not readable"}
	}
	if !health.TableExists {
		return Result{Name: name, Detail: "queue table missing"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d items", health.TotalItems)}
}

// CheckServiceEndpoint verifies that an HTTP service endpoint is reachable.
// Any HTTP response counts as reachable; the stage handlers interpret the
// service's actual replies.
func CheckServiceEndpoint(ctx context.Context, name, endpoint string) Result {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return Result{Name: name, Detail: "missing endpoint"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, trimmed, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid endpoint (%v)", err)}
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	defer resp.Body.Close()

	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckSystemDeps evaluates all external tool binaries for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "connection timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connection timed out (service unreachable)"
	}
	return err.Error()
}
