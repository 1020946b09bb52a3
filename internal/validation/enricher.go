package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/fhir"
)

// ResultsField is the annotation key enrichment writes on each resource.
const ResultsField = "validationResults"

const maxReplyBytes = 4 << 20

// Enricher posts resources to the external validation service and attaches
// the outcome. The timeout is mandatory so one unreachable endpoint cannot
// stall a whole batch.
type Enricher struct {
	endpoint string
	client   *http.Client
}

// NewEnricher builds an enricher from configuration. An empty endpoint
// yields an unconfigured enricher; callers skip enrichment in that case.
func NewEnricher(cfg *config.Config) *Enricher {
	timeout := time.Duration(cfg.Validation.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Enricher{
		endpoint: strings.TrimSpace(cfg.Validation.Endpoint),
		client:   &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a validation endpoint is set.
func (e *Enricher) Configured() bool {
	return e.endpoint != ""
}

// Endpoint returns the configured validation endpoint.
func (e *Enricher) Endpoint() string {
	return e.endpoint
}

// Enrich attaches a validationResults annotation to the resource and returns
// it. A reachable endpoint contributes its results list verbatim; any other
// outcome contributes a single error record. Identity, fields, and
// extensions are never touched.
func (e *Enricher) Enrich(ctx context.Context, resource fhir.Resource) fhir.Resource {
	resource[ResultsField] = e.results(ctx, resource)
	return resource
}

func (e *Enricher) results(ctx context.Context, resource fhir.Resource) []any {
	body, err := json.Marshal(resource)
	if err != nil {
		return errorResults(fmt.Sprintf("encode resource: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return errorResults(fmt.Sprintf("build validation request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return errorResults(fmt.Sprintf("validation service unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorResults(fmt.Sprintf("validation service responded with status %d", resp.StatusCode))
	}

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return errorResults(fmt.Sprintf("read validation reply: %v", err))
	}
	var envelope struct {
		Results []any `json:"results"`
	}
	if err := json.Unmarshal(reply, &envelope); err != nil {
		return errorResults(fmt.Sprintf("malformed validation reply: %v", err))
	}
	if envelope.Results == nil {
		return []any{}
	}
	return envelope.Results
}

func errorResults(message string) []any {
	return []any{map[string]any{"error": message}}
}
