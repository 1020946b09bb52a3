package bundle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seanwevans/fhir-department/internal/fhir"
)

// Entry pairs a freshly generated reference URI with one resource. The URI
// is an assembly-time identifier, unrelated to the resource's own id.
type Entry struct {
	FullURL  string        `json:"fullUrl"`
	Resource fhir.Resource `json:"resource"`
}

// Document is the terminal artifact wrapping the final resource set.
// Immutable once produced.
type Document struct {
	ResourceType string  `json:"resourceType"`
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Timestamp    string  `json:"timestamp"`
	Entry        []Entry `json:"entry"`
}

// Assemble wraps resources into a Bundle document. The bundle id and every
// entry URI are fresh UUIDs, the timestamp is captured once in UTC, and
// entry order equals input order. Resources pass through structurally
// unchanged; no well-formedness checks happen here.
func Assemble(resources []fhir.Resource, typeTag string) Document {
	entries := make([]Entry, 0, len(resources))
	for _, resource := range resources {
		entries = append(entries, Entry{
			FullURL:  "urn:uuid:" + uuid.NewString(),
			Resource: resource,
		})
	}
	return Document{
		ResourceType: "Bundle",
		ID:           uuid.NewString(),
		Type:         typeTag,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Entry:        entries,
	}
}

// Encode renders the bundle as indented JSON.
func (d Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return data, nil
}
