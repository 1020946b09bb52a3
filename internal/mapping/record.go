package mapping

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/seanwevans/fhir-department/internal/fhir"
)

// Record is the typed intermediate an entity mapper produces for one
// clinical resource. Only records that pass the embedded boundary schema
// enter the pipeline; anything else is rejected before conversion.
type Record struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	Extensions   []any          `json:"extension,omitempty"`
}

//go:embed record_schema.json
var recordSchemaJSON string

var (
	recordSchemaOnce sync.Once
	recordSchema     *jsonschema.Schema
	recordSchemaErr  error
)

func compiledRecordSchema() (*jsonschema.Schema, error) {
	recordSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("record_schema.json", strings.NewReader(recordSchemaJSON)); err != nil {
			recordSchemaErr = fmt.Errorf("add record schema: %w", err)
			return
		}
		recordSchema, recordSchemaErr = compiler.Compile("record_schema.json")
	})
	return recordSchema, recordSchemaErr
}

// ValidateRecord checks one decoded record value against the boundary schema.
func ValidateRecord(value any) error {
	schema, err := compiledRecordSchema()
	if err != nil {
		return err
	}
	return schema.Validate(value)
}

// DecodeRecords parses a JSON record list and validates every element
// against the boundary schema.
func DecodeRecords(data []byte) ([]Record, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode record list: %w", err)
	}
	records := make([]Record, 0, len(raws))
	for i, raw := range raws {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		if err := ValidateRecord(value); err != nil {
			return nil, fmt.Errorf("record %d rejected by boundary schema: %w", i, err)
		}
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Resource converts the record into its open resource form. Identity fields
// win over anything in Fields; a blank id defaults to the unknown token so
// every resource carries some identity.
func (r Record) Resource() fhir.Resource {
	resource := make(fhir.Resource, len(r.Fields)+3)
	for k, v := range r.Fields {
		resource[k] = v
	}
	resource["resourceType"] = r.ResourceType
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = fhir.UnknownID
	}
	resource["id"] = id
	if len(r.Extensions) > 0 {
		resource["extension"] = r.Extensions
	}
	return resource
}
