package mapping

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/seanwevans/fhir-department/internal/services"
)

// SaveRecords writes validated entity records for the reconciliation stage,
// creating parent directories as needed.
func SaveRecords(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "mapping", "save records",
			"Could not encode entity records", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(
			services.ErrTransient, "mapping", "save records",
			"Could not create staging directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(
			services.ErrTransient, "mapping", "save records",
			"Could not write entity records", err)
	}
	return nil
}

// LoadRecords reads staged entity records, revalidating them against the
// boundary schema. On failure it returns a services.ErrValidation suitable
// for stage Execute methods.
func LoadRecords(path string) ([]Record, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load records",
			"Entity records missing; rerun mapping", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load records",
			"Entity records unreadable; rerun mapping", err)
	}
	records, err := DecodeRecords(data)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load records",
			"Entity records malformed; rerun mapping", err)
	}
	return records, nil
}
