package stage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/seanwevans/fhir-department/internal/fhir"
	"github.com/seanwevans/fhir-department/internal/services"
)

// LoadResources reads a staged resource list written by an earlier stage.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func LoadResources(path string) ([]fhir.Resource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load resources",
			"Resource list missing; rerun mapping", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load resources",
			"Resource list unreadable; rerun mapping", err)
	}
	resources, err := fhir.DecodeList(data)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load resources",
			"Resource list malformed; rerun mapping", err)
	}
	return resources, nil
}

// SaveResources writes a resource list for the next stage, creating parent
// directories as needed.
func SaveResources(path string, resources []fhir.Resource) error {
	data, err := fhir.EncodeList(resources)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "stage", "save resources",
			"Could not encode resource list", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(
			services.ErrTransient, "stage", "save resources",
			"Could not create staging directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(
			services.ErrTransient, "stage", "save resources",
			"Could not write resource list", err)
	}
	return nil
}
