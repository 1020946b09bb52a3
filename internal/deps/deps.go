// Package deps reports the availability of the external binaries the
// document pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/seanwevans/fhir-department/internal/config"
)

// Requirement defines an external dependency fhirhose relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements builds the dependency list from the configured tool binaries.
// Ghostscript and tesseract are only exercised on the OCR path, so they are
// flagged optional: a text-only deployment runs without them.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "file",
			Command:     cfg.Classifier.FileBinary,
			Description: "MIME type detection for inbox documents",
		},
		{
			Name:        "pdftotext",
			Command:     cfg.Extraction.PdftotextBinary,
			Description: "Text-layer extraction from PDF documents",
		},
		{
			Name:        "ghostscript",
			Command:     cfg.Extraction.GhostscriptBinary,
			Description: "PDF rasterization ahead of OCR",
			Optional:    true,
		},
		{
			Name:        "tesseract",
			Command:     cfg.Extraction.TesseractBinary,
			Description: "OCR for scanned documents and images",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the statuses of required dependencies that are not
// available.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status)
		}
	}
	return missing
}
