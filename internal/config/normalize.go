package config

import (
	"os"
	"strings"
)

// normalize trims string fields, applies environment fallbacks, and expands
// every path field to an absolute location.
func (c *Config) normalize() error {
	c.Classifier.FileBinary = strings.TrimSpace(c.Classifier.FileBinary)
	c.Extraction.PdftotextBinary = strings.TrimSpace(c.Extraction.PdftotextBinary)
	c.Extraction.GhostscriptBinary = strings.TrimSpace(c.Extraction.GhostscriptBinary)
	c.Extraction.TesseractBinary = strings.TrimSpace(c.Extraction.TesseractBinary)
	c.Extraction.OCRLanguage = strings.TrimSpace(c.Extraction.OCRLanguage)
	c.Mapper.Endpoint = strings.TrimSpace(c.Mapper.Endpoint)
	c.Validation.Endpoint = strings.TrimSpace(c.Validation.Endpoint)
	c.Bundle.Type = strings.TrimSpace(c.Bundle.Type)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Mapper.Endpoint == "" {
		c.Mapper.Endpoint = strings.TrimSpace(os.Getenv("FHIRHOSE_MAPPER_ENDPOINT"))
	}
	if c.Validation.Endpoint == "" {
		c.Validation.Endpoint = strings.TrimSpace(os.Getenv("FHIRHOSE_VALIDATION_ENDPOINT"))
	}
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = strings.TrimSpace(os.Getenv("FHIRHOSE_NTFY_TOPIC"))
	}

	paths := []*string{
		&c.Paths.InboxDir,
		&c.Paths.StagingDir,
		&c.Paths.BundlesDir,
		&c.Paths.ArchiveDir,
		&c.Paths.LogDir,
	}
	for _, p := range paths {
		expanded, err := expandPath(strings.TrimSpace(*p))
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}
