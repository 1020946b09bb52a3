package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate checks the configuration for invalid values. It reports every
// problem it finds in a single error.
func (c *Config) Validate() error {
	var problems []string

	requiredPaths := map[string]string{
		"paths.inbox_dir":   c.Paths.InboxDir,
		"paths.staging_dir": c.Paths.StagingDir,
		"paths.bundles_dir": c.Paths.BundlesDir,
		"paths.log_dir":     c.Paths.LogDir,
	}
	for field, value := range requiredPaths {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%s must not be empty", field))
		}
	}

	requiredBinaries := map[string]string{
		"classifier.file_binary":        c.Classifier.FileBinary,
		"extraction.pdftotext_binary":   c.Extraction.PdftotextBinary,
		"extraction.ghostscript_binary": c.Extraction.GhostscriptBinary,
		"extraction.tesseract_binary":   c.Extraction.TesseractBinary,
	}
	for field, value := range requiredBinaries {
		if value == "" {
			problems = append(problems, fmt.Sprintf("%s must not be empty", field))
		}
	}

	positives := map[string]int{
		"classifier.timeout_seconds":       c.Classifier.TimeoutSeconds,
		"extraction.timeout_seconds":       c.Extraction.TimeoutSeconds,
		"mapper.timeout_seconds":           c.Mapper.TimeoutSeconds,
		"validation.timeout_seconds":       c.Validation.TimeoutSeconds,
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
		"workflow.queue_poll_interval":     c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":    c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":      c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":       c.Workflow.HeartbeatTimeout,
		"workflow.inbox_poll_interval":     c.Workflow.InboxPollInterval,
		"workflow.staging_retention_hours": c.Workflow.StagingRetentionHours,
		"logging.retention_days":           c.Logging.RetentionDays,
	}
	for field, value := range positives {
		if value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", field))
		}
	}

	if c.Workflow.InboxSettleSeconds < 0 {
		problems = append(problems, "workflow.inbox_settle_seconds must not be negative")
	}
	if c.Workflow.HeartbeatTimeout > 0 && c.Workflow.HeartbeatInterval > 0 &&
		c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		problems = append(problems, "workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}

	if c.Extraction.RasterDPI < 72 || c.Extraction.RasterDPI > 1200 {
		problems = append(problems, "extraction.raster_dpi must be between 72 and 1200")
	}
	if c.Extraction.OCRLanguage == "" {
		problems = append(problems, "extraction.ocr_language must not be empty")
	}

	for field, endpoint := range map[string]string{
		"mapper.endpoint":     c.Mapper.Endpoint,
		"validation.endpoint": c.Validation.Endpoint,
	} {
		if endpoint == "" {
			continue
		}
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("%s must be a valid http(s) URL", field))
			continue
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			problems = append(problems, fmt.Sprintf("%s must use http or https", field))
		}
	}

	if c.Bundle.Type == "" {
		problems = append(problems, "bundle.type must not be empty")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q must be debug, info, warn, or error", c.Logging.Level))
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}
