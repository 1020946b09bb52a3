// Package services defines shared utilities consumed by the workflow stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent queue statuses (failed vs review).
//   - The command runner abstraction that makes external tool invocation
//     (file, pdftotext, ghostscript, tesseract) testable.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, timeouts) stays uniform across the pipeline.
package services
