// Package preflight provides readiness checks for external services,
// tool binaries, and filesystem paths that fhirhose depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup so a misconfigured deployment
//     surfaces immediately instead of failing mid-pipeline.
//   - The CLI "queue health" and "daemon status" commands use individual
//     check functions to display service health.
//
// Checks gated by config are skipped when the feature is not configured.
package preflight
