// Package fhir holds the open resource representation shared by the
// reconciliation, validation, and bundling stages.
//
// A Resource is decoded JSON plus a small identity contract: every resource
// answers a (resourceType, id) key even when those fields are absent, so the
// reconciliation engine never needs an error path for malformed input. Deep
// copies and structural equality follow JSON value semantics, including
// cross-type numeric comparison, because resources round-trip through
// encoding/json between stages.
package fhir
