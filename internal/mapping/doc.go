// Package mapping is the boundary between extraction payloads and
// structured clinical resources. An injected Service (the external entity
// mapper over HTTP, or a built-in structural fallback) produces typed
// records; every record is validated against an embedded JSON Schema before
// it becomes a resource, so schema-less collaborator output never leaks
// into the pipeline. Rejected records route the document to review rather
// than failing the queue.
package mapping
