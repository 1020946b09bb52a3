// Package workflow advances queue items through the configured processing
// stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// items into registered stage handlers (classifier, extractor, mapper,
// reconciler, validator, assembler) while capturing progress and failure
// metadata. It also aggregates queue stats, calls stage health checks, and
// emits queue-level notifications when processing starts or completes.
//
// The workflow runs two independent lanes: intake (classification and
// extraction, which shell out to external tools) and assembly (mapping,
// reconciliation, validation, and bundling, which are network bound).
// Each lane claims one item at a time
// and processes it through its stages strictly sequentially, so document B
// can be rasterized while document A's resources are being validated.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition items; this package is
// the authoritative home for that coordination logic.
package workflow
