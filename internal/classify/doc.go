// Package classify implements the first pipeline stage: content
// fingerprinting and MIME identification for queued documents.
//
// Fingerprints are streamed SHA-256 digests computed in bounded chunks, so
// the stage handles arbitrarily large documents with constant memory. MIME
// identification shells out to the file(1) tool and parses its
// "type/subtype; charset=value" output. Neither failure aborts the pipeline:
// problems are recorded as a structured note on the queue item and the
// document continues downstream for best-effort processing. Duplicate
// submissions, detected by fingerprint, are routed to manual review instead.
package classify
