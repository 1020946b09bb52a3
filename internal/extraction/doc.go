// Package extraction turns a source document into a text payload for the
// entity mapper.
//
// The decision flow prefers an embedded text layer: when pdftotext produces
// non-empty output the payload is that text and OCR never runs. Documents
// without a text layer are rasterized to a multi-page TIFF with Ghostscript
// and recognized with Tesseract, producing hOCR markup. The raster image is
// an intermediate artifact scoped to a scratch directory that is removed on
// every exit path. Tool failures are fatal for the item; the decider surfaces
// them without retrying.
//
// All external tools run through an injectable Toolset so the flow can be
// exercised with fakes.
package extraction
