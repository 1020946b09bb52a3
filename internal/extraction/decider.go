package extraction

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/services"
	"github.com/seanwevans/fhir-department/internal/staging"
)

// State names a step of the extraction decision flow. States appear in logs
// so operators can see which path a document took.
type State string

const (
	StateTryTextLayer    State = "try-text-layer"
	StateExtractedText   State = "extracted-text"
	StateRasterize       State = "rasterize"
	StateOCR             State = "ocr"
	StateExtractedMarkup State = "extracted-markup"
	StateFailed          State = "failed"
)

// Payload kinds produced by a successful extraction.
const (
	KindText = "text"
	KindOCR  = "ocr"
)

// Request describes one extraction attempt.
type Request struct {
	Source    string
	Workspace staging.Workspace
	RasterDPI int
	Language  string
}

// Result reports how a document's payload was produced and where it lives.
type Result struct {
	Kind        string
	PayloadPath string
}

// Decider walks a document through the extraction decision flow:
//
//	try-text-layer -> extracted-text
//	try-text-layer -> rasterize -> ocr -> extracted-markup
//
// A present text layer wins outright; OCR is only attempted when the text
// layer is empty, never both.
type Decider struct {
	tools  Toolset
	logger *slog.Logger
}

// NewDecider builds a decider over the given toolset.
func NewDecider(tools Toolset, logger *slog.Logger) *Decider {
	deciderLogger := logger
	if deciderLogger != nil {
		deciderLogger = deciderLogger.With(logging.String("component", "extraction-decider"))
	}
	return &Decider{tools: tools, logger: deciderLogger}
}

// Run decides how to extract text from the source document and writes the
// payload into the workspace. Tool failures are terminal for the attempt and
// surfaced to the caller without retries.
func (d *Decider) Run(ctx context.Context, req Request) (Result, error) {
	logger := logging.WithContext(ctx, d.logger)
	if strings.TrimSpace(req.Source) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "extracting", "validate inputs", "No source document provided for extraction", nil)
	}
	if strings.TrimSpace(req.Workspace.Root) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "extracting", "validate inputs", "No staging workspace provided for extraction", nil)
	}

	transition(logger, StateTryTextLayer)
	text, err := d.tools.ExtractTextLayer(ctx, req.Source)
	if err != nil {
		transition(logger, StateFailed)
		return Result{}, services.Wrap(services.ErrExternalTool, "extracting", "extract text layer", "Text-layer extraction failed; check the pdftotext installation", err)
	}
	if text != "" {
		payload := req.Workspace.PayloadTextPath()
		if err := os.WriteFile(payload, []byte(text), 0o644); err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "extracting", "write payload", "Failed to write extracted text payload", err)
		}
		transition(logger, StateExtractedText)
		logger.Info(
			"text layer extracted",
			logging.String("payload", payload),
			logging.Int("characters", len(text)),
		)
		return Result{Kind: KindText, PayloadPath: payload}, nil
	}

	return d.rasterizeAndRecognize(ctx, req)
}

// rasterizeAndRecognize handles the no-text-layer path. The raster artifact
// is scoped to a scratch directory removed on every exit, including panics;
// removal failures are logged, never escalated.
func (d *Decider) rasterizeAndRecognize(ctx context.Context, req Request) (Result, error) {
	logger := logging.WithContext(ctx, d.logger)
	scratch, cleanup, err := req.Workspace.Scratch("raster")
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "extracting", "create scratch", "Failed to create raster scratch directory", err)
	}
	defer func() {
		if cleanupErr := cleanup(); cleanupErr != nil {
			logger.Warn(
				"raster scratch cleanup failed",
				logging.Error(cleanupErr),
				logging.String("path", scratch),
			)
		}
	}()

	rasterPath := filepath.Join(scratch, "raster.tiff")
	transition(logger, StateRasterize)
	if err := d.tools.Rasterize(ctx, req.Source, rasterPath, req.RasterDPI); err != nil {
		transition(logger, StateFailed)
		return Result{}, services.Wrap(services.ErrExternalTool, "extracting", "rasterize document", "Rasterization failed; check the Ghostscript installation", err)
	}

	transition(logger, StateOCR)
	outputBase := strings.TrimSuffix(req.Workspace.PayloadHOCRPath(), ".hocr")
	payload, err := d.tools.RecognizeText(ctx, rasterPath, outputBase, ocrLanguage(req.Language))
	if err != nil {
		transition(logger, StateFailed)
		return Result{}, services.Wrap(services.ErrExternalTool, "extracting", "recognize text", "OCR failed; check the Tesseract installation and language data", err)
	}

	transition(logger, StateExtractedMarkup)
	logger.Info("ocr markup produced", logging.String("payload", payload))
	return Result{Kind: KindOCR, PayloadPath: payload}, nil
}

func transition(logger *slog.Logger, state State) {
	logger.Debug("extraction state", logging.String("state", string(state)))
}
