package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/language"
	"github.com/seanwevans/fhir-department/internal/services"
)

// Toolset abstracts the external extraction tools so the decision flow can be
// tested without pdftotext, Ghostscript, or Tesseract installed.
type Toolset interface {
	// ExtractTextLayer returns the document's embedded text, trimmed. An
	// empty string means no text layer.
	ExtractTextLayer(ctx context.Context, source string) (string, error)
	// Rasterize converts the document into a single multi-page TIFF at the
	// given resolution.
	Rasterize(ctx context.Context, source, rasterPath string, dpi int) error
	// RecognizeText runs OCR over the raster and returns the path of the
	// produced hOCR file (outputBase plus the tool's fixed extension).
	RecognizeText(ctx context.Context, rasterPath, outputBase, lang string) (string, error)
}

// Tools is the production Toolset backed by the configured binaries.
type Tools struct {
	runner            services.Runner
	pdftotextBinary   string
	ghostscriptBinary string
	tesseractBinary   string
}

// NewTools builds the production toolset with a runner bounded by the
// configured extraction timeout.
func NewTools(cfg *config.Config, logger *slog.Logger) *Tools {
	runner := services.NewRunner(logger, time.Duration(cfg.Extraction.TimeoutSeconds)*time.Second)
	return NewToolsWithRunner(cfg, runner)
}

// NewToolsWithRunner allows injecting the command runner (used in tests).
func NewToolsWithRunner(cfg *config.Config, runner services.Runner) *Tools {
	return &Tools{
		runner:            runner,
		pdftotextBinary:   strings.TrimSpace(cfg.Extraction.PdftotextBinary),
		ghostscriptBinary: strings.TrimSpace(cfg.Extraction.GhostscriptBinary),
		tesseractBinary:   strings.TrimSpace(cfg.Extraction.TesseractBinary),
	}
}

func (t *Tools) ExtractTextLayer(ctx context.Context, source string) (string, error) {
	stdout, stderr, err := t.runner.Run(ctx, t.pdftotextBinary, "-layout", "-enc", "UTF-8", "-eol", "unix", source, "-")
	if err != nil {
		return "", toolError(t.pdftotextBinary, stderr, err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

func (t *Tools) Rasterize(ctx context.Context, source, rasterPath string, dpi int) error {
	if dpi <= 0 {
		dpi = 600
	}
	_, stderr, err := t.runner.Run(
		ctx,
		t.ghostscriptBinary,
		"-q",
		"-dNOPAUSE",
		"-dBATCH",
		"-sDEVICE=tiff24nc",
		fmt.Sprintf("-r%d", dpi),
		"-sOutputFile="+rasterPath,
		source,
	)
	if err != nil {
		return toolError(t.ghostscriptBinary, stderr, err)
	}
	return nil
}

func (t *Tools) RecognizeText(ctx context.Context, rasterPath, outputBase, lang string) (string, error) {
	_, stderr, err := t.runner.Run(ctx, t.tesseractBinary, rasterPath, outputBase, "hocr", "-l", lang)
	if err != nil {
		return "", toolError(t.tesseractBinary, stderr, err)
	}
	return outputBase + ".hocr", nil
}

// ocrLanguage normalizes recognized language spellings to the ISO 639-2 codes
// Tesseract expects and passes unrecognized values (such as Tesseract-specific
// variants like chi_sim) through untouched.
func ocrLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "eng"
	}
	if mapped := language.ToISO3(code); mapped != "und" {
		return mapped
	}
	return code
}

func toolError(binary string, stderr []byte, err error) error {
	detail := strings.TrimSpace(string(stderr))
	if detail == "" {
		return fmt.Errorf("run %s: %w", binary, err)
	}
	return fmt.Errorf("run %s: %w: %s", binary, err, detail)
}
