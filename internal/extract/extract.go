// Package extract routes documents to the right text extraction
// strategy by file extension and picks between the native PDF text
// layer and OCR for scanned documents.
package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/extract/docxtext"
	"github.com/AdielsonMedeiros/POC-PDF/internal/extract/ocrbox"
	"github.com/AdielsonMedeiros/POC-PDF/internal/extract/pdftext"
)

// Extraction methods reported in Result.Method.
const (
	MethodNative   = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
	MethodImageOCR = "image-ocr"
	MethodDOCX     = "docx-text"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tiff": true, ".tif": true,
}

// Result is one extracted document: its full text, positioned words
// for field matching, and the page geometry they live in.
type Result struct {
	Text   string
	Words  []entity.PositionedWord
	Page   entity.PageSize
	Method string
}

// OCREngine is the scanned-document path, satisfied by ocrbox.Engine.
type OCREngine interface {
	ExtractPDF(ctx context.Context, path string) (string, []entity.PositionedWord, entity.PageSize, error)
	ExtractImage(ctx context.Context, path string) (string, []entity.PositionedWord, entity.PageSize, error)
	Available() bool
}

// nativePDF is swappable in tests.
type nativePDF func(path string) (string, []entity.PositionedWord, entity.PageSize, error)

type Extractor struct {
	ocr       OCREngine
	native    nativePDF
	threshold int
	logger    *slog.Logger
}

// NewExtractor builds the extraction front door. threshold is the
// minimum number of non-whitespace characters on page 1 for the native
// text layer to be trusted; below it the PDF is treated as scanned.
func NewExtractor(ocr OCREngine, threshold int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = 50
	}
	return &Extractor{ocr: ocr, native: pdftextExtract, threshold: threshold, logger: logger}
}

func pdftextExtract(path string) (string, []entity.PositionedWord, entity.PageSize, error) {
	return pdftext.Extract(path)
}

// Extract pulls text and positioned words out of the document at path.
// forceOCR skips scanned detection and always rasterizes PDFs.
func (e *Extractor) Extract(ctx context.Context, path string, forceOCR bool) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return e.extractPDF(ctx, path, forceOCR)
	case imageExts[ext]:
		return e.extractImage(ctx, path)
	case ext == ".docx":
		text, words, page, err := docxtext.Extract(path)
		if err != nil {
			return nil, common.WrapError(common.ErrInternal, "extract docx", err)
		}
		e.logger.Info("extract.docx.ok", "path", path, "words", len(words))
		return &Result{Text: text, Words: words, Page: page, Method: MethodDOCX}, nil
	default:
		e.logger.Error("extract.unsupported", "path", path, "ext", ext)
		return nil, common.WrapError(common.ErrUnsupportedFormat, "unsupported format "+ext, nil)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string, forceOCR bool) (*Result, error) {
	text, words, page, nativeErr := e.native(path)

	useOCR := forceOCR || nativeErr != nil || looksScanned(text, e.threshold)
	if useOCR {
		if e.ocr != nil && e.ocr.Available() {
			ocrText, ocrWords, ocrPage, err := e.ocr.ExtractPDF(ctx, path)
			if err == nil {
				return &Result{Text: ocrText, Words: ocrWords, Page: ocrPage, Method: MethodPDFOCR}, nil
			}
			e.logger.Warn("extract.ocr.failed", "path", path, "error", err)
		} else {
			e.logger.Warn("extract.ocr.unavailable", "path", path)
		}
		// fall back to whatever the native layer produced
	}

	if nativeErr != nil {
		return nil, common.WrapError(common.ErrInternal, "extract pdf", nativeErr)
	}
	e.logger.Info("extract.native.ok", "path", path, "words", len(words), "chars", len(text))
	return &Result{Text: text, Words: words, Page: page, Method: MethodNative}, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (*Result, error) {
	if e.ocr == nil || !e.ocr.Available() {
		return nil, common.WrapError(common.ErrInternal, "tesseract is not installed", nil)
	}
	text, words, page, err := e.ocr.ExtractImage(ctx, path)
	if err != nil {
		return nil, common.WrapError(common.ErrInternal, "extract image", err)
	}
	return &Result{Text: text, Words: words, Page: page, Method: MethodImageOCR}, nil
}

// looksScanned reports whether page 1 carries too little native text
// to be a born-digital document.
func looksScanned(text string, threshold int) bool {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
			if n >= threshold {
				return false
			}
		}
	}
	return true
}

// DefaultEngine wires the external-binary OCR engine from config.
func DefaultEngine(cfg common.ExtractConfig, logger *slog.Logger) *ocrbox.Engine {
	return ocrbox.NewEngine(ocrbox.Config{
		Pdftoppm:      cfg.Pdftoppm,
		Tesseract:     cfg.Tesseract,
		Lang:          cfg.TesseractLang,
		DPI:           cfg.DPI,
		MinConfidence: float64(cfg.MinConfidence),
	}, logger)
}
