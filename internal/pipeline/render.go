package processor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/extract"
	"github.com/AdielsonMedeiros/POC-PDF/internal/overlay"
)

// PDFRenderer renders filled documents. PDF sources are stamped in
// place; image and DOCX sources are first rebuilt as a base PDF, since
// the overlay merge needs one.
type PDFRenderer struct {
	logger *slog.Logger
}

func NewPDFRenderer(logger *slog.Logger) *PDFRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFRenderer{logger: logger}
}

func (r *PDFRenderer) Render(srcPath, method string, words []entity.PositionedWord, mappings []entity.FieldMapping, values map[string]string, page entity.PageSize) ([]byte, error) {
	switch method {
	case extract.MethodNative, extract.MethodPDFOCR:
		return overlay.Generate(srcPath, mappings, values, page, r.logger)

	case extract.MethodImageOCR:
		return r.renderViaBase(srcPath, mappings, values, page, func(basePath string) error {
			return overlay.BaseFromImage(srcPath, page, basePath)
		})

	case extract.MethodDOCX:
		return r.renderViaBase(srcPath, mappings, values, page, func(basePath string) error {
			return overlay.BaseFromWords(words, page, basePath)
		})

	default:
		return nil, fmt.Errorf("cannot render output for method %q", method)
	}
}

func (r *PDFRenderer) renderViaBase(srcPath string, mappings []entity.FieldMapping, values map[string]string, page entity.PageSize, buildBase func(basePath string) error) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "pocpdf-base-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	basePath := filepath.Join(tmpDir, "base.pdf")
	if err := buildBase(basePath); err != nil {
		return nil, fmt.Errorf("build base pdf for %s: %w", srcPath, err)
	}
	return overlay.Generate(basePath, mappings, values, page, r.logger)
}
