// Package overlay paints replacement values over the original field
// positions of a document. Patches are planned as pure data, rendered
// onto a transparent-background PDF page with gofpdf, and merged onto
// the original with pdfcpu.
package overlay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/phpdave11/gofpdf"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

const (
	margin      = 2.0
	widthPad    = 10.0
	charWidth   = 6.0
	maxFontSize = 12.0
)

// Patch is one planned substitution in top-origin page coordinates.
type Patch struct {
	FieldType string
	Text      string

	// white rectangle covering the original value
	RectLeft   float64
	RectTop    float64
	RectWidth  float64
	RectHeight float64

	// replacement text baseline
	TextLeft     float64
	TextBaseline float64
	FontSize     float64
}

// Plan computes the patches for every mapping whose field type has a
// non-empty replacement value. Mappings without a value stay untouched
// so an unfilled field is never redacted.
func Plan(mappings []entity.FieldMapping, values map[string]string) []Patch {
	patches := make([]Patch, 0, len(mappings))
	for _, m := range mappings {
		value, ok := values[m.FieldType]
		if !ok || value == "" {
			continue
		}
		height := m.Bottom - m.Top
		width := m.Right - m.Left
		newTextWidth := float64(len([]rune(value))) * charWidth
		if newTextWidth > width {
			width = newTextWidth
		}
		fontSize := 0.8 * height
		if fontSize > maxFontSize {
			fontSize = maxFontSize
		}
		patches = append(patches, Patch{
			FieldType:    m.FieldType,
			Text:         value,
			RectLeft:     m.Left - margin,
			RectTop:      m.Top - margin,
			RectWidth:    width + margin*2 + widthPad,
			RectHeight:   height + margin*2,
			TextLeft:     m.Left,
			TextBaseline: m.Bottom - 0.2*height,
			FontSize:     fontSize,
		})
	}
	return patches
}

// RenderOverlay writes a single-page PDF of the patches at outPath.
// Everything outside the patches stays unpainted so the merge keeps
// the original content visible.
func RenderOverlay(patches []Patch, page entity.PageSize, outPath string) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, p := range patches {
		pdf.SetFillColor(255, 255, 255)
		pdf.Rect(p.RectLeft, p.RectTop, p.RectWidth, p.RectHeight, "F")

		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", p.FontSize)
		pdf.Text(p.TextLeft, p.TextBaseline, tr(p.Text))
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write overlay pdf: %w", err)
	}
	return nil
}

// Apply merges the patches onto page 1 of the PDF at srcPath and
// writes the result to outPath.
func Apply(srcPath, outPath string, patches []Patch, page entity.PageSize, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	tmpDir, err := os.MkdirTemp("", "pocpdf-overlay-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	overlayPath := filepath.Join(tmpDir, "overlay.pdf")
	if err := RenderOverlay(patches, page, overlayPath); err != nil {
		return err
	}

	wm, err := api.PDFWatermark(overlayPath, "pos:bl, off:0 0, scale:1 abs, rot:0", true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("build overlay stamp: %w", err)
	}
	if err := api.AddWatermarksFile(srcPath, outPath, []string{"1"}, wm, nil); err != nil {
		return fmt.Errorf("merge overlay: %w", err)
	}

	logger.Info("overlay.apply.ok", "src", srcPath, "out", outPath, "patches", len(patches))
	return nil
}

// Generate plans and applies the substitutions for srcPath in one
// step and returns the finished PDF.
func Generate(srcPath string, mappings []entity.FieldMapping, values map[string]string, page entity.PageSize, logger *slog.Logger) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "pocpdf-fill-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "filled.pdf")
	if err := Apply(srcPath, outPath, Plan(mappings, values), page, logger); err != nil {
		return nil, err
	}
	return os.ReadFile(outPath)
}

// BaseFromImage wraps an image in a single-page PDF sized to the
// image, so scanned images go through the same overlay path as PDFs.
func BaseFromImage(imagePath string, page entity.PageSize, outPath string) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.ImageOptions(imagePath, 0, 0, page.Width, page.Height, false,
		gofpdf.ImageOptions{ReadDpi: true}, 0, "")
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("image to pdf: %w", err)
	}
	return nil
}

// BaseFromWords lays extracted words back onto a blank page, used for
// DOCX sources where no original PDF exists.
func BaseFromWords(words []entity.PositionedWord, page entity.PageSize, outPath string) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTextColor(0, 0, 0)

	for _, w := range words {
		h := w.Height()
		size := 0.8 * h
		if size > maxFontSize {
			size = maxFontSize
		}
		if size <= 0 {
			size = maxFontSize
		}
		pdf.SetFont("Helvetica", "", size)
		pdf.Text(w.Left, w.Bottom-0.2*h, tr(w.Text))
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("words to pdf: %w", err)
	}
	return nil
}
