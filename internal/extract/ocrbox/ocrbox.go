// Package ocrbox extracts positioned words from scanned documents by
// rasterizing with pdftoppm and reading tesseract's TSV output.
package ocrbox

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang          string  // default "por+eng"
	DPI           int     // rasterization DPI, default 300
	MinConfidence float64 // word confidence cutoff, default 30
}

type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "por+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 30
	}
	return &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// Available reports whether the external OCR binaries can be found.
func (e *Engine) Available() bool {
	if _, err := exec.LookPath(e.cfg.Tesseract); err != nil {
		return false
	}
	if _, err := exec.LookPath(e.cfg.Pdftoppm); err != nil {
		return false
	}
	return true
}

// ExtractPDF rasterizes page 1 of the PDF at path and OCRs it. Word
// boxes are scaled from image pixels back into PDF points using the
// rasterization DPI, so they land in the same top-origin space the
// native text reader produces.
func (e *Engine) ExtractPDF(ctx context.Context, path string) (string, []entity.PositionedWord, entity.PageSize, error) {
	tmpDir, err := os.MkdirTemp("", "pocpdf-ppm-*")
	if err != nil {
		return "", nil, entity.PageSize{}, err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png -f 1 -l 1 <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-png", "-f", "1", "-l", "1", path, prefix)
	if err != nil {
		return "", nil, entity.PageSize{}, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", nil, entity.PageSize{}, fmt.Errorf("pdftoppm produced no images")
	}

	scale := 72.0 / float64(e.cfg.DPI)
	text, words, size, err := e.ocrImage(ctx, matches[0], scale)
	if err != nil {
		return "", nil, entity.PageSize{}, err
	}
	e.logger.Info("extract.ocr.ok", "path", path, "words", len(words), "dpi", e.cfg.DPI)
	return text, words, size, nil
}

// ExtractImage OCRs an image file directly. Coordinates stay in image
// pixel space, with the page size taken from the image dimensions.
func (e *Engine) ExtractImage(ctx context.Context, path string) (string, []entity.PositionedWord, entity.PageSize, error) {
	text, words, size, err := e.ocrImage(ctx, path, 1.0)
	if err != nil {
		return "", nil, entity.PageSize{}, err
	}
	e.logger.Info("extract.ocr.ok", "path", path, "words", len(words))
	return text, words, size, nil
}

func (e *Engine) ocrImage(ctx context.Context, path string, scale float64) (string, []entity.PositionedWord, entity.PageSize, error) {
	// tesseract <img> stdout -l por+eng --psm 6 tsv
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract,
		path, "stdout", "-l", e.cfg.Lang, "--psm", "6", "tsv")
	if err != nil {
		return "", nil, entity.PageSize{}, fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}

	words := parseTSV(string(out), e.cfg.MinConfidence, scale)

	size := imageSize(path, scale)
	if size.Width == 0 {
		for _, w := range words {
			if w.Right > size.Width {
				size.Width = w.Right
			}
			if w.Bottom > size.Height {
				size.Height = w.Bottom
			}
		}
	}

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " "), words, size, nil
}

// parseTSV walks tesseract's 12-column TSV output and keeps word rows
// (left, top, width, height in columns 7-10, confidence in 11) whose
// confidence reaches minConf.
func parseTSV(tsv string, minConf, scale float64) []entity.PositionedWord {
	var words []entity.PositionedWord
	lines := strings.Split(tsv, "\n")
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue // skip header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < minConf {
			continue
		}
		left, err1 := strconv.ParseFloat(cols[6], 64)
		top, err2 := strconv.ParseFloat(cols[7], 64)
		width, err3 := strconv.ParseFloat(cols[8], 64)
		height, err4 := strconv.ParseFloat(cols[9], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		words = append(words, entity.PositionedWord{
			Text:   text,
			Left:   left * scale,
			Top:    top * scale,
			Right:  (left + width) * scale,
			Bottom: (top + height) * scale,
		})
	}
	return words
}

func imageSize(path string, scale float64) entity.PageSize {
	f, err := os.Open(path)
	if err != nil {
		return entity.PageSize{}
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return entity.PageSize{}
	}
	return entity.PageSize{Width: float64(cfg.Width) * scale, Height: float64(cfg.Height) * scale}
}
