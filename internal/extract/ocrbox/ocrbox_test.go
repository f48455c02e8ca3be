package ocrbox

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"

func tsvRow(left, top, width, height int, conf float64, text string) string {
	return fmt.Sprintf("5\t1\t1\t1\t1\t1\t%d\t%d\t%d\t%d\t%.2f\t%s", left, top, width, height, conf, text)
}

func TestParseTSV(t *testing.T) {
	tsv := strings.Join([]string{
		tsvHeader,
		"1\t1\t0\t0\t0\t0\t0\t0\t2480\t3508\t-1\t", // page level row
		tsvRow(100, 200, 300, 50, 96.5, "RECIBO"),
		tsvRow(420, 200, 150, 50, 12.0, "ru1do"), // below cutoff
		tsvRow(600, 200, 100, 50, 88.0, "R$"),
		tsvRow(0, 0, 0, 0, 95.0, "  "), // whitespace only
		"",
	}, "\n")

	words := parseTSV(tsv, 30, 1.0)

	require.Len(t, words, 2)
	assert.Equal(t, "RECIBO", words[0].Text)
	assert.Equal(t, 100.0, words[0].Left)
	assert.Equal(t, 200.0, words[0].Top)
	assert.Equal(t, 400.0, words[0].Right)
	assert.Equal(t, 250.0, words[0].Bottom)
	assert.Equal(t, "R$", words[1].Text)
}

func TestParseTSVScaling(t *testing.T) {
	tsv := tsvHeader + "\n" + tsvRow(1000, 2000, 500, 100, 90, "palavra")

	words := parseTSV(tsv, 30, 72.0/300.0)

	require.Len(t, words, 1)
	assert.InDelta(t, 240, words[0].Left, 0.01)
	assert.InDelta(t, 480, words[0].Top, 0.01)
	assert.InDelta(t, 360, words[0].Right, 0.01)
	assert.InDelta(t, 504, words[0].Bottom, 0.01)
}

func TestParseTSVMalformedRows(t *testing.T) {
	tsv := strings.Join([]string{
		tsvHeader,
		"garbage line",
		"5\t1\t1\t1\t1\t1\tx\ty\tw\th\t90\tword",
		tsvRow(10, 10, 20, 10, 90, "ok"),
	}, "\n")

	words := parseTSV(tsv, 30, 1.0)
	require.Len(t, words, 1)
	assert.Equal(t, "ok", words[0].Text)
}

// fakeRunner simulates pdftoppm and tesseract.
type fakeRunner struct {
	tsv      string
	imgW     int
	imgH     int
	ppmErr   error
	tessErr  error
	commands []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.commands = append(f.commands, name+" "+strings.Join(args, " "))
	switch {
	case strings.Contains(name, "pdftoppm"):
		if f.ppmErr != nil {
			return nil, []byte("rasterize failed"), f.ppmErr
		}
		prefix := args[len(args)-1]
		img := image.NewRGBA(image.Rect(0, 0, f.imgW, f.imgH))
		out, err := os.Create(prefix + "-1.png")
		if err != nil {
			return nil, nil, err
		}
		defer out.Close()
		return nil, nil, png.Encode(out, img)
	case strings.Contains(name, "tesseract"):
		if f.tessErr != nil {
			return nil, []byte("ocr failed"), f.tessErr
		}
		return []byte(f.tsv), nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected command %q", name)
}

func TestExtractPDF(t *testing.T) {
	tsv := strings.Join([]string{
		tsvHeader,
		tsvRow(500, 1000, 250, 50, 95, "CONTRATO"),
		tsvRow(800, 1000, 250, 50, 91, "DE"),
	}, "\n")
	runner := &fakeRunner{tsv: tsv, imgW: 2550, imgH: 3300}
	engine := NewEngine(Config{DPI: 300}, nil)
	engine.runner = runner

	text, words, size, err := engine.ExtractPDF(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, "CONTRATO DE", text)
	require.Len(t, words, 2)
	assert.InDelta(t, 120, words[0].Left, 0.01)
	assert.InDelta(t, 240, words[0].Top, 0.01)

	// 2550x3300 px at 300 DPI is a Letter page in points
	assert.InDelta(t, 612, size.Width, 0.01)
	assert.InDelta(t, 792, size.Height, 0.01)

	require.Len(t, runner.commands, 2)
	assert.Contains(t, runner.commands[0], "-r 300 -png -f 1 -l 1 doc.pdf")
	assert.Contains(t, runner.commands[1], "stdout -l por+eng --psm 6 tsv")
}

func TestExtractPDFRasterizeFailure(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	engine.runner = &fakeRunner{ppmErr: fmt.Errorf("exit status 1")}

	_, _, _, err := engine.ExtractPDF(context.Background(), "doc.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftoppm")
}

func TestExtractImage(t *testing.T) {
	dir := t.TempDir()
	imgPath := dir + "/scan.png"
	out, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, image.NewRGBA(image.Rect(0, 0, 800, 600))))
	require.NoError(t, out.Close())

	tsv := tsvHeader + "\n" + tsvRow(40, 60, 120, 30, 85, "NOTA")
	engine := NewEngine(Config{}, nil)
	engine.runner = &fakeRunner{tsv: tsv}

	text, words, size, err := engine.ExtractImage(context.Background(), imgPath)
	require.NoError(t, err)

	assert.Equal(t, "NOTA", text)
	require.Len(t, words, 1)
	// image coordinates pass through unscaled
	assert.Equal(t, 40.0, words[0].Left)
	assert.Equal(t, 160.0, words[0].Right)
	assert.Equal(t, 800.0, size.Width)
	assert.Equal(t, 600.0, size.Height)
}

func TestConfigDefaults(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	assert.Equal(t, "pdftoppm", engine.cfg.Pdftoppm)
	assert.Equal(t, "tesseract", engine.cfg.Tesseract)
	assert.Equal(t, "por+eng", engine.cfg.Lang)
	assert.Equal(t, 300, engine.cfg.DPI)
	assert.Equal(t, 30.0, engine.cfg.MinConfidence)
}
