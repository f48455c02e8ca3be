package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

type fakeOCR struct {
	available bool
	text      string
	words     []entity.PositionedWord
	page      entity.PageSize
	err       error
	pdfCalls  int
	imgCalls  int
}

func (f *fakeOCR) ExtractPDF(context.Context, string) (string, []entity.PositionedWord, entity.PageSize, error) {
	f.pdfCalls++
	return f.text, f.words, f.page, f.err
}

func (f *fakeOCR) ExtractImage(context.Context, string) (string, []entity.PositionedWord, entity.PageSize, error) {
	f.imgCalls++
	return f.text, f.words, f.page, f.err
}

func (f *fakeOCR) Available() bool { return f.available }

func nativeStub(text string, words []entity.PositionedWord, err error) nativePDF {
	return func(string) (string, []entity.PositionedWord, entity.PageSize, error) {
		return text, words, entity.PageSize{Width: 612, Height: 792}, err
	}
}

func TestExtractNativePDF(t *testing.T) {
	ocr := &fakeOCR{available: true}
	e := NewExtractor(ocr, 50, nil)
	e.native = nativeStub(strings.Repeat("texto nativo ", 20), []entity.PositionedWord{{Text: "texto"}}, nil)

	res, err := e.Extract(context.Background(), "contrato.pdf", false)
	require.NoError(t, err)

	assert.Equal(t, MethodNative, res.Method)
	assert.Zero(t, ocr.pdfCalls)
	assert.Equal(t, 612.0, res.Page.Width)
}

func TestExtractScannedPDFGoesToOCR(t *testing.T) {
	ocr := &fakeOCR{
		available: true,
		text:      "RECIBO 123",
		words:     []entity.PositionedWord{{Text: "RECIBO"}, {Text: "123"}},
		page:      entity.PageSize{Width: 612, Height: 792},
	}
	e := NewExtractor(ocr, 50, nil)
	e.native = nativeStub("x", nil, nil) // almost no native text

	res, err := e.Extract(context.Background(), "scan.pdf", false)
	require.NoError(t, err)

	assert.Equal(t, MethodPDFOCR, res.Method)
	assert.Equal(t, "RECIBO 123", res.Text)
	assert.Equal(t, 1, ocr.pdfCalls)
}

func TestExtractForceOCR(t *testing.T) {
	ocr := &fakeOCR{available: true, text: "ocr", page: entity.PageSize{Width: 1, Height: 1}}
	e := NewExtractor(ocr, 50, nil)
	e.native = nativeStub(strings.Repeat("plenty of native text ", 10), nil, nil)

	res, err := e.Extract(context.Background(), "doc.pdf", true)
	require.NoError(t, err)

	assert.Equal(t, MethodPDFOCR, res.Method)
	assert.Equal(t, 1, ocr.pdfCalls)
}

func TestExtractScannedWithoutTesseractFallsBack(t *testing.T) {
	e := NewExtractor(&fakeOCR{available: false}, 50, nil)
	e.native = nativeStub("pouco", []entity.PositionedWord{{Text: "pouco"}}, nil)

	res, err := e.Extract(context.Background(), "scan.pdf", false)
	require.NoError(t, err)

	assert.Equal(t, MethodNative, res.Method)
	assert.Equal(t, "pouco", res.Text)
}

func TestExtractOCRFailureFallsBackToNative(t *testing.T) {
	ocr := &fakeOCR{available: true, err: errors.New("tesseract crashed")}
	e := NewExtractor(ocr, 50, nil)
	e.native = nativeStub("pouco texto", nil, nil)

	res, err := e.Extract(context.Background(), "scan.pdf", false)
	require.NoError(t, err)
	assert.Equal(t, MethodNative, res.Method)
}

func TestExtractPDFBothPathsFail(t *testing.T) {
	ocr := &fakeOCR{available: true, err: errors.New("no pages rendered")}
	e := NewExtractor(ocr, 50, nil)
	e.native = nativeStub("", nil, errors.New("broken xref"))

	_, err := e.Extract(context.Background(), "broken.pdf", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestExtractImageRequiresTesseract(t *testing.T) {
	e := NewExtractor(&fakeOCR{available: false}, 50, nil)

	_, err := e.Extract(context.Background(), "foto.jpg", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestExtractImageRouting(t *testing.T) {
	ocr := &fakeOCR{available: true, text: "NOTA", page: entity.PageSize{Width: 800, Height: 600}}
	e := NewExtractor(ocr, 50, nil)

	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.bmp", "e.tiff", "f.tif"} {
		res, err := e.Extract(context.Background(), name, false)
		require.NoError(t, err, name)
		assert.Equal(t, MethodImageOCR, res.Method, name)
	}
	assert.Equal(t, 6, ocr.imgCalls)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := NewExtractor(&fakeOCR{available: true}, 50, nil)

	for _, name := range []string{"planilha.xlsx", "texto.txt", "sem_extensao"} {
		_, err := e.Extract(context.Background(), name, false)
		assert.ErrorIs(t, err, common.ErrUnsupportedFormat, name)
	}
}

func TestLooksScanned(t *testing.T) {
	assert.True(t, looksScanned("", 50))
	assert.True(t, looksScanned("   \n\t  ", 50))
	assert.True(t, looksScanned(strings.Repeat("a ", 24), 50)) // 24 chars
	assert.False(t, looksScanned(strings.Repeat("a", 50), 50))
	assert.False(t, looksScanned(strings.Repeat("palavra ", 20), 50))
}
