package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/extract"
	"github.com/AdielsonMedeiros/POC-PDF/internal/fingerprint"
	"github.com/AdielsonMedeiros/POC-PDF/internal/repository"
	"github.com/AdielsonMedeiros/POC-PDF/internal/template"
)

type fakeExtractor struct {
	result *extract.Result
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ bool) (*extract.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeProposer struct {
	fields    []entity.CandidateField
	err       error
	available bool
	calls     int
}

func (f *fakeProposer) Propose(context.Context, string) ([]entity.CandidateField, error) {
	f.calls++
	return f.fields, f.err
}

func (f *fakeProposer) Available() bool { return f.available }

type fakeRenderer struct {
	out    []byte
	err    error
	method string
	values map[string]string
}

func (f *fakeRenderer) Render(_, method string, _ []entity.PositionedWord, _ []entity.FieldMapping, values map[string]string, _ entity.PageSize) ([]byte, error) {
	f.method = method
	f.values = values
	return f.out, f.err
}

func docResult() *extract.Result {
	return &extract.Result{
		Text: "RECIBO\nCliente: Joao Silva\nValor: R$ 1.500,00",
		Words: []entity.PositionedWord{
			{Text: "RECIBO", Left: 50, Top: 40, Right: 100, Bottom: 54},
			{Text: "Cliente:", Left: 50, Top: 70, Right: 95, Bottom: 82},
			{Text: "Joao", Left: 100, Top: 70, Right: 128, Bottom: 82},
			{Text: "Silva", Left: 132, Top: 70, Right: 162, Bottom: 82},
			{Text: "Valor:", Left: 50, Top: 90, Right: 85, Bottom: 102},
			{Text: "R$", Left: 90, Top: 90, Right: 104, Bottom: 102},
			{Text: "1.500,00", Left: 108, Top: 90, Right: 160, Bottom: 102},
		},
		Page:   entity.PageSize{Width: 612, Height: 792},
		Method: extract.MethodNative,
	}
}

func candidates() []entity.CandidateField {
	return []entity.CandidateField{
		{OriginalValue: "Joao Silva", FieldType: "NOME_CLIENTE", Label: "Nome do Cliente"},
		{OriginalValue: "R$ 1.500,00", FieldType: "VALOR_TOTAL", Label: "Valor Total"},
	}
}

func newTestProcessor(ext *fakeExtractor, prop *fakeProposer, rend Renderer) (*Processor, *template.Cache) {
	cache := template.NewCache(repository.NewMemoryRepository(), nil, 0.75, nil)
	return NewProcessor(ext, cache, prop, rend, nil), cache
}

func TestAnalyzeFreshDocument(t *testing.T) {
	ext := &fakeExtractor{result: docResult()}
	prop := &fakeProposer{fields: candidates(), available: true}
	p, _ := newTestProcessor(ext, prop, nil)

	res, err := p.Analyze(context.Background(), "recibo.pdf", Options{})
	require.NoError(t, err)

	assert.Equal(t, TierLLM, res.Tier)
	assert.Equal(t, extract.MethodNative, res.Method)
	assert.Equal(t, fingerprint.Exact(docResult().Text), res.Fingerprint)
	require.Len(t, res.Mappings, 2)
	assert.Equal(t, "NOME_CLIENTE", res.Mappings[0].FieldType)
	assert.Equal(t, 100.0, res.Mappings[0].Left)
	assert.Equal(t, 162.0, res.Mappings[0].Right)
}

func TestAnalyzeSecondRunHitsCache(t *testing.T) {
	ext := &fakeExtractor{result: docResult()}
	prop := &fakeProposer{fields: candidates(), available: true}
	p, _ := newTestProcessor(ext, prop, nil)

	_, err := p.Analyze(context.Background(), "recibo.pdf", Options{})
	require.NoError(t, err)

	res, err := p.Analyze(context.Background(), "recibo.pdf", Options{})
	require.NoError(t, err)

	assert.Equal(t, string(template.TierExact), res.Tier)
	assert.Equal(t, 1, prop.calls, "proposer must not run on a cache hit")
	require.Len(t, res.Mappings, 2)
}

func TestAnalyzeForceReanalysisSkipsCache(t *testing.T) {
	ext := &fakeExtractor{result: docResult()}
	prop := &fakeProposer{fields: candidates(), available: true}
	p, _ := newTestProcessor(ext, prop, nil)

	_, err := p.Analyze(context.Background(), "recibo.pdf", Options{})
	require.NoError(t, err)

	res, err := p.Analyze(context.Background(), "recibo.pdf", Options{ForceReanalysis: true})
	require.NoError(t, err)

	assert.Equal(t, TierLLM, res.Tier)
	assert.Equal(t, 2, prop.calls)
}

func TestAnalyzeNoCandidatesStoresEmptyTemplate(t *testing.T) {
	ext := &fakeExtractor{result: docResult()}
	prop := &fakeProposer{fields: nil, available: true}
	p, cache := newTestProcessor(ext, prop, nil)

	res, err := p.Analyze(context.Background(), "recibo.pdf", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Mappings)

	// the empty template is cached, so the next run is an exact hit
	tpl, tier, err := cache.Lookup(context.Background(), docResult().Text)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, template.TierExact, tier)
	assert.Empty(t, tpl.Mappings)
}

func TestAnalyzeProposerNotConfigured(t *testing.T) {
	ext := &fakeExtractor{result: docResult()}
	p, _ := newTestProcessor(ext, &fakeProposer{available: false}, nil)

	_, err := p.Analyze(context.Background(), "recibo.pdf", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestAnalyzeProposerFailure(t *testing.T) {
	ext := &fakeExtractor{result: docResult()}
	prop := &fakeProposer{err: errors.New("quota exceeded"), available: true}
	p, _ := newTestProcessor(ext, prop, nil)

	_, err := p.Analyze(context.Background(), "recibo.pdf", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "propose fields")
}

func TestAnalyzeExtractFailurePropagates(t *testing.T) {
	ext := &fakeExtractor{err: common.WrapError(common.ErrUnsupportedFormat, "unsupported format .txt", nil)}
	p, _ := newTestProcessor(ext, &fakeProposer{available: true}, nil)

	_, err := p.Analyze(context.Background(), "nota.txt", Options{})
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
}

func TestAnalyzeTextlessDocumentKeyedByRawBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vazio.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 conteudo binario"), 0o644))

	ext := &fakeExtractor{result: &extract.Result{
		Text:   "   ",
		Page:   entity.PageSize{Width: 612, Height: 792},
		Method: extract.MethodNative,
	}}
	prop := &fakeProposer{available: true}
	p, _ := newTestProcessor(ext, prop, nil)

	res, err := p.Analyze(context.Background(), path, Options{})
	require.NoError(t, err)

	raw, _ := os.ReadFile(path)
	assert.Equal(t, fingerprint.ExactFromBytes(raw), res.Fingerprint)
	assert.Empty(t, res.Mappings)
	assert.Zero(t, prop.calls, "no text means nothing to propose")

	// second run is an exact hit on the raw-bytes fingerprint
	res2, err := p.Analyze(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, string(template.TierExact), res2.Tier)
}

func TestFillRendersOutput(t *testing.T) {
	ext := &fakeExtractor{result: docResult()}
	prop := &fakeProposer{fields: candidates(), available: true}
	rend := &fakeRenderer{out: []byte("%PDF-fake")}
	p, _ := newTestProcessor(ext, prop, rend)

	values := map[string]string{"NOME_CLIENTE": "Maria Souza"}
	out, res, err := p.Fill(context.Background(), "recibo.pdf", values, Options{})
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-fake"), out)
	assert.Equal(t, values, rend.values)
	assert.Equal(t, extract.MethodNative, rend.method)
	require.NotNil(t, res)
	assert.Len(t, res.Mappings, 2)
}

func TestFillWithoutValuesAnalyzesOnly(t *testing.T) {
	ext := &fakeExtractor{result: docResult()}
	prop := &fakeProposer{fields: candidates(), available: true}
	rend := &fakeRenderer{out: []byte("unused")}
	p, _ := newTestProcessor(ext, prop, rend)

	out, res, err := p.Fill(context.Background(), "recibo.pdf", nil, Options{})
	require.NoError(t, err)

	assert.Nil(t, out)
	require.NotNil(t, res)
	assert.Empty(t, rend.method, "renderer must not run without values")
}
