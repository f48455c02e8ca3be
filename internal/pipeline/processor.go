// Package processor orchestrates the document stages: extract text,
// consult the template cache, propose fields on a miss, match them to
// coordinates, store the resulting template, and optionally render a
// filled copy.
package processor

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/extract"
	"github.com/AdielsonMedeiros/POC-PDF/internal/fingerprint"
	"github.com/AdielsonMedeiros/POC-PDF/internal/match"
	"github.com/AdielsonMedeiros/POC-PDF/internal/propose"
	"github.com/AdielsonMedeiros/POC-PDF/internal/template"
)

// TierLLM marks a template built fresh by the proposer, as opposed to
// one served from either cache tier.
const TierLLM = "llm"

// Options tune a single Analyze or Fill run.
type Options struct {
	ForceOCR        bool
	ForceReanalysis bool

	TemplateName        *string
	TemplateDescription *string
}

// AnalyzeResult is the outcome of analyzing one document.
type AnalyzeResult struct {
	Fingerprint string                `json:"fingerprint"`
	Tier        string                `json:"tier"`
	Method      string                `json:"method"`
	Mappings    []entity.FieldMapping `json:"mappings"`
	Page        entity.PageSize       `json:"page"`

	words []entity.PositionedWord
}

// Extractor is the text extraction stage, satisfied by
// extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, path string, forceOCR bool) (*extract.Result, error)
}

// TemplateCache is the cache facade surface the processor needs,
// satisfied by template.Cache.
type TemplateCache interface {
	Lookup(ctx context.Context, fullText string) (*entity.Template, template.LookupTier, error)
	Store(ctx context.Context, fullText string, mappings []entity.FieldMapping, name, description *string) (string, error)
	LookupExact(ctx context.Context, fp string) (*entity.Template, template.LookupTier, error)
	StoreExact(ctx context.Context, fp string, mappings []entity.FieldMapping, name, description *string) error
}

// Renderer produces the filled document, satisfied by PDFRenderer.
type Renderer interface {
	Render(srcPath, method string, words []entity.PositionedWord, mappings []entity.FieldMapping, values map[string]string, page entity.PageSize) ([]byte, error)
}

type Processor struct {
	extractor Extractor
	cache     TemplateCache
	proposer  propose.FieldProposer
	matcher   *match.Matcher
	renderer  Renderer
	logger    *slog.Logger
}

func NewProcessor(extractor Extractor, cache TemplateCache, proposer propose.FieldProposer, renderer Renderer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		extractor: extractor,
		cache:     cache,
		proposer:  proposer,
		matcher:   match.New(logger),
		renderer:  renderer,
		logger:    logger,
	}
}

// Analyze resolves the field mappings for the document at path, from
// cache when possible, otherwise by proposing and matching fields and
// storing the new template.
func (p *Processor) Analyze(ctx context.Context, path string, opts Options) (*AnalyzeResult, error) {
	res, err := p.extractor.Extract(ctx, path, opts.ForceOCR)
	if err != nil {
		return nil, err
	}
	p.logger.Info("pipeline.extract.ok", "path", path, "method", res.Method, "words", len(res.Words))

	// Documents with no extractable text are keyed by raw content.
	textless := strings.TrimSpace(res.Text) == ""
	fp := ""
	if textless {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		fp = fingerprint.ExactFromBytes(raw)
	} else {
		fp = fingerprint.Exact(res.Text)
	}

	if !opts.ForceReanalysis {
		tpl, tier, err := p.lookup(ctx, res.Text, fp, textless)
		if err != nil {
			return nil, err
		}
		if tpl != nil {
			return &AnalyzeResult{
				Fingerprint: tpl.Fingerprint,
				Tier:        string(tier),
				Method:      res.Method,
				Mappings:    tpl.Mappings,
				Page:        res.Page,
				words:       res.Words,
			}, nil
		}
	}

	mappings, err := p.buildTemplate(ctx, res)
	if err != nil {
		return nil, err
	}

	if textless {
		err = p.cache.StoreExact(ctx, fp, mappings, opts.TemplateName, opts.TemplateDescription)
	} else {
		fp, err = p.cache.Store(ctx, res.Text, mappings, opts.TemplateName, opts.TemplateDescription)
	}
	if err != nil {
		return nil, err
	}

	return &AnalyzeResult{
		Fingerprint: fp,
		Tier:        TierLLM,
		Method:      res.Method,
		Mappings:    mappings,
		Page:        res.Page,
		words:       res.Words,
	}, nil
}

func (p *Processor) lookup(ctx context.Context, fullText, fp string, textless bool) (*entity.Template, template.LookupTier, error) {
	if textless {
		return p.cache.LookupExact(ctx, fp)
	}
	return p.cache.Lookup(ctx, fullText)
}

// buildTemplate runs the proposer and anchors its candidates to word
// coordinates. No candidates or no anchored matches is a valid empty
// template, not an error.
func (p *Processor) buildTemplate(ctx context.Context, res *extract.Result) ([]entity.FieldMapping, error) {
	if strings.TrimSpace(res.Text) == "" {
		p.logger.Warn("pipeline.propose.skipped", "reason", "no text")
		return []entity.FieldMapping{}, nil
	}
	if p.proposer == nil || !p.proposer.Available() {
		return nil, common.WrapError(common.ErrInternal, "field proposer not configured", nil)
	}

	candidates, err := p.proposer.Propose(ctx, res.Text)
	if err != nil {
		return nil, common.WrapError(common.ErrInternal, "propose fields", err)
	}
	p.logger.Info("pipeline.propose.ok", "candidates", len(candidates))

	mappings := p.matcher.Match(candidates, res.Words)
	p.logger.Info("pipeline.match.ok", "candidates", len(candidates), "anchored", len(mappings))
	return mappings, nil
}

// Fill analyzes the document and renders a copy with newValues painted
// over the mapped fields. With no values it only analyzes.
func (p *Processor) Fill(ctx context.Context, path string, newValues map[string]string, opts Options) ([]byte, *AnalyzeResult, error) {
	result, err := p.Analyze(ctx, path, opts)
	if err != nil {
		return nil, nil, err
	}
	if len(newValues) == 0 {
		return nil, result, nil
	}

	out, err := p.renderer.Render(path, result.Method, result.words, result.Mappings, newValues, result.Page)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Info("pipeline.fill.ok", "path", path, "fields", len(result.Mappings), "bytes", len(out))
	return out, result, nil
}
