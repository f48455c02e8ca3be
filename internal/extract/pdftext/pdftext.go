// Package pdftext reads the native text layer of a PDF and reassembles
// positioned words from the page's raw text fragments.
package pdftext

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

const (
	defaultFontSize = 12.0
	lineTolerance   = 2.0
)

// Letter is the page size assumed when the document declares none.
var Letter = entity.PageSize{Width: 612, Height: 792}

// Extract reads page 1 of the PDF at path and returns its plain text
// plus positioned words in top-origin page coordinates.
func Extract(path string) (text string, words []entity.PositionedWord, page entity.PageSize, err error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", nil, Letter, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	if reader.NumPage() == 0 {
		return "", nil, Letter, nil
	}

	p := reader.Page(1)
	if p.V.IsNull() {
		return "", nil, Letter, nil
	}

	page = pageSize(p, path)

	frags, err := pageFragments(p)
	if err != nil {
		return "", nil, page, err
	}

	words = groupWords(frags, page.Height)
	text = plainText(words)
	return text, words, page, nil
}

// pageFragments pulls the raw positioned fragments off the page. The
// parser panics on some malformed content streams, so recover into an
// error instead of taking the process down.
func pageFragments(p pdf.Page) (frags []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf content: %v", r)
		}
	}()
	frags = p.Content().Text
	return frags, nil
}

func pageSize(p pdf.Page, path string) entity.PageSize {
	if size, ok := mediaBoxSize(p); ok {
		return size
	}
	if dims, err := api.PageDimsFile(path); err == nil && len(dims) > 0 {
		return entity.PageSize{Width: dims[0].Width, Height: dims[0].Height}
	}
	return Letter
}

func mediaBoxSize(p pdf.Page) (entity.PageSize, bool) {
	defer func() { recover() }()
	box := p.V.Key("MediaBox")
	if box.IsNull() || box.Len() != 4 {
		return entity.PageSize{}, false
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return entity.PageSize{}, false
	}
	return entity.PageSize{Width: w, Height: h}, true
}

// groupWords merges adjacent fragments into words. Fragments arrive in
// content-stream order, so they are first sorted into reading order
// (top to bottom in the PDF's bottom-origin space, then left to right).
// A word breaks on whitespace, on a line change, or on a horizontal gap
// wider than a fraction of the font size.
func groupWords(frags []pdf.Text, pageHeight float64) []entity.PositionedWord {
	kept := make([]pdf.Text, 0, len(frags))
	for _, f := range frags {
		if f.S == "" {
			continue
		}
		kept = append(kept, f)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if diff := kept[i].Y - kept[j].Y; diff > lineTolerance || diff < -lineTolerance {
			return kept[i].Y > kept[j].Y
		}
		return kept[i].X < kept[j].X
	})

	var words []entity.PositionedWord
	var cur *wordBuilder
	flush := func() {
		if cur != nil {
			if w, ok := cur.build(pageHeight); ok {
				words = append(words, w)
			}
			cur = nil
		}
	}

	for _, f := range kept {
		if strings.TrimSpace(f.S) == "" {
			flush()
			continue
		}
		for _, piece := range splitFragment(f) {
			if cur != nil && !cur.accepts(piece) {
				flush()
			}
			if cur == nil {
				cur = &wordBuilder{first: piece}
			}
			cur.add(piece)
		}
	}
	flush()
	return words
}

type wordBuilder struct {
	first pdf.Text
	text  strings.Builder
	right float64
}

func (b *wordBuilder) accepts(f pdf.Text) bool {
	if diff := f.Y - b.first.Y; diff > lineTolerance || diff < -lineTolerance {
		return false
	}
	gap := f.X - b.right
	limit := 0.3 * fontSize(b.first)
	if limit < 1 {
		limit = 1
	}
	return gap <= limit
}

func (b *wordBuilder) add(f pdf.Text) {
	if b.text.Len() == 0 {
		b.right = f.X
	}
	b.text.WriteString(f.S)
	if end := f.X + f.W; end > b.right {
		b.right = end
	}
}

func (b *wordBuilder) build(pageHeight float64) (entity.PositionedWord, bool) {
	s := strings.TrimSpace(b.text.String())
	if s == "" {
		return entity.PositionedWord{}, false
	}
	h := fontSize(b.first)
	return entity.PositionedWord{
		Text:   s,
		Left:   b.first.X,
		Top:    pageHeight - (b.first.Y + h),
		Right:  b.right,
		Bottom: pageHeight - b.first.Y,
	}, true
}

// splitFragment breaks a fragment containing internal whitespace into
// sub-fragments, distributing its width proportionally over the runes.
func splitFragment(f pdf.Text) []pdf.Text {
	if !strings.ContainsAny(f.S, " \t") {
		return []pdf.Text{f}
	}
	runes := []rune(f.S)
	perRune := f.W / float64(len(runes))

	var out []pdf.Text
	start := -1
	emit := func(end int) {
		if start < 0 {
			return
		}
		sub := f
		sub.S = string(runes[start:end])
		sub.X = f.X + float64(start)*perRune
		sub.W = float64(end-start) * perRune
		out = append(out, sub)
		start = -1
	}
	for i, r := range runes {
		if r == ' ' || r == '\t' {
			emit(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	emit(len(runes))
	return out
}

// plainText rebuilds a readable text stream from positioned words,
// inserting newlines at line changes.
func plainText(words []entity.PositionedWord) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			if sameLine(words[i-1], w) {
				b.WriteByte(' ')
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(w.Text)
	}
	return b.String()
}

func sameLine(a, b entity.PositionedWord) bool {
	diff := a.Top - b.Top
	return diff <= lineTolerance && diff >= -lineTolerance
}

func fontSize(f pdf.Text) float64 {
	if f.FontSize > 0 {
		return f.FontSize
	}
	return defaultFontSize
}
