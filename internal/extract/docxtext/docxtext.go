// Package docxtext extracts text from DOCX files. DOCX has no page
// geometry at this level, so word coordinates are synthesized by laying
// the text out on a virtual A4 page; the boxes are stable enough for
// field mapping even though they do not match the rendered document.
package docxtext

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

// A4 in PDF points.
var A4 = entity.PageSize{Width: 595, Height: 842}

const (
	marginLeft     = 50.0
	marginTop      = 50.0
	charWidth      = 7.0
	wordHeight     = 12.0
	wordGap        = 5.0
	wrapAt         = 500.0
	wrapAdvance    = 15.0
	paragraphSpace = 20.0
	rowSpace       = 15.0
)

type document struct {
	Body body `xml:"body"`
}

type body struct {
	Paragraphs []paragraph `xml:"p"`
	Tables     []table     `xml:"tbl"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Texts []string `xml:"t"`
}

type table struct {
	Rows []tableRow `xml:"tr"`
}

type tableRow struct {
	Cells []tableCell `xml:"tc"`
}

type tableCell struct {
	Paragraphs []paragraph `xml:"p"`
}

// Extract reads the main document part of the DOCX at path.
func Extract(path string) (string, []entity.PositionedWord, entity.PageSize, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, A4, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	var doc document
	found := false
	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, A4, fmt.Errorf("open document part: %w", err)
		}
		err = xml.NewDecoder(rc).Decode(&doc)
		rc.Close()
		if err != nil {
			return "", nil, A4, fmt.Errorf("parse document part: %w", err)
		}
		found = true
		break
	}
	if !found {
		return "", nil, A4, fmt.Errorf("docx has no word/document.xml")
	}

	l := layout{x: marginLeft, y: marginTop}
	var text strings.Builder

	for _, p := range doc.Body.Paragraphs {
		t := strings.TrimSpace(paragraphText(p))
		if t == "" {
			continue
		}
		text.WriteString(t)
		text.WriteByte('\n')
		l.placeWords(t)
		l.endParagraph()
	}

	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			for _, cell := range row.Cells {
				var cellText strings.Builder
				for _, p := range cell.Paragraphs {
					cellText.WriteString(paragraphText(p))
					cellText.WriteByte(' ')
				}
				t := strings.TrimSpace(cellText.String())
				if t == "" {
					continue
				}
				text.WriteString(t)
				text.WriteByte(' ')
				l.placeWords(t)
			}
			l.endRow()
		}
	}

	return strings.TrimSpace(text.String()), l.words, A4, nil
}

func paragraphText(p paragraph) string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Texts {
			b.WriteString(t)
		}
	}
	return b.String()
}

// layout flows words across the virtual page.
type layout struct {
	x, y  float64
	words []entity.PositionedWord
}

func (l *layout) placeWords(text string) {
	for _, w := range strings.Fields(text) {
		width := float64(len([]rune(w))) * charWidth
		l.words = append(l.words, entity.PositionedWord{
			Text:   w,
			Left:   l.x,
			Top:    l.y,
			Right:  l.x + width,
			Bottom: l.y + wordHeight,
		})
		l.x += width + wordGap
		if l.x > wrapAt {
			l.x = marginLeft
			l.y += wrapAdvance
		}
	}
}

func (l *layout) endParagraph() {
	l.y += paragraphSpace
	l.x = marginLeft
}

func (l *layout) endRow() {
	l.y += rowSpace
	l.x = marginLeft
}
