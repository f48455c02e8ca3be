// Package match aligns free-text field values against a positioned-word
// stream to recover bounding boxes. OCR and LLM outputs are both lossy, so
// exact multi-token alignment degrades to best-effort single-token matching
// instead of failing the whole field. Scanning is deterministic: left to
// right over extraction order, first match wins.
package match

import (
	"log/slog"
	"strings"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

// Matcher resolves candidate fields to field mappings.
type Matcher struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// Match resolves each candidate, in order, against the word stream.
// Candidates that cannot be anchored are dropped silently; downstream
// consumers only ever see resolved fields. A candidate whose text occurs more
// than once always resolves to the first occurrence; that ambiguity is
// accepted behavior, not something to second-guess here.
func (m *Matcher) Match(candidates []entity.CandidateField, words []entity.PositionedWord) []entity.FieldMapping {
	mappings := make([]entity.FieldMapping, 0, len(candidates))

	for _, raw := range candidates {
		c := raw.Normalize()
		tokens := strings.Fields(c.OriginalValue)
		if len(tokens) == 0 {
			continue
		}

		mapping, ok := m.matchTokens(c, tokens, words)
		if !ok && len(tokens) == 1 {
			mapping, ok = m.matchSubstring(c, tokens[0], words)
		}
		if !ok {
			m.logger.Debug("match.candidate.unresolved", "field_type", c.FieldType, "value", c.OriginalValue)
			continue
		}
		if !mapping.Valid() {
			m.logger.Debug("match.candidate.zero_area", "field_type", c.FieldType, "value", c.OriginalValue)
			continue
		}
		mappings = append(mappings, mapping)
	}

	return mappings
}

// matchTokens anchors on the first word whose text equals the first token and
// extends the match over consecutive words. A multi-token candidate requires
// every token to line up; a single-token candidate is accepted as soon as the
// anchor is found, even when extension bookkeeping marks it partial.
func (m *Matcher) matchTokens(c entity.CandidateField, tokens []string, words []entity.PositionedWord) (entity.FieldMapping, bool) {
	for i, w := range words {
		if w.Text != tokens[0] {
			continue
		}

		full := true
		box := entity.FieldMapping{
			FieldType:     c.FieldType,
			Label:         c.Label,
			OriginalValue: c.OriginalValue,
			Left:          w.Left,
			Top:           w.Top,
			Right:         w.Right,
			Bottom:        w.Bottom,
		}

		for j := 1; j < len(tokens); j++ {
			if i+j < len(words) && words[i+j].Text == tokens[j] {
				box.Right = words[i+j].Right
				if words[i+j].Bottom > box.Bottom {
					box.Bottom = words[i+j].Bottom
				}
			} else {
				full = false
				break
			}
		}

		if full || len(tokens) == 1 {
			return box, true
		}
	}
	return entity.FieldMapping{}, false
}

// matchSubstring is the fallback for single-token candidates with no exact
// anchor: the first word containing the token, or contained in it, wins.
func (m *Matcher) matchSubstring(c entity.CandidateField, token string, words []entity.PositionedWord) (entity.FieldMapping, bool) {
	for _, w := range words {
		if strings.Contains(w.Text, token) || strings.Contains(token, w.Text) {
			return entity.FieldMapping{
				FieldType:     c.FieldType,
				Label:         c.Label,
				OriginalValue: c.OriginalValue,
				Left:          w.Left,
				Top:           w.Top,
				Right:         w.Right,
				Bottom:        w.Bottom,
			}, true
		}
	}
	return entity.FieldMapping{}, false
}
