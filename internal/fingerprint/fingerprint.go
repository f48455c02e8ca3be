// Package fingerprint derives cache keys from document text. Two identifiers
// are computed per document: an exact fingerprint, a hash of the text with
// all variable digits stripped, and a similarity key, a normalized text used
// as embedding input for nearest-neighbor template lookup.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	reDigits   = regexp.MustCompile(`\d+`)
	reCurrency = regexp.MustCompile(`R\$\s*[\d.,]+`)
)

// Exact strips every digit run and every currency amount from the text and
// hashes the remaining skeleton. Two documents produced from the same
// template with different variable values collapse to the same value.
// Pure function: identical input always yields identical output.
func Exact(text string) string {
	skeleton := reDigits.ReplaceAllString(text, "")
	skeleton = reCurrency.ReplaceAllString(skeleton, "")
	return shortMD5([]byte(skeleton))
}

// ExactFromBytes is the fallback fingerprint for documents whose text could
// not be extracted: a hash of the raw file content.
func ExactFromBytes(content []byte) string {
	return shortMD5(content)
}

func shortMD5(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])[:16]
}

// Step is one substitution in the similarity-key pipeline.
type Step struct {
	Name        string
	Pattern     *regexp.Regexp
	Placeholder string
}

// Steps is the ordered substitution pipeline applied by SimilarityKey.
// The order is normative: compound patterns that contain digits (currency,
// dates, CPF/CNPJ, phone numbers) must run before the plain digit-run rule,
// otherwise the digit rule consumes their digits and the placeholders never
// apply. CNPJ runs before CPF because a CPF-shaped substring occurs inside
// every CNPJ.
var Steps = []Step{
	{"currency", regexp.MustCompile(`R\$\s*[\d.,]+`), " VALOR "},
	{"date", regexp.MustCompile(`\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}`), " DATA "},
	{"cnpj", regexp.MustCompile(`\d{2}[.\s]?\d{3}[.\s]?\d{3}[/.\s]?\d{4}[-.\s]?\d{2}`), " CNPJ "},
	{"cpf", regexp.MustCompile(`\d{3}[.\s]?\d{3}[.\s]?\d{3}[-.\s]?\d{2}`), " CPF "},
	{"email", regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`), " EMAIL "},
	{"phone", regexp.MustCompile(`\(?\d{2}\)?\s*\d{4,5}[-.\s]?\d{4}`), " TELEFONE "},
	{"number", regexp.MustCompile(`\d+`), " NUM "},
}

var reSpace = regexp.MustCompile(`\s+`)

// SimilarityKey replaces volatile data with category placeholders, collapses
// whitespace and lower-cases the result. The output for two documents from
// the same template is identical even when their variable values differ in
// length or digit count, which the exact fingerprint cannot tolerate.
func SimilarityKey(text string) string {
	for _, step := range Steps {
		text = step.Pattern.ReplaceAllString(text, step.Placeholder)
	}
	text = reSpace.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}
