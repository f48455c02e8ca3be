package entity

// PositionedWord is a single word extracted from a document page together
// with its bounding box. Coordinates are in page space with the origin at the
// top-left corner. The slice order of extracted words is reading order as
// reported by the extractor; it is not guaranteed to be sorted spatially.
type PositionedWord struct {
	Text   string  `json:"text"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent of the word box.
func (w PositionedWord) Width() float64 { return w.Right - w.Left }

// Height returns the vertical extent of the word box.
func (w PositionedWord) Height() float64 { return w.Bottom - w.Top }

// PageSize holds the dimensions of the first page in points.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CandidateField is a variable field proposed by the field proposer.
// FieldType is a stable identifier unique within one document instance and is
// the join key used by templates, new-value maps and the overlay generator.
type CandidateField struct {
	OriginalValue string `json:"valor_original"`
	FieldType     string `json:"tipo"`
	Label         string `json:"descricao"`
}

/// Normalize applies the documented defaults for missing optional keys:
// an empty FieldType becomes UnknownFieldType and an empty Label falls back
// to the FieldType.
func (c CandidateField) Normalize() CandidateField {
	if c.FieldType == "" {
		c.FieldType = UnknownFieldType
	}
	if c.Label == "" {
		c.Label = c.FieldType
	}
	return c
}

// UnknownFieldType is assigned to candidates the proposer returned without a
// type identifier.
const UnknownFieldType = "CAMPO_DESCONHECIDO"
