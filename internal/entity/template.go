package entity

import "time"

// FieldMapping is a resolved candidate field: the original text span plus the
// bounding box it occupies on the page. It is the atomic unit persisted in a
// template and consumed by the overlay generator.
type FieldMapping struct {
	FieldType     string  `json:"tipo"`
	Label         string  `json:"descricao"`
	OriginalValue string  `json:"texto_original"`
	Left          float64 `json:"left"`
	Top           float64 `json:"top"`
	Right         float64 `json:"right"`
	Bottom        float64 `json:"bottom"`
}

// Valid reports whether the mapping's box has positive area. Zero-area boxes
// are dropped before persistence, never stored.
func (m FieldMapping) Valid() bool {
	return m.Right > m.Left && m.Bottom > m.Top
}

// Template is the persisted set of field mappings for one document structure,
// keyed by the structural fingerprint. Saving again for the same fingerprint
// replaces the whole mapping set.
type Template struct {
	ID          int64          `json:"id"`
	Fingerprint string         `json:"fingerprint"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	FieldCount  int            `json:"field_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Mappings    []FieldMapping `json:"mappings"`
}
