// Package institutions detects which financial institution issued an uploaded
// statement, maps its column headers onto canonical position fields and tags
// rows with an asset type. Everything here is pure: no I/O, no logging and no
// mutable package state, so every function is safe for concurrent use.
package institutions

import "strings"

// CanonicalField is one of the normalized fields understood by the importer.
type CanonicalField string

const (
	FieldSymbol        CanonicalField = "symbol"
	FieldQuantity      CanonicalField = "quantity"
	FieldPurchasePrice CanonicalField = "purchasePrice"
	FieldCurrentValue  CanonicalField = "currentValue"
	FieldDescription   CanonicalField = "description"
	FieldPurchaseDate  CanonicalField = "purchaseDate"
	FieldCostBasis     CanonicalField = "costBasis"
)

// CanonicalFields lists every canonical field in mapping order.
var CanonicalFields = []CanonicalField{
	FieldSymbol,
	FieldQuantity,
	FieldPurchasePrice,
	FieldCurrentValue,
	FieldDescription,
	FieldPurchaseDate,
	FieldCostBasis,
}

// Valid reports whether f belongs to the canonical field set.
func (f CanonicalField) Valid() bool {
	for _, c := range CanonicalFields {
		if c == f {
			return true
		}
	}
	return false
}

// Row is one parsed line of an uploaded file, keyed by column header.
type Row map[string]string

// FieldKeywords pairs a canonical field with the lowercase fragments that
// suggest a header belongs to it.
type FieldKeywords struct {
	Field    CanonicalField
	Keywords []string
}

// KeywordTable is an ordered keyword dictionary. Matching is first-match-wins
// so the order of entries is part of the contract.
type KeywordTable []FieldKeywords

// For returns the keywords registered for field, or nil.
func (t KeywordTable) For(field CanonicalField) []string {
	for _, fk := range t {
		if fk.Field == field {
			return fk.Keywords
		}
	}
	return nil
}

// Only returns a table restricted to field.
func (t KeywordTable) Only(field CanonicalField) KeywordTable {
	return KeywordTable{{Field: field, Keywords: t.For(field)}}
}

// GenericFieldKeywords is used when no institution was detected or when a
// template does not cover a field.
var GenericFieldKeywords = KeywordTable{
	{Field: FieldSymbol, Keywords: []string{"symbol", "ticker", "cusip", "security id"}},
	{Field: FieldQuantity, Keywords: []string{"quantity", "qty", "shares", "units", "share count"}},
	{Field: FieldPurchasePrice, Keywords: []string{"purchase price", "cost per share", "average cost", "avg cost", "unit price", "share price", "price"}},
	{Field: FieldCurrentValue, Keywords: []string{"current value", "market value", "total value", "value", "balance"}},
	{Field: FieldDescription, Keywords: []string{"description", "security name", "investment name", "name"}},
	{Field: FieldPurchaseDate, Keywords: []string{"purchase date", "date acquired", "acquired", "open date", "trade date"}},
	{Field: FieldCostBasis, Keywords: []string{"cost basis", "total cost", "basis"}},
}

// ColumnMapping maps canonical fields to the header found in the uploaded
// file. A field missing from the map is unmapped.
type ColumnMapping map[CanonicalField]string

// Missing returns the given fields that have no header assigned.
func (m ColumnMapping) Missing(fields ...CanonicalField) []CanonicalField {
	var missing []CanonicalField
	for _, f := range fields {
		if _, ok := m[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// HasRequired reports whether the mapping can produce a position: a symbol
// plus either a quantity or a current value.
func (m ColumnMapping) HasRequired() bool {
	if _, ok := m[FieldSymbol]; !ok {
		return false
	}
	_, qty := m[FieldQuantity]
	_, value := m[FieldCurrentValue]
	return qty || value
}

// RequiredMissing lists what HasRequired needs but the mapping lacks.
func (m ColumnMapping) RequiredMissing() []CanonicalField {
	missing := append([]CanonicalField{}, m.Missing(FieldSymbol)...)
	if len(m.Missing(FieldQuantity, FieldCurrentValue)) == 2 {
		missing = append(missing, FieldQuantity)
	}
	return missing
}

// Clone returns an independent copy of m.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
