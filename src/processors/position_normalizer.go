// backend/src/processors/position_normalizer.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/models"
	"github.com/username/nestegg/backend/src/parsers"
	"github.com/username/nestegg/backend/src/utils"
)

// PositionNormalizer turns mapped statement rows into position records.
type PositionNormalizer struct {
	engine *institutions.Engine
}

func NewPositionNormalizer(engine *institutions.Engine) *PositionNormalizer {
	if engine == nil {
		engine = institutions.Default()
	}
	return &PositionNormalizer{engine: engine}
}

// Options carries the per-import choices of the user.
type Options struct {
	InstitutionKey string
	// AssetTypeOverrides replaces the detected asset type for a source line.
	AssetTypeOverrides map[int]institutions.AssetType
	// Limit stops after that many data rows when positive.
	Limit int
}

// Normalize maps every data row of table through mapping. Rows that cannot
// become a position are reported as RowErrors instead of records.
func (n *PositionNormalizer) Normalize(table *parsers.Table, mapping institutions.ColumnMapping, opts Options) ([]models.PositionRecord, []models.RowError) {
	var dateFormats []string
	if tpl, ok := n.engine.Template(opts.InstitutionKey); ok {
		dateFormats = tpl.DateFormats
	}

	rows := table.Rows
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}

	records := make([]models.PositionRecord, 0, len(rows))
	var rowErrors []models.RowError
	for i, row := range rows {
		line := table.Line(i)
		rec, rowErr := n.normalizeRow(row, mapping, dateFormats, line)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		rec.Institution = opts.InstitutionKey
		if override, ok := opts.AssetTypeOverrides[line]; ok {
			rec.AssetType = override
		}
		rec.HashID = generateHash(rec)
		records = append(records, rec)
	}
	return records, rowErrors
}

func (n *PositionNormalizer) normalizeRow(row institutions.Row, mapping institutions.ColumnMapping, dateFormats []string, line int) (models.PositionRecord, *models.RowError) {
	cell := func(f institutions.CanonicalField) string {
		header, ok := mapping[f]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row[header])
	}
	number := func(f institutions.CanonicalField) (decimal.NullDecimal, *models.RowError) {
		v, err := ParseAmount(cell(f))
		if err != nil {
			return v, &models.RowError{Line: line, Field: string(f), Message: err.Error()}
		}
		return v, nil
	}

	rec := models.PositionRecord{
		Line:        line,
		Symbol:      strings.ToUpper(cell(institutions.FieldSymbol)),
		Description: cell(institutions.FieldDescription),
	}
	if rec.Symbol == "" {
		return rec, &models.RowError{Line: line, Field: string(institutions.FieldSymbol), Message: "missing symbol"}
	}

	var rowErr *models.RowError
	if rec.Quantity, rowErr = number(institutions.FieldQuantity); rowErr != nil {
		return rec, rowErr
	}
	if rec.PurchasePrice, rowErr = number(institutions.FieldPurchasePrice); rowErr != nil {
		return rec, rowErr
	}
	if rec.CurrentValue, rowErr = number(institutions.FieldCurrentValue); rowErr != nil {
		return rec, rowErr
	}
	if rec.CostBasis, rowErr = number(institutions.FieldCostBasis); rowErr != nil {
		return rec, rowErr
	}
	if !rec.Quantity.Valid && !rec.CurrentValue.Valid {
		return rec, &models.RowError{Line: line, Field: string(institutions.FieldQuantity), Message: "missing quantity and current value"}
	}

	if raw := cell(institutions.FieldPurchaseDate); raw != "" {
		d, err := utils.ParseDate(raw, dateFormats...)
		if err != nil {
			return rec, &models.RowError{Line: line, Field: string(institutions.FieldPurchaseDate), Message: err.Error()}
		}
		rec.PurchaseDate = &d
	}

	if rec.Quantity.Valid && rec.PurchasePrice.Valid {
		product := decimal.NewNullDecimal(rec.Quantity.Decimal.Mul(rec.PurchasePrice.Decimal))
		if !rec.CurrentValue.Valid {
			rec.CurrentValue = product
		}
		if !rec.CostBasis.Valid {
			rec.CostBasis = product
		}
	}

	rec.AssetType = n.engine.DetectAssetType(rec.Description, rec.Symbol)
	return rec, nil
}

var amountStripper = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "", "%", "", " ", "", "\u00a0", "", "'", "", "USD", "", "EUR", "",
)

// ParseAmount reads a statement number such as "$1,234.50", "(12.00)",
// "1.234,56" or "-3 %". Empty cells and placeholders like "--" or "n/a" are
// absent.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "-", "--", "n/a", "na", "none", "null":
		return decimal.NullDecimal{}, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = normalizeSeparators(amountStripper.Replace(s))
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid number %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d), nil
}

// normalizeSeparators removes thousands separators and turns a decimal comma
// into a point. When both separators occur the last one is the decimal mark;
// a lone comma is a decimal mark unless exactly three digits follow it.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma < 0:
		return s
	case lastDot > lastComma:
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0:
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	case strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3:
		return strings.Replace(s, ",", ".", 1)
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}

// generateHash identifies a position for de-duplication across re-imports.
func generateHash(rec models.PositionRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s", rec.Institution, rec.Symbol, nullString(rec.Quantity), nullString(rec.CurrentValue))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
