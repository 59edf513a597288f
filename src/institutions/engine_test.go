package institutions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectInstitution_EmptyInput(t *testing.T) {
	key, ok := DetectInstitution([]Row{}, "")
	assert.False(t, ok)
	assert.Empty(t, key)

	key, ok = DetectInstitution(nil, "fidelity_positions.csv")
	assert.False(t, ok, "file name alone is not enough without rows")
	assert.Empty(t, key)
}

func TestDetectInstitution_IdentifierInCell(t *testing.T) {
	rows := []Row{{"col": "Issued by Charles Schwab & Co."}}
	key, ok := DetectInstitution(rows, "statement.csv")
	require.True(t, ok)
	assert.Equal(t, "schwab", key)
}

func TestDetectInstitution_FileName(t *testing.T) {
	rows := []Row{{"Symbol": "AAPL", "Quantity": "10"}}
	key, ok := DetectInstitution(rows, "Robinhood_export_2024.csv")
	require.True(t, ok)
	assert.Equal(t, "robinhood", key)
}

func TestDetectInstitution_RegistrationOrderWins(t *testing.T) {
	// fidelity is registered before vanguard in the default registry.
	infos := SupportedInstitutions()
	require.Equal(t, "fidelity", infos[0].Key)
	require.Equal(t, "vanguard", infos[1].Key)

	rows := []Row{{"a": "Vanguard Total Stock Market", "b": "held at Fidelity"}}
	key, ok := DetectInstitution(rows, "")
	require.True(t, ok)
	assert.Equal(t, "fidelity", key)

	reversed, err := NewRegistry(
		mustTemplate(t, "vanguard"),
		mustTemplate(t, "fidelity"),
	)
	require.NoError(t, err)
	key, ok = NewEngine(reversed, nil, nil).DetectInstitution(rows, "")
	require.True(t, ok)
	assert.Equal(t, "vanguard", key)
}

func TestDetectInstitution_OnlyFirstFiveRows(t *testing.T) {
	rows := make([]Row, 0, 7)
	for i := 0; i < 5; i++ {
		rows = append(rows, Row{"Symbol": "AAPL"})
	}
	rows = append(rows, Row{"Symbol": "Brokerage services provided by Webull"})

	_, ok := DetectInstitution(rows, "positions.csv")
	assert.False(t, ok)

	key, ok := DetectInstitution(rows[1:], "positions.csv")
	require.True(t, ok)
	assert.Equal(t, "webull", key)
}

func TestDetectInstitution_Deterministic(t *testing.T) {
	rows := []Row{
		{"z": "charles", "a": "schwab", "m": "account", "b": "1234", "q": "x"},
	}
	first, firstOK := DetectInstitution(rows, "")
	for i := 0; i < 50; i++ {
		key, ok := DetectInstitution(rows, "")
		assert.Equal(t, firstOK, ok)
		assert.Equal(t, first, key)
	}
}

func TestDetectInstitution_NoMatch(t *testing.T) {
	rows := []Row{{"Symbol": "AAPL", "Quantity": "10"}}
	key, ok := DetectInstitution(rows, "export.csv")
	assert.False(t, ok)
	assert.Empty(t, key)
}

func TestFuzzyMatchColumn(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   CanonicalField
		ok     bool
	}{
		{name: "exact", header: "Symbol", want: FieldSymbol, ok: true},
		{name: "trimmed and lowercased", header: "  QUANTITY ", want: FieldQuantity, ok: true},
		{name: "header contains keyword", header: "Ticker Symbol", want: FieldSymbol, ok: true},
		{name: "keyword contains header", header: "Purchase", want: FieldPurchasePrice, ok: true},
		{name: "value", header: "Market Value ($)", want: FieldCurrentValue, ok: true},
		{name: "date", header: "Date Acquired", want: FieldPurchaseDate, ok: true},
		{name: "empty", header: "", ok: false},
		{name: "blank", header: "   ", ok: false},
		{name: "unknown", header: "Account Number", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FuzzyMatchColumn(tt.header, nil)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFuzzyMatchColumn_FieldMajorOrder(t *testing.T) {
	// "cost" is a substring hit for purchasePrice ("cost per share") before
	// costBasis is ever considered, even though costBasis has an exact entry.
	table := KeywordTable{
		{Field: FieldPurchasePrice, Keywords: []string{"cost per share"}},
		{Field: FieldCostBasis, Keywords: []string{"cost"}},
	}
	got, ok := FuzzyMatchColumn("Cost", table)
	require.True(t, ok)
	assert.Equal(t, FieldPurchasePrice, got)
}

func TestFuzzyMatchColumn_CustomTable(t *testing.T) {
	table := KeywordTable{{Field: FieldSymbol, Keywords: []string{"Instrument"}}}
	got, ok := FuzzyMatchColumn("instrument", table)
	require.True(t, ok)
	assert.Equal(t, FieldSymbol, got)

	_, ok = FuzzyMatchColumn("Quantity", table)
	assert.False(t, ok)
}

func TestAutoMapColumns_InstitutionTemplate(t *testing.T) {
	got := AutoMapColumns([]string{"Symbol", "Quantity", "Last Price", "Market Value"}, "fidelity")
	assert.Equal(t, ColumnMapping{
		FieldSymbol:        "Symbol",
		FieldQuantity:      "Quantity",
		FieldPurchasePrice: "Last Price",
		FieldCurrentValue:  "Market Value",
	}, got)
}

func TestAutoMapColumns_CandidateOrder(t *testing.T) {
	got := AutoMapColumns([]string{"Market Value", "Current Value"}, "fidelity")
	assert.Equal(t, "Current Value", got[FieldCurrentValue])
}

func TestAutoMapColumns_TemplateIsCaseSensitive(t *testing.T) {
	// "symbol" does not match the template's "Symbol" exactly, but the
	// generic keywords still resolve it.
	got := AutoMapColumns([]string{"symbol", "shares"}, "fidelity")
	assert.Equal(t, "symbol", got[FieldSymbol])
	assert.Equal(t, "shares", got[FieldQuantity])
}

func TestAutoMapColumns_FuzzyFallback(t *testing.T) {
	got := AutoMapColumns([]string{"Ticker Symbol", "Share Qty", "Unit Price"}, "")
	assert.Equal(t, "Ticker Symbol", got[FieldSymbol])
	assert.Equal(t, "Share Qty", got[FieldQuantity])
	assert.Equal(t, "Unit Price", got[FieldPurchasePrice])
}

func TestAutoMapColumns_UnknownInstitutionActsAsNone(t *testing.T) {
	headers := []string{"Ticker Symbol", "Share Qty"}
	assert.Equal(t, AutoMapColumns(headers, ""), AutoMapColumns(headers, "no_such_bank"))
}

func TestAutoMapColumns_UnmappedFieldsAreAbsent(t *testing.T) {
	got := AutoMapColumns([]string{"Symbol", "Quantity"}, "")
	assert.Len(t, got, 2)
	_, present := got[FieldPurchasePrice]
	assert.False(t, present)
	_, present = got[FieldCostBasis]
	assert.False(t, present)
	assert.ElementsMatch(t,
		[]CanonicalField{FieldPurchasePrice, FieldCurrentValue, FieldDescription, FieldPurchaseDate, FieldCostBasis},
		got.Missing(CanonicalFields...))
}

func TestAutoMapColumns_EmptyHeaders(t *testing.T) {
	assert.Empty(t, AutoMapColumns(nil, "fidelity"))
	assert.Empty(t, AutoMapColumns([]string{"", "  "}, ""))
}

func TestColumnMapping_HasRequired(t *testing.T) {
	assert.True(t, ColumnMapping{FieldSymbol: "S", FieldQuantity: "Q"}.HasRequired())
	assert.True(t, ColumnMapping{FieldSymbol: "S", FieldCurrentValue: "V"}.HasRequired())
	assert.False(t, ColumnMapping{FieldSymbol: "S"}.HasRequired())
	assert.False(t, ColumnMapping{FieldQuantity: "Q"}.HasRequired())

	assert.Equal(t, []CanonicalField{FieldSymbol, FieldQuantity}, ColumnMapping{}.RequiredMissing())
	assert.Empty(t, ColumnMapping{FieldSymbol: "S", FieldCurrentValue: "V"}.RequiredMissing())
}

func TestDetectAssetType(t *testing.T) {
	tests := []struct {
		description, symbol string
		want                AssetType
	}{
		{"Apple Inc Common Stock", "AAPL", AssetSecurity},
		{"Bitcoin", "BTC", AssetCrypto},
		{"Ethereum", "ETH", AssetCrypto},
		{"", "", AssetSecurity},
		{"Cash & Cash Investments", "", AssetCash},
		{"Gold Bullion 1oz", "", AssetMetal},
		{"SPDR Gold Shares", "GLD", AssetSecurity},
		{"Vanguard Federal Money Market Fund", "VMFXX", AssetSecurity},
		{"Schwab Value Advantage Money", "SWVXX", AssetCash},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectAssetType(tt.description, tt.symbol), "%q %q", tt.description, tt.symbol)
	}
}

func TestParseAssetType(t *testing.T) {
	got, ok := ParseAssetType(" Crypto ")
	require.True(t, ok)
	assert.Equal(t, AssetCrypto, got)

	got, ok = ParseAssetType("realestate")
	require.True(t, ok)
	assert.Equal(t, AssetRealEstate, got)

	_, ok = ParseAssetType("bonds")
	assert.False(t, ok)
}

func TestSupportedInstitutions(t *testing.T) {
	infos := SupportedInstitutions()
	require.Len(t, infos, DefaultRegistry().Len())

	seen := make(map[string]bool)
	for _, info := range infos {
		assert.NotEmpty(t, info.Key)
		assert.NotEmpty(t, info.Name)
		assert.False(t, seen[info.Key], "duplicate key %s", info.Key)
		seen[info.Key] = true
	}
}

func TestEngine_Idempotent(t *testing.T) {
	rows := []Row{{"title": "Positions for account at Charles Schwab"}}
	headers := []string{"Symbol", "Description", "Quantity", "Price", "Market Value", "Cost Basis"}

	k1, ok1 := DetectInstitution(rows, "x.csv")
	k2, ok2 := DetectInstitution(rows, "x.csv")
	assert.Equal(t, k1, k2)
	assert.Equal(t, ok1, ok2)

	m1 := AutoMapColumns(headers, k1)
	m2 := AutoMapColumns(headers, k1)
	assert.Equal(t, m1, m2)

	f1, _ := FuzzyMatchColumn("Share Qty", nil)
	f2, _ := FuzzyMatchColumn("Share Qty", nil)
	assert.Equal(t, f1, f2)

	assert.Equal(t, DetectAssetType("Tesla Inc", "TSLA"), DetectAssetType("Tesla Inc", "TSLA"))
	assert.Equal(t, SupportedInstitutions(), SupportedInstitutions())
}

func mustTemplate(t *testing.T, key string) InstitutionTemplate {
	t.Helper()
	tpl, ok := DefaultRegistry().Get(key)
	require.True(t, ok, key)
	return tpl
}
