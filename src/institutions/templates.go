package institutions

import (
	"errors"
	"fmt"
)

// InstitutionTemplate describes the statement layout of one institution.
type InstitutionTemplate struct {
	Key            string                      `yaml:"key" json:"key"`
	Name           string                      `yaml:"name" json:"name"`
	ColumnMappings map[CanonicalField][]string `yaml:"columnMappings" json:"columnMappings"`
	Identifiers    []string                    `yaml:"identifiers" json:"identifiers"`
	// DateFormats are informational patterns such as "MM/DD/YYYY"; they are
	// consumed by row normalization, not by detection.
	DateFormats []string `yaml:"dateFormats" json:"dateFormats"`
}

var (
	ErrInvalidTemplate = errors.New("invalid institution template")
	ErrDuplicateKey    = errors.New("duplicate institution key")
)

// Validate checks the template invariants.
func (t InstitutionTemplate) Validate() error {
	if t.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidTemplate)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: %s: empty name", ErrInvalidTemplate, t.Key)
	}
	if len(t.Identifiers) == 0 {
		return fmt.Errorf("%w: %s: no identifiers", ErrInvalidTemplate, t.Key)
	}
	for _, id := range t.Identifiers {
		if normalize(id) == "" {
			return fmt.Errorf("%w: %s: blank identifier", ErrInvalidTemplate, t.Key)
		}
	}
	for field := range t.ColumnMappings {
		if !field.Valid() {
			return fmt.Errorf("%w: %s: unknown field %q", ErrInvalidTemplate, t.Key, field)
		}
	}
	return nil
}

// Registry is an ordered, read-only set of templates. Detection walks it in
// registration order and the first match wins.
type Registry struct {
	templates []InstitutionTemplate
	index     map[string]int
}

// NewRegistry validates the templates and keeps them in the given order.
func NewRegistry(templates ...InstitutionTemplate) (*Registry, error) {
	r := &Registry{
		templates: make([]InstitutionTemplate, 0, len(templates)),
		index:     make(map[string]int, len(templates)),
	}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[t.Key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, t.Key)
		}
		r.index[t.Key] = len(r.templates)
		r.templates = append(r.templates, t)
	}
	return r, nil
}

// Get returns the template registered under key.
func (r *Registry) Get(key string) (InstitutionTemplate, bool) {
	i, ok := r.index[key]
	if !ok {
		return InstitutionTemplate{}, false
	}
	return r.templates[i], true
}

// Templates returns a copy of the templates in registration order.
func (r *Registry) Templates() []InstitutionTemplate {
	out := make([]InstitutionTemplate, len(r.templates))
	copy(out, r.templates)
	return out
}

// Len returns the number of registered templates.
func (r *Registry) Len() int { return len(r.templates) }

// Merge returns a new registry. Overrides whose key already exists replace
// that template at its original position; new keys are appended in order.
func (r *Registry) Merge(overrides []InstitutionTemplate) (*Registry, error) {
	merged := r.Templates()
	for _, o := range overrides {
		if i, ok := r.index[o.Key]; ok {
			merged[i] = o
			continue
		}
		merged = append(merged, o)
	}
	return NewRegistry(merged...)
}

var defaultRegistry = mustRegistry(defaultTemplates...)

// DefaultRegistry returns the built-in templates.
func DefaultRegistry() *Registry { return defaultRegistry }

func mustRegistry(templates ...InstitutionTemplate) *Registry {
	r, err := NewRegistry(templates...)
	if err != nil {
		panic(err)
	}
	return r
}

// defaultTemplates is ordered: fidelity is registered before vanguard, which
// comes before schwab, and so on. A file mentioning several institutions is
// attributed to the earliest one.
var defaultTemplates = []InstitutionTemplate{
	{
		Key:  "fidelity",
		Name: "Fidelity Investments",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Symbol"},
			FieldQuantity:      {"Quantity"},
			FieldPurchasePrice: {"Last Price", "Average Cost Basis"},
			FieldCurrentValue:  {"Current Value", "Market Value"},
			FieldDescription:   {"Description"},
			FieldCostBasis:     {"Cost Basis Total", "Cost Basis"},
		},
		Identifiers: []string{"fidelity", "fidelity investments", "fmr llc"},
		DateFormats: []string{"MM/DD/YYYY"},
	},
	{
		Key:  "vanguard",
		Name: "Vanguard",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Symbol", "Ticker Symbol"},
			FieldQuantity:      {"Shares", "Quantity"},
			FieldPurchasePrice: {"Share Price", "Price"},
			FieldCurrentValue:  {"Total Value", "Market Value"},
			FieldDescription:   {"Investment Name", "Fund Name"},
			FieldPurchaseDate:  {"Trade Date", "Settlement Date"},
		},
		Identifiers: []string{"vanguard", "the vanguard group"},
		DateFormats: []string{"MM/DD/YYYY", "YYYY-MM-DD"},
	},
	{
		Key:  "schwab",
		Name: "Charles Schwab",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Symbol"},
			FieldQuantity:      {"Quantity", "Qty (Quantity)"},
			FieldPurchasePrice: {"Price", "Price ($)"},
			FieldCurrentValue:  {"Market Value", "Mkt Val (Market Value)"},
			FieldDescription:   {"Description"},
			FieldCostBasis:     {"Cost Basis", "Cost Basis (CB)"},
		},
		Identifiers: []string{"charles schwab", "schwab"},
		DateFormats: []string{"MM/DD/YYYY"},
	},
	{
		Key:  "td_ameritrade",
		Name: "TD Ameritrade",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Symbol"},
			FieldQuantity:      {"Qty", "Quantity"},
			FieldPurchasePrice: {"Trade Price", "Price"},
			FieldCurrentValue:  {"Mark Value", "Market Value"},
			FieldDescription:   {"Description"},
			FieldPurchaseDate:  {"Date"},
			FieldCostBasis:     {"Cost Basis"},
		},
		Identifiers: []string{"td ameritrade", "tdameritrade"},
		DateFormats: []string{"MM/DD/YYYY"},
	},
	{
		Key:  "etrade",
		Name: "E*TRADE",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Symbol"},
			FieldQuantity:      {"Quantity", "Qty #"},
			FieldPurchasePrice: {"Price Paid $", "Price Paid"},
			FieldCurrentValue:  {"Value $", "Market Value"},
			FieldDescription:   {"Description"},
			FieldCostBasis:     {"Total Cost $", "Cost Basis"},
		},
		Identifiers: []string{"e*trade", "etrade", "e-trade"},
		DateFormats: []string{"MM/DD/YYYY", "MM/DD/YY"},
	},
	{
		Key:  "robinhood",
		Name: "Robinhood",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Instrument", "Symbol"},
			FieldQuantity:      {"Quantity"},
			FieldPurchasePrice: {"Average Cost", "Price"},
			FieldCurrentValue:  {"Equity", "Market Value"},
			FieldDescription:   {"Name", "Description"},
			FieldPurchaseDate:  {"Activity Date"},
		},
		Identifiers: []string{"robinhood"},
		DateFormats: []string{"MM/DD/YYYY", "YYYY-MM-DD"},
	},
	{
		Key:  "merrill",
		Name: "Merrill Edge",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Symbol", "Symbol/CUSIP"},
			FieldQuantity:      {"Quantity"},
			FieldPurchasePrice: {"Unit Cost", "Price"},
			FieldCurrentValue:  {"Value", "Market Value"},
			FieldDescription:   {"Description", "Security Description"},
			FieldPurchaseDate:  {"Acquisition Date"},
			FieldCostBasis:     {"Cost Basis", "Total Cost Basis"},
		},
		Identifiers: []string{"merrill lynch", "merrill edge", "merrill"},
		DateFormats: []string{"MM/DD/YYYY"},
	},
	{
		Key:  "interactive_brokers",
		Name: "Interactive Brokers",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Symbol"},
			FieldQuantity:      {"Quantity", "Position"},
			FieldPurchasePrice: {"Cost Price", "Mark Price"},
			FieldCurrentValue:  {"Value", "Position Value"},
			FieldDescription:   {"Description"},
			FieldCostBasis:     {"Cost Basis"},
		},
		Identifiers: []string{"interactive brokers", "ibkr"},
		DateFormats: []string{"YYYY-MM-DD", "YYYYMMDD"},
	},
	{
		Key:  "webull",
		Name: "Webull",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Symbol", "Ticker"},
			FieldQuantity:      {"Quantity", "Filled"},
			FieldPurchasePrice: {"Avg Price", "Cost"},
			FieldCurrentValue:  {"Market Value"},
			FieldDescription:   {"Name"},
			FieldPurchaseDate:  {"Filled Time"},
		},
		Identifiers: []string{"webull"},
		DateFormats: []string{"MM/DD/YYYY"},
	},
	{
		Key:  "coinbase",
		Name: "Coinbase",
		ColumnMappings: map[CanonicalField][]string{
			FieldSymbol:        {"Asset"},
			FieldQuantity:      {"Quantity Transacted", "Amount"},
			FieldPurchasePrice: {"Spot Price at Transaction", "Price at Transaction"},
			FieldCurrentValue:  {"Total (inclusive of fees and/or spread)", "Total"},
			FieldDescription:   {"Notes"},
			FieldPurchaseDate:  {"Timestamp"},
			FieldCostBasis:     {"Subtotal"},
		},
		Identifiers: []string{"coinbase"},
		DateFormats: []string{"YYYY-MM-DD"},
	},
	{
		Key:  "bank_of_america",
		Name: "Bank of America",
		ColumnMappings: map[CanonicalField][]string{
			FieldDescription:  {"Description"},
			FieldCurrentValue: {"Running Bal.", "Amount"},
			FieldPurchaseDate: {"Date"},
		},
		Identifiers: []string{"bank of america", "bankofamerica"},
		DateFormats: []string{"MM/DD/YYYY"},
	},
}
