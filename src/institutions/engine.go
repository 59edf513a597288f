package institutions

import (
	"sort"
	"strings"
)

// detectionRowLimit bounds how many rows feed the detection corpus.
const detectionRowLimit = 5

// InstitutionInfo is the display projection of a template.
type InstitutionInfo struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Engine bundles the dictionaries used by detection, mapping and
// classification. It is immutable once built.
type Engine struct {
	registry      *Registry
	fieldKeywords KeywordTable
	assetKeywords []AssetKeywords
}

// NewEngine builds an engine. Nil arguments fall back to the built-in
// dictionaries.
func NewEngine(registry *Registry, fieldKeywords KeywordTable, assetKeywords []AssetKeywords) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if fieldKeywords == nil {
		fieldKeywords = GenericFieldKeywords
	}
	if assetKeywords == nil {
		assetKeywords = AssetTypeKeywords
	}
	return &Engine{
		registry:      registry,
		fieldKeywords: fieldKeywords,
		assetKeywords: assetKeywords,
	}
}

var defaultEngine = NewEngine(nil, nil, nil)

// Default returns the engine built from the built-in dictionaries.
func Default() *Engine { return defaultEngine }

// Registry returns the templates the engine detects against.
func (e *Engine) Registry() *Registry { return e.registry }

// Template returns the template registered under key.
func (e *Engine) Template(key string) (InstitutionTemplate, bool) {
	return e.registry.Get(key)
}

// DetectInstitution looks for a template identifier in the file name and the
// first rows of the file. It returns the key of the first template, in
// registration order, with a matching identifier.
func (e *Engine) DetectInstitution(rows []Row, fileName string) (string, bool) {
	if len(rows) == 0 {
		return "", false
	}

	parts := make([]string, 0, detectionRowLimit+1)
	parts = append(parts, fileName)
	for i, row := range rows {
		if i == detectionRowLimit {
			break
		}
		parts = append(parts, flattenRow(row))
	}
	corpus := strings.ToLower(strings.Join(parts, " "))

	for _, t := range e.registry.templates {
		for _, id := range t.Identifiers {
			if strings.Contains(corpus, strings.ToLower(id)) {
				return t.Key, true
			}
		}
	}
	return "", false
}

// flattenRow joins cell values in header order so the corpus does not depend
// on map iteration.
func flattenRow(row Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = row[k]
	}
	return strings.Join(values, " ")
}

// FuzzyMatchColumn proposes the canonical field for a header. Fields are
// tried in table order; for each one an exact keyword match is checked before
// a substring match in either direction. A nil table means the engine's
// generic keywords.
func (e *Engine) FuzzyMatchColumn(header string, keywords KeywordTable) (CanonicalField, bool) {
	h := normalize(header)
	if h == "" {
		return "", false
	}
	if keywords == nil {
		keywords = e.fieldKeywords
	}

	for _, fk := range keywords {
		for _, kw := range fk.Keywords {
			if h == strings.ToLower(kw) {
				return fk.Field, true
			}
		}
		for _, kw := range fk.Keywords {
			kw = strings.ToLower(kw)
			if kw == "" {
				continue
			}
			if strings.Contains(h, kw) || strings.Contains(kw, h) {
				return fk.Field, true
			}
		}
	}
	return "", false
}

// AutoMapColumns assigns a header to every canonical field it can. Template
// headers are matched exactly first; the generic keywords are the fallback.
// Fields that cannot be resolved are left out of the result.
func (e *Engine) AutoMapColumns(headers []string, institutionKey string) ColumnMapping {
	mapping := make(ColumnMapping)
	tpl, hasTemplate := e.registry.Get(institutionKey)

	for _, fk := range e.fieldKeywords {
		field := fk.Field

		if hasTemplate {
			if header, ok := exactHeader(headers, tpl.ColumnMappings[field]); ok {
				mapping[field] = header
				continue
			}
		}

		only := e.fieldKeywords.Only(field)
		for _, header := range headers {
			if _, ok := e.FuzzyMatchColumn(header, only); ok {
				mapping[field] = header
				break
			}
		}
	}
	return mapping
}

// exactHeader returns the first candidate, in candidate order, present
// verbatim in headers.
func exactHeader(headers, candidates []string) (string, bool) {
	for _, c := range candidates {
		for _, h := range headers {
			if h == c {
				return h, true
			}
		}
	}
	return "", false
}

// SupportedInstitutions lists the registered templates in order.
func (e *Engine) SupportedInstitutions() []InstitutionInfo {
	out := make([]InstitutionInfo, 0, e.registry.Len())
	for _, t := range e.registry.templates {
		out = append(out, InstitutionInfo{Key: t.Key, Name: t.Name})
	}
	return out
}

// DetectInstitution runs the default engine.
func DetectInstitution(rows []Row, fileName string) (string, bool) {
	return defaultEngine.DetectInstitution(rows, fileName)
}

// FuzzyMatchColumn runs the default engine.
func FuzzyMatchColumn(header string, keywords KeywordTable) (CanonicalField, bool) {
	return defaultEngine.FuzzyMatchColumn(header, keywords)
}

// AutoMapColumns runs the default engine.
func AutoMapColumns(headers []string, institutionKey string) ColumnMapping {
	return defaultEngine.AutoMapColumns(headers, institutionKey)
}

// DetectAssetType runs the default engine.
func DetectAssetType(description, symbol string) AssetType {
	return defaultEngine.DetectAssetType(description, symbol)
}

// SupportedInstitutions lists the built-in templates.
func SupportedInstitutions() []InstitutionInfo {
	return defaultEngine.SupportedInstitutions()
}
