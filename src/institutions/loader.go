package institutions

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk layout of a template override file.
//
//	templates:
//	  - key: ally
//	    name: Ally Invest
//	    identifiers: [ally invest]
//	    columnMappings:
//	      symbol: [Symbol]
//	      quantity: [Quantity]
type templateFile struct {
	Templates []InstitutionTemplate `yaml:"templates"`
}

// LoadTemplates decodes and validates template overrides. JSON input is
// accepted as well since it is valid YAML.
func LoadTemplates(r io.Reader) ([]InstitutionTemplate, error) {
	var f templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding templates: %w", err)
	}
	for _, t := range f.Templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Templates, nil
}

// LoadTemplatesFile reads overrides from path.
func LoadTemplatesFile(path string) ([]InstitutionTemplate, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening templates file %s: %w", path, err)
	}
	defer file.Close()
	return LoadTemplates(file)
}

// NewEngineWithOverrides builds an engine whose registry is the built-in one
// merged with the templates stored at path. An empty path yields the default
// engine.
func NewEngineWithOverrides(path string) (*Engine, error) {
	if path == "" {
		return Default(), nil
	}
	overrides, err := LoadTemplatesFile(path)
	if err != nil {
		return nil, err
	}
	registry, err := DefaultRegistry().Merge(overrides)
	if err != nil {
		return nil, err
	}
	return NewEngine(registry, nil, nil), nil
}
