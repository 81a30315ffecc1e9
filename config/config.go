// Package config provides a declarative, scripted way to supply a
// Timestamp order, a PathSummary composer, or an operator's internal
// summary function from a YAML document, the same mechanism the teacher
// uses (loader.go, loader.providers.go) to load Processus/Fork bodies from
// a traefik/yaegi script instead of compiled Go.
package config

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

// Definition describes one scripted component: an ID for diagnostics, the
// symbol to extract after evaluation, and the script body that defines it.
// Mirrors the shape of the teacher's Serialization/PluginDefinition types.
type Definition struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id,omitempty"`
	Symbol string `json:"symbol,omitempty" yaml:"symbol,omitempty" mapstructure:"symbol,omitempty"`
	Script string `json:"script,omitempty" yaml:"script,omitempty" mapstructure:"script,omitempty"`
}

// Document is a named collection of Definitions, the unit a YAML
// configuration file holds: one script per Timestamp/PathSummary/internal
// summary a dataflow needs to supply without a Go recompile.
type Document struct {
	Definitions []Definition `yaml:"definitions,omitempty" mapstructure:"definitions,omitempty"`
}

// ParseDocument decodes raw YAML into a Document via mapstructure, the
// same two-stage map-then-struct decode loader.serialization.go uses for
// StreamSerialization.
func ParseDocument(raw []byte) (*Document, error) {
	var m map[string]interface{}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	var doc Document
	if err := mapstructure.Decode(m, &doc); err != nil {
		return nil, fmt.Errorf("config: decode document: %w", err)
	}
	return &doc, nil
}

// Find returns the Definition with the given ID.
func (d *Document) Find(id string) (*Definition, bool) {
	for i := range d.Definitions {
		if d.Definitions[i].ID == id {
			return &d.Definitions[i], true
		}
	}
	return nil, false
}

// Load evaluates d.Script under a fresh yaegi interpreter and returns the
// exported d.Symbol, matching loader.go's loadSymbol/loader.providers.go's
// yaegiProvider.Load eval-then-lookup sequence.
func Load(d *Definition) (interface{}, error) {
	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)

	if _, err := i.Eval(d.Script); err != nil {
		return nil, fmt.Errorf("config: evaluating script %q: %w", d.ID, err)
	}

	sym, err := i.Eval(d.Symbol)
	if err != nil {
		return nil, fmt.Errorf("config: evaluating symbol %q: %w", d.Symbol, err)
	}

	if sym.Kind() != reflect.Func {
		return nil, fmt.Errorf("config: symbol %q is not of kind func", d.Symbol)
	}

	return sym.Interface(), nil
}

// IntPathSummary loads a Definition expected to provide a
// func(int, int) (int, bool) path-summary composer, in the shape of the
// compose function NewReachability takes, for dataflows whose
// Timestamp is a plain integer counter.
func IntPathSummary(d *Definition) (func(a, b int) (int, bool), error) {
	sym, err := Load(d)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func(int, int) (int, bool))
	if !ok {
		return nil, fmt.Errorf("config: symbol %q is not func(int, int) (int, bool)", d.Symbol)
	}
	return fn, nil
}

// IntLessEqual loads a Definition expected to provide a
// func(int, int) bool total order comparison, the scripted equivalent of
// the Order[int] used by the reachability computation and
// FrontierNotificator.
func IntLessEqual(d *Definition) (func(a, b int) bool, error) {
	sym, err := Load(d)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(func(int, int) bool)
	if !ok {
		return nil, fmt.Errorf("config: symbol %q is not func(int, int) bool", d.Symbol)
	}
	return fn, nil
}
