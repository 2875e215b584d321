// Package scenario applies availability-scenario multipliers to municipal
// biogas potential figures. A scenario scales the pre-computed potential
// columns (e.g. "only 40% of sugarcane residue is collectable") before any
// statistics run.
package scenario

import (
	"github.com/rotisserie/eris"

	"github.com/cp2b/biogas-cli/internal/model"
)

// Scenario is a named set of per-category multipliers. Categories not
// listed keep their full potential (factor 1.0).
type Scenario struct {
	Name    string             `json:"name" yaml:"name" mapstructure:"name"`
	Factors map[string]float64 `json:"factors" yaml:"factors" mapstructure:"factors"`
}

// Apply returns a copy of m with every matching potential category scaled.
// The input record is never mutated.
func (s *Scenario) Apply(m model.Municipality) model.Municipality {
	if s == nil || len(s.Factors) == 0 {
		return m
	}
	c := m.Clone()
	for category, factor := range s.Factors {
		if v, ok := c.Potential[category]; ok {
			c.Potential[category] = v * factor
		}
	}
	return c
}

// Set is the collection of configured scenarios, keyed by name.
type Set map[string]Scenario

// Get looks up a scenario by name. The empty name means "no scenario".
func (s Set) Get(name string) (*Scenario, error) {
	if name == "" {
		return nil, nil
	}
	sc, ok := s[name]
	if !ok {
		return nil, eris.Errorf("scenario: unknown scenario %q", name)
	}
	if sc.Name == "" {
		sc.Name = name
	}
	return &sc, nil
}
