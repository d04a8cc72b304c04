// Package fact defines the dependency fact, the unit persisted by the store
// and consumed by the graph builder.
package fact

import (
	"fmt"
	"strings"
)

// Fact records that Service depends on Dependency at Version.
type Fact struct {
	Service    string `json:"service" yaml:"service"`
	Dependency string `json:"dependency" yaml:"dependency"`
	Version    string `json:"version" yaml:"version"`
}

// New builds a Fact from its three components.
func New(service, dependency, version string) Fact {
	return Fact{Service: service, Dependency: dependency, Version: version}
}

// Validate checks the fields a writer must provide.
// The graph builder does not call this; it accepts any identifiers.
func (f Fact) Validate() error {
	if f.Service == "" {
		return fmt.Errorf("service is required")
	}
	if f.Dependency == "" {
		return fmt.Errorf("dependency is required")
	}
	return nil
}

// Key returns the uniqueness key of the fact.
func (f Fact) Key() string {
	return strings.Join([]string{f.Service, f.Dependency, f.Version}, "\x00")
}

// String renders the fact as service --version--> dependency.
func (f Fact) String() string {
	return fmt.Sprintf("%s --%s--> %s", f.Service, f.Version, f.Dependency)
}

// Dedupe drops repeated facts, keeping first-seen order.
func Dedupe(facts []Fact) []Fact {
	seen := make(map[string]struct{}, len(facts))
	out := make([]Fact, 0, len(facts))
	for _, f := range facts {
		k := f.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}
