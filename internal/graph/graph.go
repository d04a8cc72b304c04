// Package graph builds reverse and forward adjacency indexes from a flat
// list of dependency facts and answers "who depends on me" queries.
//
// # Indexes
//
// Build produces two maps from one pass over the facts:
//
//   - Reverse: dependency -> dependents, each with the version it resolved,
//     in the order the facts were supplied. A dependent that resolved the
//     same dependency at several versions appears once per version.
//   - Forward: service -> set of the components it depends on directly.
//     Versions are dropped.
//
// # Immediate upstream
//
// ImmediateUpstream keeps a dependent D of target T only when none of D's
// direct dependencies is itself a dependent of T. This is a one-hop filter:
// there is no reachability search and no cycle handling, and a service that
// lists itself as a dependency is treated like any other candidate.
//
// Example:
//
//	g := graph.Build([]fact.Fact{
//	    fact.New("A", "X", "1.0"),
//	    fact.New("B", "X", "1.0"),
//	    fact.New("A", "B", "2.0"),
//	})
//	g.Upstream("X")          // [{A 1.0} {B 1.0}]
//	g.ImmediateUpstream("X") // [{B 1.0}]
package graph

import (
	"sort"

	"github.com/svcdeps/svcdeps/internal/fact"
)

// Dependent is one entry of a reverse adjacency list.
type Dependent struct {
	Service string `json:"service" yaml:"service"`
	Version string `json:"version" yaml:"version"`
}

// Graph holds the two adjacency indexes derived from a fact table.
type Graph struct {
	// Reverse maps a dependency to its dependents in fact order.
	Reverse map[string][]Dependent

	// Forward maps a service to the set of its direct dependencies.
	Forward map[string]map[string]struct{}
}

// Build derives both indexes from facts. It never fails and performs no
// validation; empty identifiers are indexed like any other.
func Build(facts []fact.Fact) *Graph {
	g := &Graph{
		Reverse: make(map[string][]Dependent),
		Forward: make(map[string]map[string]struct{}),
	}

	for _, f := range facts {
		g.Reverse[f.Dependency] = append(g.Reverse[f.Dependency], Dependent{
			Service: f.Service,
			Version: f.Version,
		})

		deps, ok := g.Forward[f.Service]
		if !ok {
			deps = make(map[string]struct{})
			g.Forward[f.Service] = deps
		}
		deps[f.Dependency] = struct{}{}
	}

	return g
}

// DependsOn reports whether service has a direct edge to dep.
func (g *Graph) DependsOn(service, dep string) bool {
	_, ok := g.Forward[service][dep]
	return ok
}

// Dependencies returns the direct dependencies of service, sorted.
func (g *Graph) Dependencies(service string) []string {
	deps := g.Forward[service]
	out := make([]string, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Upstream returns every recorded dependent of target.
func (g *Graph) Upstream(target string) []Dependent {
	return Resolve(g, target, ModeRaw)
}

// ImmediateUpstream returns the dependents of target that do not depend on
// another dependent of target.
func (g *Graph) ImmediateUpstream(target string) []Dependent {
	return Resolve(g, target, ModeImmediate)
}
