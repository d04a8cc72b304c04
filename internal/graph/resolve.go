package graph

import (
	"fmt"
	"strings"
)

// Mode selects between the full and the reduced upstream set.
type Mode int

const (
	// ModeRaw returns all recorded dependents.
	ModeRaw Mode = iota
	// ModeImmediate applies the one-hop reduction.
	ModeImmediate
)

// String returns the name used on the command line and in reports.
func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name. "reduce" is accepted for immediate.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw":
		return ModeRaw, nil
	case "immediate", "reduce":
		return ModeImmediate, nil
	default:
		return ModeRaw, fmt.Errorf("unknown mode %q (must be raw or immediate)", s)
	}
}

// Resolve returns the dependents of target for the given mode.
//
// The result is always a fresh, non-nil slice; an unknown target yields an
// empty slice in both modes.
func Resolve(g *Graph, target string, mode Mode) []Dependent {
	candidates := g.Reverse[target]

	if mode != ModeImmediate {
		out := make([]Dependent, len(candidates))
		copy(out, candidates)
		return out
	}

	names := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		names[c.Service] = struct{}{}
	}

	out := make([]Dependent, 0, len(candidates))
	for _, c := range candidates {
		if dependsOnAny(g, c.Service, names) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dependsOnAny reports whether service has a direct edge to any of names.
func dependsOnAny(g *Graph, service string, names map[string]struct{}) bool {
	for name := range names {
		if g.DependsOn(service, name) {
			return true
		}
	}
	return false
}
