// Package query runs upstream queries against a fact source. Each call is a
// self-contained session: one full scan, one graph build, one resolution.
package query

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/svcdeps/svcdeps/internal/fact"
	"github.com/svcdeps/svcdeps/internal/graph"
)

// FactSource supplies the complete fact table. *store.Store implements it.
type FactSource interface {
	LoadAllFacts(ctx context.Context) ([]fact.Fact, error)
}

// Service answers resolver queries from a FactSource.
type Service struct {
	src    FactSource
	logger *log.Logger
}

// New creates a Service. If logger is nil, logging is discarded.
func New(src FactSource, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{src: src, logger: logger}
}

// Session scans the source once and returns the graph alongside the facts
// it was built from.
func (s *Service) Session(ctx context.Context) (*graph.Graph, []fact.Fact, error) {
	facts, err := s.src.LoadAllFacts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load facts: %w", err)
	}

	g := graph.Build(facts)
	s.logger.Printf("Built graph from %d fact(s): %d dependencies, %d services",
		len(facts), len(g.Reverse), len(g.Forward))
	return g, facts, nil
}

// ResolveUpstream returns the dependents of target for mode. An unknown
// target yields an empty result, not an error.
func (s *Service) ResolveUpstream(ctx context.Context, target string, mode graph.Mode) ([]graph.Dependent, error) {
	g, _, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Resolve(g, target, mode), nil
}

// DirectDependencies returns the sorted direct dependencies of service.
func (s *Service) DirectDependencies(ctx context.Context, service string) ([]string, error) {
	g, _, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}
	return g.Dependencies(service), nil
}

// ListAllFacts returns the full fact table in store order.
func (s *Service) ListAllFacts(ctx context.Context) ([]fact.Fact, error) {
	facts, err := s.src.LoadAllFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	return facts, nil
}
