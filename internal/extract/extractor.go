// Package extract reads dependency facts for one project out of its build
// tool output and saves them to the fact store.
//
// The build tool's text format is confined to ParseFactLines; nothing
// downstream of this package knows it.
package extract

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/svcdeps/svcdeps/internal/fact"
)

// DefaultNamespace is the group whose artifacts are recorded.
const DefaultNamespace = "com.example"

// Sink receives extracted facts. *store.Store implements it.
type Sink interface {
	InsertFacts(ctx context.Context, facts []fact.Fact) (int, error)
}

// Config holds the explicit inputs of an extraction.
type Config struct {
	// Dir is the project directory holding the settings file.
	Dir string

	// Namespace selects which artifacts count as service dependencies.
	Namespace string

	// Runner lists the project's dependencies (default: Gradle).
	Runner Runner

	// Logger for extraction activity (default: stderr logger).
	Logger *log.Logger
}

// Result describes one extraction run.
type Result struct {
	Service  string
	Facts    []fact.Fact
	Inserted int
}

// Extractor runs the build tool for a project and stores what it finds.
type Extractor struct {
	sink      Sink
	dir       string
	namespace string
	runner    Runner
	logger    *log.Logger
}

// New creates an Extractor writing to sink.
func New(sink Sink, cfg Config) *Extractor {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Runner == nil {
		cfg.Runner = DefaultGradleRunner()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[extract] ", log.LstdFlags)
	}
	return &Extractor{
		sink:      sink,
		dir:       cfg.Dir,
		namespace: cfg.Namespace,
		runner:    cfg.Runner,
		logger:    cfg.Logger,
	}
}

// Scan determines the project name and parses the build tool listing
// without touching the store.
func (e *Extractor) Scan(ctx context.Context) (*Result, error) {
	service, err := ProjectName(e.dir)
	if err != nil {
		return nil, err
	}
	e.logger.Printf("Project %s in %s", service, e.dir)

	lines, err := e.runner.Dependencies(ctx, e.dir)
	if err != nil {
		return &Result{Service: service}, err
	}

	facts := ParseFactLines(service, e.namespace, lines)
	e.logger.Printf("Parsed %d fact(s) from %d line(s)", len(facts), len(lines))

	res := &Result{Service: service, Facts: facts}
	if len(facts) == 0 {
		return res, fmt.Errorf("%w for %s in namespace %s", ErrExtractionEmpty, service, e.namespace)
	}
	return res, nil
}

// Run scans the project and records its facts. On ErrExtractionEmpty the
// returned Result still names the service and the store is not written.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	res, err := e.Scan(ctx)
	if err != nil {
		return res, err
	}

	inserted, err := e.sink.InsertFacts(ctx, res.Facts)
	if err != nil {
		return res, fmt.Errorf("failed to save dependencies for %s: %w", res.Service, err)
	}
	res.Inserted = inserted

	e.logger.Printf("Saved dependencies for %s: %d new of %d", res.Service, inserted, len(res.Facts))
	return res, nil
}
