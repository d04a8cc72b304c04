// Package report renders query results for people and for scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/svcdeps/svcdeps/internal/fact"
	"github.com/svcdeps/svcdeps/internal/graph"
)

// Format selects the output encoding.
type Format string

const (
	// FormatHuman is comma-space separated with a header line.
	FormatHuman Format = "human"
	// FormatMachine is comma separated, one record per line, no header.
	FormatMachine Format = "machine"
	// FormatJSON is an indented JSON document.
	FormatJSON Format = "json"
	// FormatYAML is a YAML document.
	FormatYAML Format = "yaml"
)

// Header is the first line of human-readable output.
const Header = "servicename, dependency, version"

// ParseFormat validates a format name. Empty means human.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatHuman, nil
	case FormatHuman, FormatMachine, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (must be human, machine, json, or yaml)", s)
	}
}

// UpstreamReport is the structured form of an upstream query.
type UpstreamReport struct {
	Target   string            `json:"target" yaml:"target"`
	Mode     string            `json:"mode" yaml:"mode"`
	Upstream []graph.Dependent `json:"upstream" yaml:"upstream"`
}

// FactsReport is the structured form of a full listing.
type FactsReport struct {
	Facts []fact.Fact `json:"facts" yaml:"facts"`
}

// Formatter writes reports to a single writer.
type Formatter struct {
	w      io.Writer
	format Format
}

// New creates a Formatter.
func New(w io.Writer, format Format) *Formatter {
	if format == "" {
		format = FormatHuman
	}
	return &Formatter{w: w, format: format}
}

// Upstream writes the dependents of target.
//
// The whole report is rendered before anything is written, so a failure
// never leaves partial output behind.
func (f *Formatter) Upstream(target string, mode graph.Mode, deps []graph.Dependent) error {
	var b strings.Builder

	switch f.format {
	case FormatMachine:
		for _, d := range deps {
			fmt.Fprintf(&b, "%s,%s\n", d.Service, d.Version)
		}
	case FormatJSON, FormatYAML:
		if deps == nil {
			deps = []graph.Dependent{}
		}
		return f.encode(UpstreamReport{Target: target, Mode: mode.String(), Upstream: deps})
	default:
		b.WriteString(Header + "\n")
		for _, d := range deps {
			fmt.Fprintf(&b, "%s, %s, %s\n", target, d.Service, d.Version)
		}
	}

	_, err := io.WriteString(f.w, b.String())
	return err
}

// Facts writes the full fact listing.
func (f *Formatter) Facts(facts []fact.Fact) error {
	var b strings.Builder

	switch f.format {
	case FormatMachine:
		for _, ft := range facts {
			fmt.Fprintf(&b, "%s,%s,%s\n", ft.Service, ft.Dependency, ft.Version)
		}
	case FormatJSON, FormatYAML:
		if facts == nil {
			facts = []fact.Fact{}
		}
		return f.encode(FactsReport{Facts: facts})
	default:
		b.WriteString(Header + "\n")
		for _, ft := range facts {
			fmt.Fprintf(&b, "%s, %s, %s\n", ft.Service, ft.Dependency, ft.Version)
		}
	}

	_, err := io.WriteString(f.w, b.String())
	return err
}

func (f *Formatter) encode(v interface{}) error {
	var (
		data []byte
		err  error
	)
	if f.format == FormatYAML {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s report: %w", f.format, err)
	}

	_, err = f.w.Write(data)
	return err
}
