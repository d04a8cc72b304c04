package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/svcdeps/svcdeps/internal/extract"
	"github.com/svcdeps/svcdeps/internal/fact"
	"github.com/svcdeps/svcdeps/internal/graph"
	"github.com/svcdeps/svcdeps/internal/query"
	"github.com/svcdeps/svcdeps/internal/report"
	"github.com/svcdeps/svcdeps/internal/store"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func openTestStore(t *testing.T, facts ...fact.Fact) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "dependencies.db"), quietLogger())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if len(facts) > 0 {
		if _, err := st.InsertFacts(context.Background(), facts); err != nil {
			t.Fatalf("InsertFacts() failed: %v", err)
		}
	}
	return st
}

func scenarioFacts() []fact.Fact {
	return []fact.Fact{
		fact.New("A", "X", "1.0"),
		fact.New("B", "X", "1.0"),
		fact.New("A", "B", "2.0"),
	}
}

func TestRunQuery(t *testing.T) {
	tests := []struct {
		name  string
		facts []fact.Fact
		opts  queryOptions
		want  string
	}{
		{
			name: "empty store",
			opts: queryOptions{Service: "X", Format: report.FormatHuman},
			want: noDataMessage + "\n",
		},
		{
			name: "empty store machine",
			opts: queryOptions{Format: report.FormatMachine},
			want: noDataMessage + "\n",
		},
		{
			name:  "raw human",
			facts: scenarioFacts(),
			opts:  queryOptions{Service: "X", Mode: graph.ModeRaw, Format: report.FormatHuman},
			want:  "servicename, dependency, version\nX, A, 1.0\nX, B, 1.0\n",
		},
		{
			name:  "immediate human",
			facts: scenarioFacts(),
			opts:  queryOptions{Service: "X", Mode: graph.ModeImmediate, Format: report.FormatHuman},
			want:  "servicename, dependency, version\nX, B, 1.0\n",
		},
		{
			name:  "immediate machine",
			facts: scenarioFacts(),
			opts:  queryOptions{Service: "X", Mode: graph.ModeImmediate, Format: report.FormatMachine},
			want:  "B,1.0\n",
		},
		{
			name:  "unknown target prints header only",
			facts: scenarioFacts(),
			opts:  queryOptions{Service: "Z", Format: report.FormatHuman},
			want:  "servicename, dependency, version\n",
		},
		{
			name:  "unknown target machine prints nothing",
			facts: scenarioFacts(),
			opts:  queryOptions{Service: "Z", Format: report.FormatMachine},
			want:  "",
		},
		{
			name:  "listing machine",
			facts: scenarioFacts(),
			opts:  queryOptions{Format: report.FormatMachine},
			want:  "A,X,1.0\nB,X,1.0\nA,B,2.0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := openTestStore(t, tt.facts...)
			var buf bytes.Buffer
			if err := runQuery(context.Background(), &buf, query.New(st, nil), tt.opts); err != nil {
				t.Fatalf("runQuery() failed: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestParseQueryOptions(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		format     string
		reduce     bool
		machine    bool
		wantMode   graph.Mode
		wantFormat report.Format
		wantErr    bool
	}{
		{name: "defaults", mode: "raw", format: "human", wantMode: graph.ModeRaw, wantFormat: report.FormatHuman},
		{name: "mode flag", mode: "immediate", format: "json", wantMode: graph.ModeImmediate, wantFormat: report.FormatJSON},
		{name: "reduce wins", mode: "raw", format: "human", reduce: true, wantMode: graph.ModeImmediate, wantFormat: report.FormatHuman},
		{name: "machine wins", mode: "raw", format: "yaml", machine: true, wantMode: graph.ModeRaw, wantFormat: report.FormatMachine},
		{name: "bad mode", mode: "transitive", format: "human", wantErr: true},
		{name: "bad format", mode: "raw", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseQueryOptions("X", tt.mode, tt.format, tt.reduce, tt.machine)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseQueryOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if opts.Mode != tt.wantMode || opts.Format != tt.wantFormat || opts.Service != "X" {
				t.Errorf("opts = %+v, want mode %v format %v", opts, tt.wantMode, tt.wantFormat)
			}
		})
	}
}

func TestRunQuery_StoreClosed(t *testing.T) {
	st := openTestStore(t, scenarioFacts()...)
	_ = st.Close()

	var buf bytes.Buffer
	err := runQuery(context.Background(), &buf, query.New(st, nil), queryOptions{Service: "X"})
	if err == nil {
		t.Fatal("runQuery() on a closed store should fail")
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected partial output %q", buf.String())
	}
}

func writeSettings(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	content := "rootProject.name = '" + name + "'\n"
	if err := os.WriteFile(filepath.Join(dir, "settings.gradle"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write settings.gradle: %v", err)
	}
	return dir
}

func TestRunExtract(t *testing.T) {
	st := openTestStore(t, fact.New("service-b", "service-a", "0.9.0"))
	ex := extract.New(st, extract.Config{
		Dir:       writeSettings(t, "service-c"),
		Namespace: "com.example",
		Runner: extract.StaticRunner{
			"+--- com.example:service-a:1.0.0",
			"+--- org.slf4j:slf4j-api:2.0.9",
			"\\--- com.example:service-b:2.1.0",
		},
		Logger: quietLogger(),
	})

	var buf bytes.Buffer
	if err := runExtract(context.Background(), &buf, ex, query.New(st, nil)); err != nil {
		t.Fatalf("runExtract() failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Service Name: service-c\n",
		"Found dependencies:\n  service-a - 1.0.0\n  service-b - 2.1.0\n",
		"saved successfully",
		"servicename, dependency, version\nservice-b, service-a, 0.9.0\nservice-c, service-a, 1.0.0\nservice-c, service-b, 2.1.0\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "slf4j") {
		t.Errorf("output should not mention other namespaces:\n%s", out)
	}
}

func TestRunExtract_NoDependencies(t *testing.T) {
	st := openTestStore(t)
	ex := extract.New(st, extract.Config{
		Dir:    writeSettings(t, "service-a"),
		Runner: extract.StaticRunner{"+--- org.slf4j:slf4j-api:2.0.9"},
		Logger: quietLogger(),
	})

	var buf bytes.Buffer
	if err := runExtract(context.Background(), &buf, ex, query.New(st, nil)); err != nil {
		t.Fatalf("runExtract() should treat an empty extraction as informational: %v", err)
	}
	if want := "Service Name: service-a\nNo dependencies found.\n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	count, err := st.FactCount(context.Background())
	if err != nil {
		t.Fatalf("FactCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("FactCount() = %d, want 0", count)
	}
}

func TestRunExtract_MissingSettings(t *testing.T) {
	st := openTestStore(t)
	ex := extract.New(st, extract.Config{
		Dir:    t.TempDir(),
		Runner: extract.StaticRunner{"+--- com.example:service-a:1.0.0"},
		Logger: quietLogger(),
	})

	var buf bytes.Buffer
	err := runExtract(context.Background(), &buf, ex, query.New(st, nil))
	if !errors.Is(err, extract.ErrConfigurationMissing) {
		t.Fatalf("runExtract() error = %v, want ErrConfigurationMissing", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}
}

type unreadableSource struct{}

func (unreadableSource) LoadAllFacts(ctx context.Context) ([]fact.Fact, error) {
	return nil, store.ErrStoreUnavailable
}

func TestRunExtract_FailureWritesNothing(t *testing.T) {
	st := openTestStore(t)
	dir := writeSettings(t, "service-c")

	tests := []struct {
		name   string
		runner extract.Runner
		qs     *query.Service
		want   error
	}{
		{
			name:   "table scan fails",
			runner: extract.StaticRunner{"+--- com.example:service-a:1.0.0"},
			qs:     query.New(unreadableSource{}, nil),
			want:   store.ErrStoreUnavailable,
		},
		{
			name:   "build tool fails",
			runner: &extract.GradleRunner{Command: filepath.Join(dir, "no-such-gradle")},
			qs:     query.New(st, nil),
			want:   extract.ErrBuildToolFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := extract.New(st, extract.Config{Dir: dir, Runner: tt.runner, Logger: quietLogger()})

			var buf bytes.Buffer
			err := runExtract(context.Background(), &buf, ex, tt.qs)
			if !errors.Is(err, tt.want) {
				t.Fatalf("runExtract() error = %v, want %v", err, tt.want)
			}
			if buf.Len() != 0 {
				t.Errorf("unexpected partial output %q", buf.String())
			}
		})
	}
}

func TestPrintStatus(t *testing.T) {
	st := openTestStore(t, scenarioFacts()...)
	info, err := os.Stat(st.Path())
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}

	var buf bytes.Buffer
	if err := printStatus(context.Background(), &buf, st, info); err != nil {
		t.Fatalf("printStatus() failed: %v", err)
	}
	for _, want := range []string{"Facts: 3\n", "Services: 2\n", "Location: " + st.Path()} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status missing %q:\n%s", want, buf.String())
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.size); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
