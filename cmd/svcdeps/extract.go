package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/svcdeps/svcdeps/internal/extract"
	"github.com/svcdeps/svcdeps/internal/query"
	"github.com/svcdeps/svcdeps/internal/report"
	"github.com/svcdeps/svcdeps/internal/store"
	"github.com/svcdeps/svcdeps/internal/ui"
	"github.com/svcdeps/svcdeps/internal/watch"
)

var extractCmd = &cobra.Command{
	Use:     "extract",
	GroupID: "facts",
	Short:   "Record this project's service dependencies",
	Long: `Extract in-house service dependencies from Gradle and save them.

The service name is read from rootProject.name in settings.gradle (or
settings.gradle.kts). Gradle's compile classpath is listed and every
artifact in the configured namespace is recorded as a
(service, dependency, version) fact. Facts already present are skipped.

With --watch, extraction re-runs whenever a build file changes.

Examples:
  svcdeps extract
  svcdeps extract --dir ../service-c --namespace com.acme
  svcdeps extract --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		watchMode, _ := cmd.Flags().GetBool("watch")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ex := newExtractor(st)
		qs := query.New(st, logs.Logger("query"))
		out := cmd.OutOrStdout()

		if err := runExtract(ctx, out, ex, qs); err != nil {
			if !watchMode || errors.Is(err, extract.ErrConfigurationMissing) {
				return err
			}
			logs.Logger("extract").Printf("Initial extraction failed: %v", err)
		}
		if !watchMode {
			return nil
		}

		return watchExtract(ctx, out, ex, qs)
	},
}

// newExtractor builds an Extractor from the loaded configuration.
func newExtractor(st *store.Store) *extract.Extractor {
	return extract.New(st, extract.Config{
		Dir:       cfg.Dir,
		Namespace: cfg.Namespace,
		Runner: &extract.GradleRunner{
			Command:       cfg.Gradle.Command,
			Configuration: cfg.Gradle.Configuration,
			Timeout:       cfg.Gradle.Timeout,
		},
		Logger: logs.Logger("extract"),
	})
}

// runExtract runs one extraction and prints what it found followed by the
// whole fact table. An empty extraction is reported and is not an error.
// Output is written only once the whole report is ready.
func runExtract(ctx context.Context, w io.Writer, ex *extract.Extractor, qs *query.Service) error {
	res, err := ex.Run(ctx)
	if errors.Is(err, extract.ErrConfigurationMissing) {
		return fmt.Errorf("could not determine the current service name from settings.gradle: %w", err)
	}

	var b strings.Builder
	if extract.IsInformational(err) {
		fmt.Fprintf(&b, "Service Name: %s\n", res.Service)
		fmt.Fprintln(&b, "No dependencies found.")
		_, err := io.WriteString(w, b.String())
		return err
	}
	if err != nil {
		return err
	}

	facts, err := qs.ListAllFacts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(&b, "Service Name: %s\n", res.Service)
	fmt.Fprintln(&b, "Found dependencies:")
	for _, f := range res.Facts {
		fmt.Fprintf(&b, "  %s - %s\n", f.Dependency, f.Version)
	}
	fmt.Fprintf(&b, "%s Dependencies for %s saved successfully to the database (%d new).\n",
		ui.RenderPass("✓"), res.Service, res.Inserted)
	fmt.Fprintln(&b, "\nSaved records in SQLite (servicename, dependency, version):")
	if err := report.New(&b, report.FormatHuman).Facts(facts); err != nil {
		return err
	}

	_, err = io.WriteString(w, b.String())
	return err
}

// watchExtract re-runs extraction after each batch of build file changes
// until ctx is cancelled.
func watchExtract(ctx context.Context, w io.Writer, ex *extract.Extractor, qs *query.Service) error {
	watcher, err := watch.New(cfg.Dir, &watch.Config{
		Debounce: cfg.Watch.Debounce,
		Logger:   logs.Logger("watch"),
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	if err := watcher.Start(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s\n", ui.RenderMuted(fmt.Sprintf("Watching %s for build file changes. Press Ctrl+C to stop.", cfg.Dir)))

	err = watch.Loop(ctx, watcher, func(ctx context.Context, batch []watch.Event) error {
		fmt.Fprintf(w, "\n%d build file(s) changed, re-extracting\n", len(batch))
		return runExtract(ctx, w, ex, qs)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	extractCmd.Flags().Bool("watch", false, "Re-extract when build files change")
	rootCmd.AddCommand(extractCmd)
}
