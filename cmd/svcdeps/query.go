package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/svcdeps/svcdeps/internal/graph"
	"github.com/svcdeps/svcdeps/internal/query"
	"github.com/svcdeps/svcdeps/internal/report"
)

// noDataMessage is printed when the store holds no facts at all.
const noDataMessage = "No dependency data found in the DB."

type queryOptions struct {
	Service string
	Mode    graph.Mode
	Format  report.Format
}

var queryCmd = &cobra.Command{
	Use:     "query",
	GroupID: "facts",
	Short:   "Show which services depend on a service",
	Long: `Display upstream dependents from the dependency database.

Without --service, every recorded fact is listed. With --service, the
services that depend on it are shown; --reduce keeps only the immediate
ones, dropping any dependent that reaches the service through another
dependent.

Examples:
  svcdeps query
  svcdeps query --service service-a
  svcdeps query --service service-a --reduce --machine
  svcdeps query --service service-a --mode immediate
  svcdeps query --service service-a --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _ := cmd.Flags().GetString("service")
		reduce, _ := cmd.Flags().GetBool("reduce")
		modeName, _ := cmd.Flags().GetString("mode")
		machine, _ := cmd.Flags().GetBool("machine")
		formatName, _ := cmd.Flags().GetString("format")

		opts, err := parseQueryOptions(service, modeName, formatName, reduce, machine)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		qs := query.New(st, logs.Logger("query"))
		return runQuery(ctx, cmd.OutOrStdout(), qs, opts)
	},
}

// parseQueryOptions resolves the query flags. --reduce forces immediate
// mode and --machine forces machine output.
func parseQueryOptions(service, modeName, formatName string, reduce, machine bool) (queryOptions, error) {
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return queryOptions{}, err
	}
	if machine {
		format = report.FormatMachine
	}
	mode, err := graph.ParseMode(modeName)
	if err != nil {
		return queryOptions{}, err
	}
	if reduce {
		mode = graph.ModeImmediate
	}
	return queryOptions{Service: service, Mode: mode, Format: format}, nil
}

// runQuery answers one query from a single scan of the store.
func runQuery(ctx context.Context, w io.Writer, qs *query.Service, opts queryOptions) error {
	g, facts, err := qs.Session(ctx)
	if err != nil {
		return err
	}
	if len(facts) == 0 {
		_, err := fmt.Fprintln(w, noDataMessage)
		return err
	}

	out := report.New(w, opts.Format)
	if opts.Service == "" {
		return out.Facts(facts)
	}
	return out.Upstream(opts.Service, opts.Mode, graph.Resolve(g, opts.Service, opts.Mode))
}

func init() {
	queryCmd.Flags().String("service", "", "Service to compute upstream dependents for")
	queryCmd.Flags().Bool("reduce", false, "Only show immediate upstream dependents")
	queryCmd.Flags().String("mode", "raw", "Resolution mode: raw or immediate (--reduce implies immediate)")
	queryCmd.Flags().Bool("machine", false, "Machine-readable output (no header, comma-separated)")
	queryCmd.Flags().String("format", "human", "Output format: human, machine, json, yaml")
	rootCmd.AddCommand(queryCmd)
}
