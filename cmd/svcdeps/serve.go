package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/svcdeps/svcdeps/internal/dashboard"
	"github.com/svcdeps/svcdeps/internal/query"
	"github.com/svcdeps/svcdeps/internal/store"
	"github.com/svcdeps/svcdeps/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Serve upstream queries over HTTP and WebSocket",
	Long: `Start the dependency dashboard server.

Endpoints:
  GET /upstream?service=S[&reduce=true]  dependents of S as JSON
  GET /dependencies?service=S            direct dependencies of S
  GET /facts                             all recorded facts
  GET /health                            server health
  GET /ws                                WebSocket event stream

With --watch, the project in --dir is re-extracted whenever a build file
changes and the results are pushed to WebSocket clients as fact_found and
extract_complete messages.

Examples:
  svcdeps serve
  svcdeps serve --port 9000 --watch --dir ../service-c`,
	RunE: func(cmd *cobra.Command, args []string) error {
		watchMode, _ := cmd.Flags().GetBool("watch")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		server, err := dashboard.NewServer(&dashboard.Config{
			Port:    cfg.Serve.Port,
			Queries: query.New(st, logs.Logger("query")),
			Logger:  logs.Logger("dashboard"),
		})
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Dashboard server started on http://%s\n", server.Addr())
		fmt.Fprintf(out, "WebSocket endpoint: ws://%s/ws\n", server.Addr())
		fmt.Fprintf(out, "Upstream query: http://%s/upstream?service=<name>\n", server.Addr())
		fmt.Fprintln(out, "\nPress Ctrl+C to stop...")

		var watchErr error
		if watchMode {
			watchErr = serveWatch(ctx, server, st)
		} else {
			<-ctx.Done()
		}

		fmt.Fprintln(out, "\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Dashboard server stopped")
		return watchErr
	},
}

// serveWatch extracts on build file changes and broadcasts each result.
func serveWatch(ctx context.Context, server *dashboard.Server, st *store.Store) error {
	handler := dashboard.NewHandler(server, logs.Logger("dashboard"))
	ex := newExtractor(st)

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

	err = watch.Loop(ctx, watcher, func(ctx context.Context, batch []watch.Event) error {
		start := time.Now()
		res, err := ex.Run(ctx)
		handler.OnExtract(res, time.Since(start), err)
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().Bool("watch", false, "Re-extract and broadcast when build files change")
	mustBind("serve.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}
