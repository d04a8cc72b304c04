package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/svcdeps/svcdeps/internal/store"
	"github.com/svcdeps/svcdeps/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "facts",
	Short:   "Show dependency database status",
	Long: `Display the current status of the dependency database.

Shows:
  - Database file location and size
  - Number of recorded facts
  - Number of services with recorded dependencies`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		info, err := os.Stat(cfg.DB)
		if os.IsNotExist(err) {
			fmt.Fprintf(out, "\n%s Dependency database not initialized\n", ui.RenderWarn("⚠"))
			fmt.Fprintf(out, "   Run 'svcdeps extract' in a service project to create it\n\n")
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", store.ErrStoreUnavailable, err)
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return printStatus(ctx, out, st, info)
	},
}

func printStatus(ctx context.Context, w io.Writer, st *store.Store, info os.FileInfo) error {
	factCount, err := st.FactCount(ctx)
	if err != nil {
		return err
	}
	serviceCount, err := st.ServiceCount(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s Dependency Database Status\n\n", ui.RenderAccent("📊"))
	fmt.Fprintf(w, "Location: %s\n", st.Path())
	fmt.Fprintf(w, "Size: %s\n", formatSize(info.Size()))
	fmt.Fprintf(w, "Facts: %d\n", factCount)
	fmt.Fprintf(w, "Services: %d\n", serviceCount)
	fmt.Fprintf(w, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w)
	return nil
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
