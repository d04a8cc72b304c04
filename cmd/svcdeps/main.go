// Command svcdeps records which in-house services a project depends on and
// answers "who depends on me" from the recorded facts.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/svcdeps/svcdeps/internal/config"
	"github.com/svcdeps/svcdeps/internal/logging"
	"github.com/svcdeps/svcdeps/internal/store"
	"github.com/svcdeps/svcdeps/internal/ui"
)

var (
	v    = config.NewViper()
	cfg  *config.Config
	logs = logging.NewWriter(io.Discard)
)

var rootCmd = &cobra.Command{
	Use:   "svcdeps",
	Short: "Track inter-service dependencies and query upstream consumers",
	Long: `svcdeps extracts in-house service dependencies from Gradle output,
stores them as (service, dependency, version) facts in a SQLite database,
and answers which services depend on a given one.

Typical workflow:
  # in each service repository
  svcdeps extract

  # anywhere with access to the database
  svcdeps query --service service-a --reduce`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, configFile, ".")
		if err != nil {
			return err
		}
		cfg = loaded
		logs = logging.New(cfg.Log)
		if used := config.ConfigFileUsed(v); used != "" {
			logs.Logger("config").Printf("Loaded %s", used)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logs.Close()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "facts", Title: "Fact Commands:"},
		&cobra.Group{ID: "server", Title: "Server Commands:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default: ./.svcdeps.yaml)")
	pf.String("db", "dependencies.db", "Path to the dependency database")
	pf.String("dir", ".", "Project directory containing settings.gradle")
	pf.String("namespace", "com.example", "Artifact group recorded as service dependencies")
	pf.String("log-file", "", "Write logs to a rotating file instead of stderr")
	pf.BoolP("verbose", "v", false, "Log progress to stderr")

	mustBind("db", pf.Lookup("db"))
	mustBind("dir", pf.Lookup("dir"))
	mustBind("namespace", pf.Lookup("namespace"))
	mustBind("log.file", pf.Lookup("log-file"))
	mustBind("log.verbose", pf.Lookup("verbose"))
}

// mustBind ties a flag to a config key so flags override files and env.
func mustBind(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// openStore opens the configured fact database.
func openStore(ctx context.Context) (*store.Store, error) {
	return store.OpenContext(ctx, cfg.DB, logs.Logger("store"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderError("Error:"), err)
		os.Exit(1)
	}
}
