// Command finstat parses XBRL filings and derives standardized financial
// statements from them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"finstat/pkg/config"
	"finstat/pkg/logging"
)

// app carries state shared by every subcommand, filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "finstat",
		Short:         "Derive financial statements from SEC XBRL filings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(logging.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "finstat.yaml", "path to the YAML config file")

	root.AddCommand(
		newParseCmd(a),
		newDeriveCmd(a),
		newIngestCmd(a),
		newRederiveCmd(a),
		newServeCmd(a),
		newMigrateCmd(a),
	)
	return root
}
