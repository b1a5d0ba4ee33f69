// Package cli implements the bazaarctl command line client.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/bazaar-tracker/internal/config"
	"github.com/aristath/bazaar-tracker/internal/di"
	"github.com/aristath/bazaar-tracker/pkg/logger"
)

// Options configures the root command
type Options struct {
	Out        io.Writer
	LoadConfig func() (*config.Config, error) // defaults to config.Load
}

// app is the state shared by subcommands once the root pre-run has wired it
type app struct {
	cfg       *config.Config
	container *di.Container
	jobs      *di.JobInstances
	out       io.Writer
	log       zerolog.Logger
}

// NewRootCommand builds the bazaarctl command tree
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}

	var (
		dataDir  string
		logLevel string
	)
	a := &app{out: opts.Out}

	root := &cobra.Command{
		Use:   "bazaarctl",
		Short: "Track bazaar holdings, realized trades and allocations",
		Long: `bazaarctl works directly on the bazaar tracker databases.

It provides tools for:
  - Recording and closing holdings
  - Reporting unrealized and realized profit after tax
  - Computing mean-variance allocations across items
  - Inspecting market cards and player leaderboards`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}

			a.log = logger.New(logger.Config{Level: logLevel, Output: cmd.ErrOrStderr()})
			container, jobs, err := di.Wire(cfg, a.log)
			if err != nil {
				return err
			}
			a.cfg, a.container, a.jobs = cfg, container, jobs
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.container == nil {
				return nil
			}
			return a.container.Close()
		},
	}

	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides BAZAAR_DATA_DIR)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug|info|warn|error")

	root.AddCommand(
		newHoldingsCmd(a),
		newTradesCmd(a),
		newPnLCmd(a),
		newOptimizeCmd(a),
		newMarketCmd(a),
		newLeaderboardCmd(a),
		newBackupCmd(a),
		newSyncCmd(a),
	)

	return root
}

// Execute runs bazaarctl against the real configuration
func Execute() error {
	return NewRootCommand(Options{}).Execute()
}

func (a *app) print(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
