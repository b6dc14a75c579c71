// Package cli is the clipcast command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ai-things/clipcast/internal/config"
	"ai-things/clipcast/internal/db"
	"ai-things/clipcast/internal/utils"
)

// Run executes the command line in args (args[0] is the program name) and
// returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdin, os.Stdout)
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

// commandContext carries flags and lazily loaded state shared by commands.
type commandContext struct {
	configPath string
	verbose    bool

	in  io.Reader
	out io.Writer

	cfg    *config.Config
	ledger db.Ledger
}

func (c *commandContext) config() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, err := config.LoadFrom(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	utils.Logf("config loaded env=%s hostname=%s work_dir=%s", cfg.App.Env, cfg.App.Hostname, cfg.App.WorkDir)
	c.cfg = &cfg
	return cfg, nil
}

func (c *commandContext) openLedger(ctx context.Context) (db.Ledger, error) {
	if c.ledger != nil {
		return c.ledger, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	dsn := cfg.DB.SQLitePath
	if cfg.DB.Driver == "postgres" {
		dsn = cfg.DBConnString()
	}
	ledger, err := db.OpenLedger(ctx, cfg.DB.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	utils.Logf("run ledger open driver=%s", cfg.DB.Driver)
	c.ledger = ledger
	return ledger, nil
}

func (c *commandContext) close() {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.Close(); err != nil {
		utils.Warn("close run ledger", "err", err)
	}
	c.ledger = nil
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	cctx := &commandContext{in: in, out: out}

	rootCmd := &cobra.Command{
		Use:           "clipcast",
		Short:         "Turn a website and a podcast transcript into a lip-synced clip",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			utils.ConfigureLogging(cctx.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetIn(in)

	rootCmd.PersistentFlags().BoolVarP(&cctx.verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().StringVarP(&cctx.configPath, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newPipelineRunCommand(cctx))
	rootCmd.AddCommand(newPipelineWorkerCommand(cctx))
	rootCmd.AddCommand(newClipsListCommand(cctx))
	rootCmd.AddCommand(newClipsSegmentsCommand(cctx))
	rootCmd.AddCommand(newAssetsCheckCommand(cctx))
	rootCmd.AddCommand(newComposeCommand(cctx))
	rootCmd.AddCommand(newCaptionCommand(cctx))
	rootCmd.AddCommand(newRunsListCommand(cctx))
	rootCmd.AddCommand(newRunsShowCommand(cctx))
	rootCmd.AddCommand(newTranscriptSampleCommand(cctx))
	rootCmd.AddCommand(newMigrateCommand(cctx))

	return rootCmd
}
