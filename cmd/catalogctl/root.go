package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalogsearch/internal/config"
	"github.com/utafrali/catalogsearch/pkg/logger"
)

// cli carries the state shared by all subcommands. Fields left nil are
// filled from the environment before a subcommand runs.
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Maintenance tool for the catalog search service",
		Long:          `Apply database migrations, rebuild the search index from the item store and seed demo data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	root.AddCommand(
		newMigrateCmd(c),
		newReindexCmd(c),
		newSeedCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if c.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		c.cfg = cfg
	}
	if c.logger == nil {
		c.logger = logger.NewWithWriter("catalogctl", c.cfg.LogLevel, os.Stderr)
	}
	if c.out == nil {
		c.out = cmd.OutOrStdout()
	}
	return nil
}
