package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalogsearch/internal/app"
	"github.com/utafrali/catalogsearch/internal/service"
)

func newReindexCmd(c *cli) *cobra.Command {
	var (
		reset     bool
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the item store",
		Long: `Write a search document for every stored item. With --reset the index is
dropped and recreated first, which also removes documents of deleted items.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := app.OpenStore(ctx, c.cfg, false, c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			index, err := app.OpenIndex(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}

			result, err := service.NewReindexer(store, index, batchSize, c.logger).Run(ctx, reset)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "indexed %d items in %s\n", result.Indexed, result.Took.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the index before writing")
	cmd.Flags().IntVar(&batchSize, "batch-size", service.DefaultReindexBatchSize, "Items read and indexed per batch")
	return cmd
}
