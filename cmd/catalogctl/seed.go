package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalogsearch/internal/app"
	"github.com/utafrali/catalogsearch/internal/event"
	"github.com/utafrali/catalogsearch/internal/indexsync"
	"github.com/utafrali/catalogsearch/internal/service"
)

var demoItems = []service.CreateItemInput{
	{Name: "Wireless Headphones", Description: "Over-ear noise cancelling headphones", Price: 19900, Rating: 4.6, Category: "electronics"},
	{Name: "Mechanical Keyboard", Description: "Tenkeyless keyboard with brown switches", Price: 8900, Rating: 4.4, Category: "electronics"},
	{Name: "Espresso Beans", Description: "Dark roast whole coffee beans, 1kg", Price: 2400, Rating: 4.8, Category: "grocery"},
	{Name: "Sea Salt Crisps", Description: "Crunchy potato crisps with sea salt", Price: 250, Rating: 3.9, Category: "snacks"},
	{Name: "Trail Running Shoes", Description: "Lightweight shoes with a grippy outsole", Price: 12900, Rating: 4.2, Category: "sports"},
	{Name: "Yoga Mat", Description: "Non-slip mat, 6mm thick", Price: 3500, Rating: 4.1, Category: "sports"},
	{Name: "Cast Iron Skillet", Description: "Pre-seasoned 26cm skillet", Price: 4200, Rating: 4.7, Category: "kitchen"},
	{Name: "Dark Chocolate Bar", Description: "70 percent cocoa chocolate", Price: 350, Rating: 4.5, Category: "snacks"},
}

func newSeedCmd(c *cli) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo items and index them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return errors.New("--count must be positive")
			}
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

			bus := event.NewBus(c.logger)
			bus.Subscribe(indexsync.New(index, store, c.cfg.SyncSequenceTTL, c.logger).Apply)

			inputs := make([]service.CreateItemInput, count)
			for i := range inputs {
				inputs[i] = demoItems[i%len(demoItems)]
			}

			items, err := service.NewCatalogService(store, bus, c.logger).CreateBatch(ctx, inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "seeded %d items\n", len(items))
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", len(demoItems), "Number of items to create")
	return cmd
}
