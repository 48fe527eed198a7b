package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prince1katiyar/Parking-project/pkg/parking"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo slot inventory into an empty store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			n, err := parking.Seed(cmd.Context(), store, parking.DefaultSeed())
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "store already has slots; nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d slots\n", n)
			return nil
		},
	}
}
