package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tarisrizki/provisioning-telkom/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the locally cached dataset",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print which tier holds the cached dataset and its size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			tier, err := a.cache.Stat(cmd.Context(), cache.DatasetKey)
			if err != nil {
				return err
			}
			if tier == cache.TierNone {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing cached")
				return nil
			}
			raw, _, err := a.cache.Load(cmd.Context(), cache.DatasetKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tier %s: %d rows, %d columns\n", tier, raw.RowCount(), raw.ColumnCount())
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the cached dataset and work order projection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cache.Clear(cmd.Context(), cache.DatasetKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}

	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}
