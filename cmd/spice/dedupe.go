package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sms/internal/cli"
	"github.com/Veraticus/spice-sms/internal/common"
)

func dedupeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Remove exact duplicate transactions",
		Long: `Group stored transactions by merchant, amount, day and bank and keep one
transaction per group: the most confident one, then the newest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, store, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			removed, err := eng.CleanupDuplicates(cmd.Context())
			if errors.Is(err, common.ErrScanInProgress) {
				return common.NewUserError("a scan is running; try again when it finishes", err)
			}
			if err != nil {
				return fmt.Errorf("duplicate cleanup failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if removed == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No duplicate transactions found"))
				return nil
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Removed %d duplicate transactions", removed)))
			return nil
		},
	}
}
