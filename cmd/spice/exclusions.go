package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sms/internal/cli"
	"github.com/Veraticus/spice-sms/internal/merchant"
)

func exclusionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclusions",
		Short: "Inspect merchant exclusions across all sources",
		Long: `A merchant is excluded when any source marks it: the merchant flag set with
"spice merchants exclude", or one of the legacy preference records.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Show what every exclusion source reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, store, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			for _, res := range eng.Exclusions().Dump(cmd.Context()) {
				if !res.OK() {
					fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%s: unreadable (%v), treated as empty", res.Name, res.Err)))
					continue
				}
				body := cli.SubtleStyle.Render("none")
				if len(res.Merchants) > 0 {
					body = "  " + strings.Join(res.Merchants, "\n  ")
				}
				fmt.Fprintln(out, cli.RenderBox(fmt.Sprintf("%s (%d)", res.Name, len(res.Merchants)), body))
			}

			set := eng.Exclusions().Resolve(cmd.Context())
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d match keys in the combined set", set.Len())))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <merchant>",
		Short: "Report whether a merchant is excluded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			name := merchant.Normalize(args[0])
			out := cmd.OutOrStdout()
			if eng.Exclusions().IsExcluded(cmd.Context(), args[0]) {
				fmt.Fprintln(out, cli.FormatWarning(name+" is excluded"))
				return nil
			}
			fmt.Fprintln(out, cli.FormatSuccess(name+" is included"))
			return nil
		},
	})

	return cmd
}
