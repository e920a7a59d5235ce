package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sms/internal/cli"
	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/merchant"
	"github.com/Veraticus/spice-sms/internal/model"
)

func merchantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchants",
		Short: "List merchants and manage their categories and exclusions",
	}

	cmd.AddCommand(merchantsListCmd())
	cmd.AddCommand(merchantsExclusionCmd("exclude", true))
	cmd.AddCommand(merchantsExclusionCmd("include", false))
	cmd.AddCommand(merchantsCategorizeCmd())
	return cmd
}

func merchantsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known merchants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			excludedOnly, _ := cmd.Flags().GetBool("excluded")
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var merchants []model.Merchant
			if excludedOnly {
				merchants, err = store.ListExcludedMerchants(ctx)
			} else {
				merchants, err = store.ListMerchants(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list merchants: %w", err)
			}

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to load categories: %w", err)
			}
			names := make(map[int64]string, len(categories))
			for _, c := range categories {
				names[c.ID] = c.Emoji + " " + c.Name
			}

			out := cmd.OutOrStdout()
			if len(merchants) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No merchants yet. Run spice scan first."))
				return nil
			}

			rows := make([][]string, 0, len(merchants))
			for _, m := range merchants {
				excluded := ""
				if m.Excluded {
					excluded = cli.WarningStyle.Render("excluded")
				}
				source := "keyword"
				if m.UserDefined {
					source = "user"
				}
				rows = append(rows, []string{m.NormalizedName, m.DisplayName, names[m.CategoryID], source, excluded})
			}
			fmt.Fprint(out, cli.RenderTable([]string{"Merchant", "Display", "Category", "Source", ""}, rows))
			fmt.Fprintln(out, cli.SubtleStyle.Render(strconv.Itoa(len(merchants))+" merchants"))
			return nil
		},
	}
	cmd.Flags().Bool("excluded", false, "only list excluded merchants")
	return cmd
}

func merchantsExclusionCmd(use string, excluded bool) *cobra.Command {
	short := "Exclude a merchant from spending totals"
	if !excluded {
		short = "Include a previously excluded merchant in spending totals"
	}

	return &cobra.Command{
		Use:   use + " <merchant>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			name := merchant.Normalize(args[0])
			if !eng.UpdateMerchantExclusion(cmd.Context(), name, excluded) {
				return common.NewUserError(fmt.Sprintf("merchant %q not found", args[0]), common.ErrNotFound)
			}

			verb := "Excluded"
			if !excluded {
				verb = "Included"
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s %s", verb, name)))
			return nil
		},
	}
}

func merchantsCategorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize <merchant> <category>",
		Short: "Assign a category to a merchant",
		Long: `Assign a category to a merchant. New transactions from the merchant use it.
With --retroactive, already stored transactions are recategorized too.`,
		Example: `  spice merchants categorize SWIGGY "Food & Dining" --retroactive`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			retroactive, _ := cmd.Flags().GetBool("retroactive")
			scope := merchant.ScopeMappingOnly
			if retroactive {
				scope = merchant.ScopeRetroactive
			}

			eng, store, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := eng.Merchants().ChangeCategory(cmd.Context(), args[0], args[1], scope)
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError("unknown merchant or category", err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s is now %s %s",
				result.Merchant.NormalizedName, result.Category.Emoji, result.Category.Name)))
			if scope == merchant.ScopeRetroactive {
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Updated %d stored transactions", result.TransactionsModified)))
			}
			return nil
		},
	}
	cmd.Flags().Bool("retroactive", false, "also recategorize stored transactions")
	return cmd
}
