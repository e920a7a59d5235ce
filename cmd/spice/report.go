package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-sms/internal/cli"
	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/config"
	"github.com/Veraticus/spice-sms/internal/report"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize spending by category, merchant and month",
		Long: `Summarize stored transactions. Merchants excluded by any exclusion source are
left out of the totals and reported separately.`,
		Example: `  spice report --month 2025-01
  spice report --start 2025-01-01 --end 2025-03-31 --top 5`,
		RunE: runReport,
	}

	cmd.Flags().String("month", "", "report a single month (YYYY-MM)")
	cmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "end date, inclusive (YYYY-MM-DD)")
	cmd.Flags().Int("top", 10, "number of merchants to list")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	month, _ := cmd.Flags().GetString("month")
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")
	top, _ := cmd.Flags().GetInt("top")

	loc, err := config.LoadLocation(viper.GetViper())
	if err != nil {
		return err
	}
	start, end, err := parseRange(month, startFlag, endFlag, loc)
	if err != nil {
		return common.NewUserError("invalid report range", err)
	}

	eng, store, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	summary, err := report.NewGenerator(store, store, eng.Exclusions()).Generate(cmd.Context(), report.Options{
		Start:        start,
		End:          end,
		Location:     loc,
		TopMerchants: top,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
	return nil
}

// endOfDay is the last stored instant before next; timestamps are kept at millisecond precision.
func endOfDay(next time.Time) time.Time {
	return next.Add(-time.Millisecond)
}

// parseRange turns the report flags into an inclusive window. Empty flags mean all time.
func parseRange(month, start, end string, loc *time.Location) (time.Time, time.Time, error) {
	if month != "" {
		if start != "" || end != "" {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: --month cannot be combined with --start or --end", common.ErrInvalidInput)
		}
		m, err := time.ParseInLocation("2006-01", month, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: month %q", common.ErrInvalidInput, month)
		}
		return m, endOfDay(m.AddDate(0, 1, 0)), nil
	}

	var from, to time.Time
	if start != "" {
		d, err := time.ParseInLocation("2006-01-02", start, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", common.ErrInvalidInput, start)
		}
		from = d
	}
	if end != "" {
		d, err := time.ParseInLocation("2006-01-02", end, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", common.ErrInvalidInput, end)
		}
		to = endOfDay(d.AddDate(0, 0, 1))
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start must be before end", common.ErrInvalidInput)
	}
	return from, to, nil
}

func renderSummary(s *report.Summary) string {
	var b strings.Builder

	period := "all time"
	if !s.Start.IsZero() || !s.End.IsZero() {
		from, to := "beginning", "now"
		if !s.Start.IsZero() {
			from = s.Start.Format("2006-01-02")
		}
		if !s.End.IsZero() {
			to = s.End.Format("2006-01-02")
		}
		period = from + " to " + to
	}

	b.WriteString(cli.KeyValues(
		[2]string{"Period", period},
		[2]string{"Transactions", fmt.Sprint(s.Count)},
		[2]string{"Spent", cli.ErrorStyle.Render(cli.FormatAmount(s.TotalSpent))},
		[2]string{"Received", cli.SuccessStyle.Render(cli.FormatAmount(s.TotalReceived))},
		[2]string{"Net", cli.FormatAmount(s.Net)},
		[2]string{"Excluded", fmt.Sprintf("%d transactions, %s spent", s.ExcludedCount, cli.FormatAmount(s.ExcludedSpent))},
	))

	if len(s.Categories) > 0 {
		rows := make([][]string, 0, len(s.Categories))
		for _, c := range s.Categories {
			rows = append(rows, []string{
				strings.TrimSpace(c.Emoji + " " + c.Name),
				cli.FormatAmount(c.Total),
				fmt.Sprintf("%.1f%%", c.Share*100),
				fmt.Sprint(c.Count),
			})
		}
		b.WriteString("\n\n")
		b.WriteString(cli.RenderTable([]string{"Category", "Spent", "Share", "Count"}, rows))
	}

	if len(s.Merchants) > 0 {
		rows := make([][]string, 0, len(s.Merchants))
		for _, m := range s.Merchants {
			rows = append(rows, []string{m.Merchant, cli.FormatAmount(m.Total), fmt.Sprint(m.Count)})
		}
		b.WriteString("\n")
		b.WriteString(cli.RenderTable([]string{"Merchant", "Spent", "Count"}, rows))
	}

	if len(s.Months) > 0 {
		rows := make([][]string, 0, len(s.Months))
		for _, m := range s.Months {
			rows = append(rows, []string{m.Month, cli.FormatAmount(m.Spent), cli.FormatAmount(m.Received)})
		}
		b.WriteString("\n")
		b.WriteString(cli.RenderTable([]string{"Month", "Spent", "Received"}, rows))
	}

	return cli.RenderBox(cli.ChartIcon+" Spending Report", strings.TrimRight(b.String(), "\n"))
}
