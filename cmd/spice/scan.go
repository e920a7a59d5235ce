package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-sms/internal/cli"
	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/config"
	"github.com/Veraticus/spice-sms/internal/engine"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Parse an SMS backup into transactions",
		Long: `Read the configured SMS archive, keep the messages that look like real bank or
payment notifications and store them as categorized transactions.

Messages already imported are skipped, so scanning the same backup twice is safe.`,
		Example: `  spice scan --source ~/backups/sms.xml
  spice scan --incremental --rejected-out rejected.csv`,
		RunE: runScan,
	}

	cmd.Flags().String("source", "", "path to the SMS backup (xml or csv)")
	cmd.Flags().String("format", "", "source format, inferred from the extension when empty")
	cmd.Flags().Bool("incremental", false, "only read messages received since the last scan")
	cmd.Flags().String("rejected-out", "", "write rejected messages to this CSV file")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")

	_ = viper.BindPFlag(config.KeySourcePath, cmd.Flags().Lookup("source"))
	_ = viper.BindPFlag(config.KeySourceFormat, cmd.Flags().Lookup("format"))

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	incremental, _ := cmd.Flags().GetBool("incremental")
	rejectedOut, _ := cmd.Flags().GetString("rejected-out")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	out := cmd.OutOrStdout()

	src, err := initSource()
	if err != nil {
		return common.NewUserError("no usable SMS source; set --source or source.path", err)
	}

	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	cfg, err := config.LoadEngine(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.Incremental = incremental
	eng := engine.NewWithConfig(src, store, cfg)

	interrupts := cli.NewInterruptHandler(out)
	ctx, cancel := interrupts.HandleInterrupts(cmd.Context(),
		"Stored transactions are kept. Resume with: spice scan --incremental")
	defer cancel()

	progress := cli.NewScanProgress(cmd.ErrOrStderr())
	var report engine.ProgressFunc = progress.Update
	if noProgress {
		report = nil
	}

	fmt.Fprintln(out, cli.FormatTitle("Scanning messages"))
	result, scanErr := eng.Scan(ctx, report)
	progress.Finish()

	if result != nil {
		fmt.Fprintln(out, renderScanResult(result))
		if rejectedOut != "" {
			if err := exportRejections(rejectedOut, result); err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Wrote %d rejected messages to %s", len(result.Rejected), rejectedOut)))
		}
	}

	switch {
	case scanErr == nil:
		return nil
	case errors.Is(scanErr, common.ErrScanInProgress):
		return common.NewUserError("another scan is already running", scanErr)
	case interrupts.WasInterrupted():
		return nil
	default:
		return scanErr
	}
}

func renderScanResult(r *engine.ScanResult) string {
	summary := cli.KeyValues(
		[2]string{"Run", r.RunID},
		[2]string{"Status", string(r.Status)},
		[2]string{"Window start", r.Since.Format("2006-01-02 15:04")},
		[2]string{"Messages", fmt.Sprintf("%d of %d", r.Processed, r.Total)},
		[2]string{"Accepted", cli.SuccessStyle.Render(fmt.Sprint(len(r.Accepted)))},
		[2]string{"Rejected", fmt.Sprint(len(r.Rejected))},
		[2]string{"Duplicates", fmt.Sprint(r.Duplicates())},
		[2]string{"Already imported", fmt.Sprint(r.AlreadyImported)},
		[2]string{"Store failures", fmt.Sprint(r.StoreFailures)},
		[2]string{"Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()},
	)

	counts := engine.ReasonCounts(r.Rejected)
	if len(counts) > 0 {
		reasons := make([]string, 0, len(counts))
		for reason := range counts {
			reasons = append(reasons, reason)
		}
		sort.Slice(reasons, func(i, j int) bool {
			if counts[reasons[i]] != counts[reasons[j]] {
				return counts[reasons[i]] > counts[reasons[j]]
			}
			return reasons[i] < reasons[j]
		})

		summary += "\n\n" + cli.BoldStyle.Render("Rejections by reason") + "\n"
		rows := make([][2]string, 0, len(reasons))
		for _, reason := range reasons {
			rows = append(rows, [2]string{reason, fmt.Sprint(counts[reason])})
		}
		summary += cli.KeyValues(rows...)
	}

	return cli.RenderBox(cli.ChartIcon+" Scan Summary", summary)
}

func exportRejections(path string, r *engine.ScanResult) (err error) {
	path = config.ExpandPath(path)
	if mkErr := os.MkdirAll(filepath.Dir(path), 0750); mkErr != nil {
		return fmt.Errorf("failed to create export directory: %w", mkErr)
	}

	f, err := os.Create(filepath.Clean(path)) // #nosec G304 - user supplied export path
	if err != nil {
		return fmt.Errorf("failed to create rejection export: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close rejection export: %w", closeErr)
		}
	}()

	if err := engine.WriteRejections(f, r.RunID, r.Rejected); err != nil {
		return fmt.Errorf("failed to write rejection export: %w", err)
	}
	return nil
}
