package commands

import (
	"time"

	"finscrape/internal/components/chrono"
	"finscrape/internal/components/telemetry"

	"github.com/spf13/cobra"
)

const (
	report_watch_run          = "watch.run"
	report_watch_transactions = "watch.transactions"
)

var (
	cronSpec          string
	perfStatsInterval time.Duration
)

func init() {
	watchCmd.Flags().StringVar(&cronSpec, "cron", "0 7 * * *", "cron schedule in Asia/Jerusalem time")
	watchCmd.Flags().DurationVar(&perfStatsInterval, "perf-stats", time.Minute, "how often process stats are reported")
	watchCmd.Flags().StringVar(&startDate, "start", "", "earliest transaction date, YYYY-MM-DD")
	watchCmd.Flags().BoolVar(&combineInstallments, "combine-installments", false, "keep a single transaction per installment plan")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scrapes on a cron schedule until interrupted, results go to the configured webhook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := readConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, &cfg)

		shutdown, err := setupTelemetry(ctx, cfg)
		if err != nil {
			return err
		}
		defer shutdown()

		tel := newTelemetry(cfg)
		telemetry.InstrumentPerfStats(ctx, tel, perfStatsInterval)

		r, err := newRunner(cfg, tel)
		if err != nil {
			return err
		}
		cron := chrono.NewStandardCron(tel)
		defer cron.Stop()

		err = cron.Cron(cronSpec, func() {
			result, err := r.run(ctx)
			if err != nil {
				tel.ReportBroken(report_watch_run, err)
				return
			}
			if !result.Success {
				tel.ReportWarning(report_watch_run, string(result.ErrorType), result.ErrorMessage)
				return
			}
			tel.ReportCount(report_watch_transactions, int64(result.TransactionCount()))
		})
		if err != nil {
			return err
		}

		tel.ReportDebug("watching", cronSpec)
		<-ctx.Done()
		return nil
	},
}
