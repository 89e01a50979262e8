package commands

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var (
	jsonOutput          bool
	startDate           string
	combineInstallments bool
)

var errScrapeFailed = errors.New("scrape failed")

func init() {
	scrapeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as json instead of tables")
	scrapeCmd.Flags().StringVar(&startDate, "start", "", "earliest transaction date, YYYY-MM-DD")
	scrapeCmd.Flags().BoolVar(&combineInstallments, "combine-installments", false, "keep a single transaction per installment plan")
	rootCmd.AddCommand(scrapeCmd)
}

// applyFlags overrides the config with the flags that were explicitly set.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	if cmd.Flags().Changed("start") {
		cfg.StartDate = startDate
	}
	if cmd.Flags().Changed("combine-installments") {
		cfg.CombineInstallments = combineInstallments
	}
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Logs in once and prints every account's transactions.",
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

		r, err := newRunner(cfg, newTelemetry(cfg))
		if err != nil {
			return err
		}
		result, err := r.run(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			err = enc.Encode(result)
			if err != nil {
				return err
			}
		} else {
			renderResult(os.Stdout, result)
		}

		if !result.Success {
			return errScrapeFailed
		}
		return nil
	},
}
