package commands

import (
	"context"
	"fmt"
	"os"

	"finscrape/internal/components/configutil"
	"finscrape/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	verbose    bool
	dumpDir    string
)

var rootCmd = &cobra.Command{
	Use:   "finscrape",
	Short: "finscrape logs into credit card portals with a real browser and prints the transactions it finds.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)
		return configutil.LoadEnv(envFile)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "path to the config file, <name>.local.json5 is merged over it")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file holding credentials")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-dir", "", "write the page html here when a scrape fails")
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
