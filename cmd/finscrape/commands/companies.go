package commands

import (
	"os"
	"strings"

	"finscrape/internal/scrapers"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(companiesCmd)
}

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Lists the supported companies and the credentials each one needs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := newTable(os.Stdout)
		t.AppendHeader(table.Row{"Company", "Name", "Login fields", "Login url"})
		for _, company := range scrapers.Companies() {
			def, err := scrapers.Lookup(company)
			if err != nil {
				return err
			}
			t.AppendRow(table.Row{company, def.Name, strings.Join(def.LoginFields, ", "), def.LoginURL})
		}
		t.Render()
		return nil
	},
}
