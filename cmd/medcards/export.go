package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medcards-tracker/internal/app"
	"github.com/joseph-ayodele/medcards-tracker/internal/repository"
)

var (
	exportOut    string
	exportStatus string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored records to a fresh workbook",
	Long: `Rebuild a workbook from the records in the database, optionally only
those with a given status.

Examples:
  medcards export --out all.xlsx
  medcards export --status NEEDS_REVIEW --out review.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := exportOut
		if out == "" {
			out = cfg.Paths.ExcelOutput
		}

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Exporter.ExportToFile(ctx, repository.ListFilter{
			Status: strings.ToUpper(exportStatus),
			Limit:  exportLimit,
		}, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d record(s) to %s\n", n, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output workbook (default EXCEL_OUTPUT)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only export COMPLETE, NEEDS_REVIEW or FAILED records")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum records to export (0 = all)")

	rootCmd.AddCommand(exportCmd)
}
