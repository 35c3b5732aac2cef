package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medcards-tracker/internal/app"
)

var (
	batchDir   string
	batchOut   string
	batchForce bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process every card image in a directory once",
	Long: `Process every JPEG/PNG card image under a directory and write one row per
image to the output workbook. Images that are unchanged since a COMPLETE
run are skipped unless --force is given.

Examples:
  medcards batch                          # IMAGE_DIR -> EXCEL_OUTPUT
  medcards batch --dir ./scans --out cards.xlsx
  medcards batch --force                  # reprocess everything`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if batchDir != "" {
			cfg.Paths.ImageDir = batchDir
		}
		if batchOut != "" {
			cfg.Paths.ExcelOutput = batchOut
		}

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		model, err := a.NewModel()
		if err != nil {
			return err
		}
		sheet, err := a.NewSheet()
		if err != nil {
			return err
		}
		defer func() {
			if err := sheet.Close(); err != nil {
				logger.Warn("batch.sheet_close_failed", "error", err)
			}
		}()

		sum, runErr := app.NewRunner(a, model, sheet).Batch(ctx, cfg.Paths.ImageDir, batchForce)
		printSummary(cmd, sum, cfg.Paths.ExcelOutput)
		return runErr
	},
}

func printSummary(cmd *cobra.Command, sum app.Summary, out string) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Processed %d image(s) in %s\n", sum.Processed, sum.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  complete:     %d\n", sum.Complete)
	fmt.Fprintf(w, "  needs review: %d\n", sum.NeedsReview)
	fmt.Fprintf(w, "  failed:       %d\n", sum.Failed)
	if sum.Unchanged > 0 {
		fmt.Fprintf(w, "  unchanged:    %d\n", sum.Unchanged)
	}
	if sum.Dropped > 0 {
		fmt.Fprintf(w, "  not run:      %d\n", sum.Dropped)
	}
	fmt.Fprintf(w, "Workbook: %s (%d rows)\n", out, sum.Rows)
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "image directory (default IMAGE_DIR)")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "output workbook (default EXCEL_OUTPUT)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "reprocess images that are unchanged and complete")

	rootCmd.AddCommand(batchCmd)
}
