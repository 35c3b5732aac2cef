package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medcards-tracker/internal/app"
)

var (
	watchDirs  []string
	watchOut   string
	watchForce bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process existing and newly added card images until interrupted",
	Long: `Process every card image under the watched directories, then keep
watching for new or rewritten images. The workbook is saved after each
image. Stop with Ctrl+C.

Examples:
  medcards watch
  medcards watch --dir ./clinic-a --dir ./clinic-b`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(watchDirs) == 0 {
			watchDirs = []string{cfg.Paths.ImageDir}
		}
		if watchOut != "" {
			cfg.Paths.ExcelOutput = watchOut
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
				logger.Warn("watch.sheet_close_failed", "error", err)
			}
		}()

		sum, runErr := app.NewRunner(a, model, sheet).Watch(ctx, watchDirs, watchForce)
		printSummary(cmd, sum, cfg.Paths.ExcelOutput)
		return runErr
	},
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchDirs, "dir", nil, "directory to watch; repeatable (default IMAGE_DIR)")
	watchCmd.Flags().StringVar(&watchOut, "out", "", "output workbook (default EXCEL_OUTPUT)")
	watchCmd.Flags().BoolVar(&watchForce, "force", false, "reprocess images that are unchanged and complete")

	rootCmd.AddCommand(watchCmd)
}
