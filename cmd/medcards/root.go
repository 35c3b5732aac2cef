package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medcards-tracker/internal/common"
)

var (
	cfgFile  string
	logLevel string

	cfg       *common.Config
	logger    *slog.Logger
	flushLogs = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "medcards",
	Short: "Extract patient fields from photographed medical ID cards",
	Long: `medcards sends photographs of medical ID cards to a vision model, extracts
name, age, sex, telephone, address, kebele and visit date from the reply,
and writes one validated row per card to an Excel workbook.

Configuration comes from .env, an optional medcards.yaml and the
environment (OPENROUTER_API_KEY, IMAGE_DIR, EXCEL_OUTPUT, MODEL_NAME, ...).`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := common.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		l, flush, err := common.NewLogger(c.Log)
		if err != nil {
			return err
		}
		slog.SetDefault(l)
		cfg, logger, flushLogs = c, l, flush
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushLogs()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./medcards.yaml or ./configs/medcards.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}
