package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medcards-tracker/internal/extract"
)

var (
	parseFile     string
	parseFilename string
	parseCalendar string
)

type parsedField struct {
	Value     string `json:"value"`
	Outcome   string `json:"outcome"`
	Candidate string `json:"candidate,omitempty"`
}

type parseOutput struct {
	Filename string                 `json:"filename,omitempty"`
	Complete bool                   `json:"complete"`
	Notes    string                 `json:"notes,omitempty"`
	Fields   map[string]parsedField `json:"fields"`
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract fields from a saved model reply",
	Long: `Run the field extractor over a model reply read from --file or stdin and
print the per-field values and outcomes as JSON. No model call is made.

Examples:
  medcards parse --file reply.txt
  echo '<age>34</age>' | medcards parse`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			raw []byte
			err error
		)
		if parseFile != "" {
			raw, err = os.ReadFile(parseFile)
		} else {
			raw, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read reply: %w", err)
		}

		calendar := cfg.Extract.Calendar
		if parseCalendar != "" {
			calendar = parseCalendar
		}
		rec, err := extract.New(extract.WithCalendar(extract.ParseCalendar(calendar))).Extract(parseFilename, string(raw))
		if err != nil {
			return err
		}

		out := parseOutput{
			Filename: parseFilename,
			Complete: rec.Complete(),
			Notes:    rec.Notes(),
			Fields:   make(map[string]parsedField, len(extract.Fields)),
		}
		for _, f := range extract.Fields {
			res := rec.Result(f)
			out.Fields[string(f)] = parsedField{Value: res.Value, Outcome: string(res.Outcome), Candidate: res.Candidate}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseFile, "file", "", "file holding the model reply (default stdin)")
	parseCmd.Flags().StringVar(&parseFilename, "filename", "", "image filename to attach to the record")
	parseCmd.Flags().StringVar(&parseCalendar, "calendar", "", "date calendar: gregorian or ethiopian (default DATE_CALENDAR)")

	rootCmd.AddCommand(parseCmd)
}
