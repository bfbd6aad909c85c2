package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearclaim/estimate-cli/internal/export"
	"github.com/clearclaim/estimate-cli/internal/model"
	"github.com/clearclaim/estimate-cli/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export a job's extraction results to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]

		st, err := store.New(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		doc, err := st.GetExtractionDocument(ctx, jobID)
		if err != nil {
			return eris.Wrapf(err, "get extraction %s", jobID)
		}

		v2, ok := doc["v2"]
		if !ok {
			return eris.Errorf("job %s has no v2 extraction; run the pipeline first", jobID)
		}

		// The document round-trips through loosely-typed JSON; re-decode the
		// v2 sub-record into its schema.
		raw, err := json.Marshal(v2)
		if err != nil {
			return eris.Wrap(err, "marshal v2 payload")
		}
		var payload model.ExtractionPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return eris.Wrap(err, "decode v2 payload")
		}

		out := exportOut
		if out == "" {
			out = jobID + ".xlsx"
		}
		if err := export.WriteWorkbook(payload, out); err != nil {
			return err
		}

		zap.L().Info("workbook written", zap.String("job_id", jobID), zap.String("path", out))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default <job-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
