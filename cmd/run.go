package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runJobID string

var runCmd = &cobra.Command{
	Use:   "run [pdf files...]",
	Short: "Run extraction for one job synchronously",
	Long:  "Runs the full extraction pipeline in the foreground. Without --job a new job is created for the given files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close(ctx)

		jobID := runJobID
		filePaths := args

		switch {
		case jobID == "" && len(filePaths) == 0:
			return eris.New("provide PDF files or --job")
		case jobID == "":
			job, err := env.Store.CreateJob(ctx, filePaths)
			if err != nil {
				return eris.Wrap(err, "create job")
			}
			jobID = job.ID
			zap.L().Info("created job", zap.String("job_id", jobID))
		case len(filePaths) == 0:
			job, err := env.Store.GetJob(ctx, jobID)
			if err != nil {
				return eris.Wrapf(err, "load job %s", jobID)
			}
			filePaths = job.FilePaths
		}

		if err := env.Pipeline.Run(ctx, jobID, filePaths); err != nil {
			return eris.Wrapf(err, "run job %s", jobID)
		}

		cmd.Printf("job %s: analysis ready\n", jobID)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runJobID, "job", "", "existing job ID to run (default: create a new job)")
	rootCmd.AddCommand(runCmd)
}
