package main

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tabwerk/datapipe/internal/config"
	"github.com/tabwerk/datapipe/internal/service"
	"go.uber.org/zap"
)

var (
	processName   string
	processParams string
)

var processCmd = &cobra.Command{
	Use:   "process DATASET_ID PROCESSOR",
	Short: "Submit and run a processing job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetID, err := uuid.Parse(args[0])
		if err != nil {
			return err
		}

		var params map[string]any
		if processParams != "" {
			if err := json.Unmarshal([]byte(processParams), &params); err != nil {
				return err
			}
		}

		cfg, err := config.New()
		if err != nil {
			return err
		}

		cleanup := setupLogger(cfg)
		defer cleanup()

		s, err := openStore(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}
		defer s.Close()

		svc := buildServices(cfg, s)
		ctx := context.Background()

		job, err := svc.scheduler.Submit(ctx, service.SubmitRequest{
			DatasetID:  datasetID,
			Processor:  args[1],
			Name:       processName,
			Parameters: params,
		})
		if err != nil {
			return err
		}

		job, err = svc.scheduler.Run(ctx, job.ID)
		if err != nil {
			return err
		}

		zap.S().Infof("job %s finished with status %s", job.ID, job.Status)
		if job.ErrorMessage != "" {
			zap.S().Warnf("job error: %s", job.ErrorMessage)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processName, "name", "", "job display name")
	processCmd.Flags().StringVar(&processParams, "params", "", "processor parameters as a JSON object")
}
