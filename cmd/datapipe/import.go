package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tabwerk/datapipe/internal/config"
	"github.com/tabwerk/datapipe/internal/importer"
	"github.com/tabwerk/datapipe/internal/service"
	"go.uber.org/zap"
)

var (
	importName        string
	importDescription string
	importDelimiter   string
	importSheet       string
	importSkipRows    int
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a file as a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		dataset, err := svc.datasets.Import(context.Background(), service.ImportRequest{
			Path:        args[0],
			Name:        importName,
			Description: importDescription,
			Options: importer.Options{
				Delimiter: importDelimiter,
				Sheet:     importSheet,
				SkipRows:  importSkipRows,
			},
		})
		if err != nil {
			return err
		}

		zap.S().Infof("dataset %s created (%d rows, %d columns)", dataset.ID, dataset.Rows, dataset.Cols)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importName, "name", "", "dataset name, defaults to the file name")
	importCmd.Flags().StringVar(&importDescription, "description", "", "dataset description")
	importCmd.Flags().StringVar(&importDelimiter, "delimiter", "", "field delimiter override")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet name for spreadsheet files")
	importCmd.Flags().IntVar(&importSkipRows, "skip-rows", 0, "rows to skip before the header")
}
