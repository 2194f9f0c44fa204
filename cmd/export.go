package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satyamrathirar/popularity-vision/internal/export"
	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/store"
)

var (
	exportPath     string
	exportPlatform string
	exportCountry  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export workflow records to an XLSX spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.WorkflowFilter{Country: exportCountry}
		if exportPlatform != "" {
			platform, err := model.ParsePlatform(exportPlatform)
			if err != nil {
				return err
			}
			filter.Platform = platform
		}

		path := exportPath
		if path == "" {
			path = cfg.Export.Path
		}

		rows, err := export.Workflows(ctx, st, filter, path)
		if err != nil {
			return eris.Wrap(err, "export workflows")
		}

		zap.L().Info("exported workflows", zap.Int("rows", rows), zap.String("path", path))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPath, "out", "", "output file path (default from config)")
	exportCmd.Flags().StringVar(&exportPlatform, "platform", "", "filter by platform")
	exportCmd.Flags().StringVar(&exportCountry, "country", "", "filter by country code")
	rootCmd.AddCommand(exportCmd)
}
