package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satyamrathirar/popularity-vision/internal/ingest"
	"github.com/satyamrathirar/popularity-vision/internal/keywords"
	"github.com/satyamrathirar/popularity-vision/internal/model"
)

var (
	ingestMode     string
	ingestDryRun   bool
	ingestDeadline int
	ingestKeywords []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass across all enabled sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode, err := model.ParseMode(ingestMode)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		connectors := initConnectors()
		if len(connectors) == 0 {
			return eris.New("no sources are enabled")
		}

		var kw keywords.Source
		if len(ingestKeywords) > 0 {
			kw = keywords.Static(ingestKeywords...)
		} else {
			maxKeywords := make(map[model.Mode]int, len(cfg.Modes))
			for name, mc := range cfg.Modes {
				maxKeywords[model.Mode(name)] = mc.MaxKeywords
			}
			kw = keywords.NewFileSource(cfg.Keywords.File, maxKeywords)
		}

		orch := ingest.New(st, initGate(), connectors, kw, retryFromConfig(cfg.Retry))

		deadline := cfg.Run.Deadline()
		if ingestDeadline > 0 {
			deadline = time.Duration(ingestDeadline) * time.Second
		}

		report, err := orch.Run(ctx, ingest.RunOptions{
			Mode:            mode,
			DryRun:          ingestDryRun,
			Deadline:        deadline,
			PagesPerKeyword: cfg.Mode(string(mode)).PagesPerKeyword,
		})
		if err != nil {
			return eris.Wrap(err, "ingestion run")
		}

		if mode == model.ModeDeep && !ingestDryRun {
			if err := (ingest.CrossPlatformPass{}).Run(ctx, st, report); err != nil {
				zap.L().Error("deep analysis pass failed", zap.Error(err))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}

		// Cron relies on the exit code: only a full failure is nonzero.
		if report.Status == model.RunStatusFailure {
			return eris.Errorf("ingestion run %s failed", report.RunID)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestMode, "mode", "full", "run mode: full, test, or deep")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "fetch and normalize without writing to the store")
	ingestCmd.Flags().IntVar(&ingestDeadline, "deadline", 0, "run deadline in seconds (default from config)")
	ingestCmd.Flags().StringSliceVar(&ingestKeywords, "keyword", nil, "override the keyword list (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}
