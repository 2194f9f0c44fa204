package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/store"
)

// PostPass is an analysis step run after a deep-mode ingestion completes.
type PostPass interface {
	Run(ctx context.Context, st store.Store, report *model.RunReport) error
}

// CrossPlatformPass surfaces workflows that show up on more than one
// platform, which is the strongest popularity signal the data carries.
type CrossPlatformPass struct{}

func (CrossPlatformPass) Run(ctx context.Context, st store.Store, report *model.RunReport) error {
	records, err := st.ListWorkflows(ctx, store.WorkflowFilter{Limit: 10000})
	if err != nil {
		return err
	}

	platforms := make(map[string]map[model.Platform]bool)
	for _, rec := range records {
		if platforms[rec.WorkflowName] == nil {
			platforms[rec.WorkflowName] = make(map[model.Platform]bool)
		}
		platforms[rec.WorkflowName][rec.Platform] = true
	}

	var crossPlatform int
	for name, seen := range platforms {
		if len(seen) < 2 {
			continue
		}
		crossPlatform++
		names := make([]string, 0, len(seen))
		for p := range seen {
			names = append(names, string(p))
		}
		zap.L().Info("workflow present on multiple platforms",
			zap.String("workflow", name),
			zap.Strings("platforms", names),
		)
	}

	zap.L().Info("deep analysis pass complete",
		zap.String("run_id", report.RunID),
		zap.Int("workflows", len(platforms)),
		zap.Int("cross_platform", crossPlatform),
	)
	return nil
}
