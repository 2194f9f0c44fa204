// Package export writes workflow popularity data to spreadsheet files.
package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/store"
)

var baseColumns = []string{"workflow_name", "platform", "country", "source_url", "last_updated"}

// Workflows exports the filtered workflow records to an XLSX file at path.
// Metric keys become columns, collected across every exported record so
// rows from different platforms line up. Returns the number of rows written.
func Workflows(ctx context.Context, st store.Store, filter store.WorkflowFilter, path string) (int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100000
	}
	records, err := st.ListWorkflows(ctx, filter)
	if err != nil {
		return 0, err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Workflows")
	if err != nil {
		return 0, eris.Wrap(err, "export: add sheet")
	}

	metricCols := metricColumns(records)

	header := sheet.AddRow()
	for _, col := range baseColumns {
		header.AddCell().SetString(col)
	}
	for _, col := range metricCols {
		header.AddCell().SetString(col)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.WorkflowName)
		row.AddCell().SetString(string(rec.Platform))
		row.AddCell().SetString(rec.Country)
		row.AddCell().SetString(rec.SourceURL)
		row.AddCell().SetString(rec.LastUpdated.UTC().Format(time.RFC3339))
		for _, col := range metricCols {
			setMetricCell(row.AddCell(), rec.Metrics[col])
		}
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}

	zap.L().Info("export complete",
		zap.String("path", path),
		zap.Int("rows", len(records)),
		zap.Int("metric_columns", len(metricCols)),
	)
	return len(records), nil
}

// metricColumns returns the union of metric keys in sorted order.
func metricColumns(records []model.WorkflowRecord) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec.Metrics {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func setMetricCell(cell *xlsx.Cell, v any) {
	switch n := v.(type) {
	case nil:
		cell.SetString("")
	case float64:
		cell.SetFloat(n)
	case bool:
		cell.SetBool(n)
	case string:
		cell.SetString(n)
	default:
		cell.SetString(fmt.Sprintf("%v", n))
	}
}
