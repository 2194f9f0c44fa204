// Package normalize maps raw connector items into canonical WorkflowRecords.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/resilience"
	"github.com/satyamrathirar/popularity-vision/internal/source"
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// Record builds a WorkflowRecord from a raw item. It is a pure mapping: no
// I/O, no clock. Items without a usable name are rejected with a
// permanent-item error. Numeric metric values are coerced to float64;
// string and bool values pass through unchanged. A missing country becomes
// GLOBAL.
func Record(item *source.RawItem, platform model.Platform) (model.WorkflowRecord, error) {
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return model.WorkflowRecord{}, resilience.NewPermanentItem(
			eris.Errorf("normalize: item for keyword %q has no workflow name", item.Keyword),
		)
	}

	country := strings.ToUpper(strings.TrimSpace(item.Country))
	if country == "" {
		country = model.GlobalCountry
	}

	metrics := make(model.Metrics, len(item.Fields))
	for k, v := range item.Fields {
		metrics[k] = coerce(v)
	}

	return model.WorkflowRecord{
		WorkflowName: titleCaser.String(name),
		Platform:     platform,
		Country:      country,
		Metrics:      metrics,
		SourceURL:    item.SourceURL,
	}, nil
}

// coerce converts numeric values of any width to float64 so that metric
// maps round-trip identically through JSON storage. Non-numeric values are
// returned unchanged.
func coerce(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case string:
		return coerceString(n)
	default:
		return v
	}
}

// coerceString converts numeric-looking strings (several upstream APIs
// return counts as strings) while leaving real text alone.
func coerceString(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || !looksNumeric(trimmed) {
		return s
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return s
}

func looksNumeric(s string) bool {
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
		case (r == '-' || r == '+') && i == 0:
		default:
			return false
		}
	}
	return true
}
