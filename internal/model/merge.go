package model

import "time"

// Merge reconciles an existing stored record with a newly ingested one
// sharing the same natural key. Metric fields present in both take the
// incoming value (the source is authoritative for freshness); fields absent
// from incoming are preserved. SourceURL is replaced only when incoming
// carries one. LastUpdated is set to now regardless of whether anything
// changed. Merge is pure: neither input is mutated.
//
// A nil existing means the key has never been stored; the incoming record
// is returned as-is with LastUpdated stamped.
func Merge(existing *WorkflowRecord, incoming WorkflowRecord, now time.Time) WorkflowRecord {
	merged := incoming
	merged.LastUpdated = now

	if existing == nil {
		merged.Metrics = cloneMetrics(incoming.Metrics)
		return merged
	}

	metrics := cloneMetrics(existing.Metrics)
	for k, v := range incoming.Metrics {
		metrics[k] = v
	}
	merged.Metrics = metrics

	if incoming.SourceURL == "" {
		merged.SourceURL = existing.SourceURL
	}

	return merged
}

func cloneMetrics(m Metrics) Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
