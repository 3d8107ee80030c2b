package models

import (
	"sort"
	"time"
)

// SourceStatus is the outcome of processing one declared source
type SourceStatus string

const (
	SourceLoaded            SourceStatus = "loaded"
	SourceSkippedMissing    SourceStatus = "skipped_missing"
	SourceSkippedMalformed  SourceStatus = "skipped_malformed"
	SourceSkippedUnreadable SourceStatus = "skipped_unreadable"
)

// SkipStatus maps the kind of a skip warning to the status of the skipped source
func SkipStatus(kind WarningKind) SourceStatus {
	switch kind {
	case WarnMissingSource:
		return SourceSkippedMissing
	case WarnUnreadable:
		return SourceSkippedUnreadable
	}
	return SourceSkippedMalformed
}

// SourceReport accounts for everything that happened to one source
type SourceReport struct {
	Name              string                  `json:"name"`
	Path              string                  `json:"path"`
	Category          Category                `json:"category,omitempty"`
	Mandatory         bool                    `json:"mandatory"`
	Status            SourceStatus            `json:"status"`
	RowsRead          int                     `json:"rows_read"`
	RecordsKept       int                     `json:"records_kept"`
	DroppedMissingKey int                     `json:"dropped_missing_key"`
	DroppedByReason   map[CoercionFailure]int `json:"dropped_by_reason,omitempty"`
	Error             string                  `json:"error,omitempty"`
}

// Dropped returns the number of rows removed for any reason
func (r SourceReport) Dropped() int {
	n := r.DroppedMissingKey
	for _, c := range r.DroppedByReason {
		n += c
	}
	return n
}

// CoercionFailures returns the failure reasons in a stable order
func (r SourceReport) CoercionFailures() []CoercionFailure {
	reasons := make([]CoercionFailure, 0, len(r.DroppedByReason))
	for reason := range r.DroppedByReason {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

// NormalizeResult is the output of one normalization pass
type NormalizeResult struct {
	Records  []NormalizedRecord `json:"-"`
	Sources  []SourceReport     `json:"sources"`
	Warnings []Warning          `json:"warnings,omitempty"`
	Duration time.Duration      `json:"duration_ns"`
}

// Skipped returns the reports of sources that contributed nothing
func (r *NormalizeResult) Skipped() []SourceReport {
	var out []SourceReport
	for _, s := range r.Sources {
		if s.Status != SourceLoaded {
			out = append(out, s)
		}
	}
	return out
}
