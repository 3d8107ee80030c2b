package services

import (
	"sort"

	"github.com/montanaflynn/stats"

	"energy-analytics/internal/models"
)

// MeanByCategory groups records by category and averages their values.
// An empty input yields an empty map.
func MeanByCategory(records []models.NormalizedRecord) map[models.Category]float64 {
	groups := make(map[models.Category][]float64)
	for _, r := range records {
		groups[r.Category] = append(groups[r.Category], r.Value)
	}

	out := make(map[models.Category]float64, len(groups))
	for category, values := range groups {
		out[category] = mean(values)
	}
	return out
}

// MeanByKeyAndCategory groups records by (key, category) and averages their values
func MeanByKeyAndCategory(records []models.NormalizedRecord) map[models.GroupKey]float64 {
	groups := make(map[models.GroupKey][]float64)
	for _, r := range records {
		k := models.GroupKey{Key: r.Country, Category: r.Category}
		groups[k] = append(groups[k], r.Value)
	}

	out := make(map[models.GroupKey]float64, len(groups))
	for k, values := range groups {
		out[k] = mean(values)
	}
	return out
}

// KeysWithAllCategories returns, in ascending order, the keys whose records span
// exactly n distinct categories
func KeysWithAllCategories(records []models.NormalizedRecord, n int) models.KeySet {
	seen := make(map[string]map[models.Category]struct{})
	for _, r := range records {
		cats, ok := seen[r.Country]
		if !ok {
			cats = make(map[models.Category]struct{})
			seen[r.Country] = cats
		}
		cats[r.Category] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key, cats := range seen {
		if len(cats) == n {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return models.NewKeySet(keys...)
}

// RankKeysByExternalMetric keeps the keys that have a metric value, orders them by that
// value descending (ties keep their order in keys) and truncates to topN.
// A topN of zero or less means no limit. Fewer qualifying keys are returned as they are.
func RankKeysByExternalMetric(keys models.KeySet, metric map[string]float64, topN int) []string {
	ranked := make([]string, 0, keys.Len())
	for _, k := range keys.Keys() {
		if _, ok := metric[k]; ok {
			ranked = append(ranked, k)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return metric[ranked[i]] > metric[ranked[j]]
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// FilterKeys returns the records whose key belongs to keys, in input order
func FilterKeys(records []models.NormalizedRecord, keys models.KeySet) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0)
	for _, r := range records {
		if keys.Contains(r.Country) {
			out = append(out, r)
		}
	}
	return out
}

// SelectFocusKeys chooses the keys for the per-key comparison.
//
// When at least topN keys qualify, the topN best by metric are used. When fewer qualify,
// or none of them has a metric value, every qualifying key is used instead: ranked keys
// first, then the rest in qualifying order. No qualifying key at all gives an empty
// selection and a warning.
func SelectFocusKeys(qualifying models.KeySet, metric map[string]float64, topN int) (models.FocusSelection, []models.Warning) {
	sel := models.FocusSelection{Requested: topN, Keys: []string{}}

	if qualifying.Len() == 0 {
		sel.Mode = models.FocusNone
		return sel, []models.Warning{models.EmptyResultWarning("focus_keys", "no key covers every required category")}
	}

	ranked := RankKeysByExternalMetric(qualifying, metric, topN)
	if len(ranked) > 0 && (topN <= 0 || qualifying.Len() >= topN) {
		sel.Keys = ranked
		sel.Mode = models.FocusRanked
		return sel, nil
	}

	all := models.NewKeySet(ranked...)
	for _, k := range qualifying.Keys() {
		all.Add(k)
	}
	sel.Keys = all.Keys()
	sel.Mode = models.FocusAllQualifying

	var warnings []models.Warning
	if len(ranked) == 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnEmptyResult,
			Source:  "focus_keys",
			Message: "no qualifying key has an activity value; using all qualifying keys",
		})
	}
	return sel, warnings
}

// SortedCategorySummaries turns category means into rows in category display order
func SortedCategorySummaries(means map[models.Category]float64) []models.SummaryRecord {
	out := make([]models.SummaryRecord, 0, len(means))
	for _, c := range models.Categories {
		if v, ok := means[c]; ok {
			out = append(out, models.SummaryRecord{Category: c, Metric: v})
		}
	}
	return out
}

// SortedKeyCategorySummaries turns (key, category) means into rows ordered by the given
// key order, then by category display order. Keys missing from order follow alphabetically.
func SortedKeyCategorySummaries(means map[models.GroupKey]float64, order []string) []models.SummaryRecord {
	rank := make(map[string]int, len(order))
	for i, k := range order {
		rank[k] = i
	}
	catRank := make(map[models.Category]int, len(models.Categories))
	for i, c := range models.Categories {
		catRank[c] = i
	}

	out := make([]models.SummaryRecord, 0, len(means))
	for k, v := range means {
		out = append(out, models.SummaryRecord{Key: k.Key, Category: k.Category, Metric: v})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := rank[out[i].Key]
		rj, jok := rank[out[j].Key]
		switch {
		case iok && jok && ri != rj:
			return ri < rj
		case iok != jok:
			return iok
		case out[i].Key != out[j].Key:
			return out[i].Key < out[j].Key
		}
		return catRank[out[i].Category] < catRank[out[j].Category]
	})
	return out
}

// mean is only called on non-empty groups
func mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}
