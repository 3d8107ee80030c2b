package services

import (
	"sort"

	"energy-analytics/internal/models"
)

// MortalityRates orders entities by death rate per TWh, lowest first. Entities with equal
// rates keep their file order.
func MortalityRates(records []models.NormalizedRecord) []models.RankedValue {
	out := make([]models.RankedValue, 0, len(records))
	for _, r := range records {
		out = append(out, models.RankedValue{Entity: r.Country, Value: r.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
