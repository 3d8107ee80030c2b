package services

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"energy-analytics/internal/models"
)

var (
	fossilSources    = []string{"Coal", "Oil", "Gas"}
	renewableSources = []string{"Hydropower", "Wind", "Solar", "Biofuels", "Other_renewables"}
	// growth series order
	renewableGrowth = []string{"Solar", "Wind", "Biofuels", "Other_renewables", "Hydropower"}
)

const (
	yearColumn         = "Year"
	nuclearColumn      = "Nuclear"
	traditionalBiomass = "Traditional_biomass"
)

// EnergyMix summarizes the wide global substitution table: one row per year, one
// column per primary energy source. Missing cells count as zero.
func EnergyMix(table *models.RawTable) (*models.EnergyMixResult, error) {
	df, err := loadFrame(table)
	if err != nil {
		return nil, err
	}
	required := append([]string{yearColumn, nuclearColumn}, fossilSources...)
	required = append(required, renewableSources...)
	if err := requireColumns(df, table, required...); err != nil {
		return nil, err
	}

	rawYears := floatColumn(df, yearColumn)
	keep := make([]int, 0, len(rawYears))
	for i, y := range rawYears {
		if !isMissing(y) {
			keep = append(keep, i)
		}
	}
	years := make([]int, len(keep))
	for j, i := range keep {
		years[j] = int(math.Round(rawYears[i]))
	}

	var sources []string
	columns := make(map[string][]float64)
	for _, name := range df.Names() {
		if name == yearColumn {
			continue
		}
		all := zeroNaN(floatColumn(df, name))
		col := make([]float64, len(keep))
		for j, i := range keep {
			col[j] = all[i]
		}
		sources = append(sources, name)
		columns[name] = col
	}

	result := &models.EnergyMixResult{}

	for _, name := range sources {
		result.Totals = append(result.Totals, models.SourceTotal{Source: name, Total: floats.Sum(columns[name])})
	}
	sort.SliceStable(result.Totals, func(i, j int) bool {
		return result.Totals[i].Total > result.Totals[j].Total
	})

	sumAt := func(names []string, i int) float64 {
		row := make([]float64, len(names))
		for k, n := range names {
			row[k] = columns[n][i]
		}
		return floats.Sum(row)
	}
	for i, year := range years {
		result.Series = append(result.Series, models.YearSeries{
			Year:       year,
			Fossil:     sumAt(fossilSources, i),
			Renewables: sumAt(renewableSources, i),
			Nuclear:    columns[nuclearColumn][i],
		})
		for _, name := range renewableGrowth {
			result.Renewables = append(result.Renewables, models.SourceYear{Year: year, Source: name, Value: columns[name][i]})
		}
		result.Frames = append(result.Frames, models.MixFrame{Year: year, Mix: mixAt(sources, columns, i)})
	}
	sort.SliceStable(result.Series, func(i, j int) bool { return result.Series[i].Year < result.Series[j].Year })
	sort.SliceStable(result.Renewables, func(i, j int) bool { return result.Renewables[i].Year < result.Renewables[j].Year })
	sort.SliceStable(result.Frames, func(i, j int) bool { return result.Frames[i].Year < result.Frames[j].Year })

	if len(years) == 0 {
		return result, nil
	}
	first, last := 0, 0
	for i, y := range years {
		if y < years[first] {
			first = i
		}
		if y > years[last] {
			last = i
		}
	}
	result.FirstYear, result.FirstYearMix = years[first], mixAt(sources, columns, first)
	result.LastYear, result.LastYearMix = years[last], mixAt(sources, columns, last)
	return result, nil
}

// mixAt returns each source's share of one year's total, leaving traditional biomass out
func mixAt(sources []string, columns map[string][]float64, i int) []models.MixShare {
	var out []models.MixShare
	values := make([]float64, 0, len(sources))
	for _, name := range sources {
		if name == traditionalBiomass {
			continue
		}
		v := columns[name][i]
		out = append(out, models.MixShare{Source: name, Value: v})
		values = append(values, v)
	}
	total := floats.Sum(values)
	if total == 0 {
		return out
	}
	for k := range out {
		out[k].Share = out[k].Value / total
	}
	return out
}

// MixFrameForYear returns the mix of one year
func MixFrameForYear(frames []models.MixFrame, year int) (models.MixFrame, bool) {
	for _, f := range frames {
		if f.Year == year {
			return f, true
		}
	}
	return models.MixFrame{}, false
}
