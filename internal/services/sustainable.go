package services

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"energy-analytics/internal/models"
)

const (
	entityColumn        = "Entity"
	fossilElecColumn    = "Electricity from fossil fuels (TWh)"
	nuclearElecColumn   = "Electricity from nuclear (TWh)"
	renewableElecColumn = "Electricity from renewables (TWh)"
	lowCarbonColumn     = "Low-carbon electricity (% electricity)"
	gdpColumn           = "gdp_per_capita"
	renewableShareCol   = "Renewables (% equivalent primary energy)"
	co2Column           = "Value_co2_emissions_kt_by_country"
	finalShareColumn    = "Renewable energy share in the total final energy consumption (%)"
	perCapitaColumn     = "Primary energy consumption per capita (kWh/person)"
)

// The panel covers 2000 to 2020; per-entity transitions are reported over that window
const (
	TransitionStartYear = 2000
	TransitionEndYear   = 2020
)

// DefaultTransitionEntities are compared when no entity is requested
var DefaultTransitionEntities = []string{"Germany", "France", "United States", "China"}

// DefaultComparisonEntity is used for the start/end comparison when no entity is requested
const DefaultComparisonEntity = "France"

// SustainableEnergy summarizes the per-country sustainable energy panel
func SustainableEnergy(table *models.RawTable) (*models.SustainableResult, error) {
	df, err := loadFrame(table)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(df, table,
		entityColumn, yearColumn, fossilElecColumn, nuclearElecColumn, renewableElecColumn,
		lowCarbonColumn, gdpColumn, renewableShareCol, co2Column, finalShareColumn, perCapitaColumn,
	); err != nil {
		return nil, err
	}

	entities := df.Col(entityColumn).Records()
	years := floatColumn(df, yearColumn)
	fossil := zeroNaN(floatColumn(df, fossilElecColumn))
	nuclear := zeroNaN(floatColumn(df, nuclearElecColumn))
	renewables := zeroNaN(floatColumn(df, renewableElecColumn))
	lowCarbon := zeroNaN(floatColumn(df, lowCarbonColumn))
	gdp := floatColumn(df, gdpColumn)
	share := floatColumn(df, renewableShareCol)
	co2 := floatColumn(df, co2Column)
	finalShare := floatColumn(df, finalShareColumn)
	perCapita := floatColumn(df, perCapitaColumn)

	result := &models.SustainableResult{}
	latest := math.Inf(-1)
	for _, y := range years {
		if !isMissing(y) && y > latest {
			latest = y
		}
	}

	global := make(map[int]*models.YearlyElectricity)
	for i := range entities {
		if isMissing(years[i]) {
			continue
		}
		entity := strings.TrimSpace(entities[i])
		year := int(math.Round(years[i]))
		parts := []float64{fossil[i], nuclear[i], renewables[i]}
		total := floats.Sum(parts)

		g, ok := global[year]
		if !ok {
			g = &models.YearlyElectricity{Year: year}
			global[year] = g
		}
		g.Fossil += fossil[i]
		g.Nuclear += nuclear[i]
		g.Renewables += renewables[i]
		g.Total += total

		row := models.EntityElectricity{
			Entity:         entity,
			Year:           year,
			Fossil:         fossil[i],
			Nuclear:        nuclear[i],
			Renewables:     renewables[i],
			Total:          total,
			LowCarbonShare: lowCarbon[i],
		}
		if years[i] == latest && total > 0 {
			result.Latest = append(result.Latest, row)
		}
		if year >= TransitionStartYear && year <= TransitionEndYear {
			result.Transitions = append(result.Transitions, row)
		}

		if !isMissing(finalShare[i]) && !isMissing(co2[i]) {
			size := perCapita[i]
			if isMissing(size) {
				size = 0
			}
			result.Adoption = append(result.Adoption, models.AdoptionPoint{
				Entity:                 entity,
				Year:                   year,
				RenewableShare:         finalShare[i],
				CO2Kt:                  co2[i],
				PrimaryEnergyPerCapita: size,
			})
		}

		c := co2[i]
		if c == 0 {
			c = 1
		}
		if isMissing(gdp[i]) || isMissing(share[i]) || isMissing(c) {
			continue
		}
		result.Scatter = append(result.Scatter, models.GDPPoint{
			Entity:          entity,
			Year:            year,
			GDPPerCapita:    gdp[i],
			RenewablesShare: share[i],
			CO2Kt:           c,
		})
	}

	if !math.IsInf(latest, -1) {
		result.LatestYear = int(math.Round(latest))
	}
	sort.SliceStable(result.Latest, func(i, j int) bool { return result.Latest[i].Total > result.Latest[j].Total })
	sort.SliceStable(result.Transitions, func(i, j int) bool {
		a, b := result.Transitions[i], result.Transitions[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		return a.Year < b.Year
	})

	for _, g := range global {
		if g.Total > 0 {
			g.FossilShare = g.Fossil / g.Total * 100
			g.NuclearShare = g.Nuclear / g.Total * 100
			g.RenewablesShare = g.Renewables / g.Total * 100
		}
		result.Global = append(result.Global, *g)
	}
	sort.Slice(result.Global, func(i, j int) bool { return result.Global[i].Year < result.Global[j].Year })

	return result, nil
}

// EntityTransitions returns the transition-window rows of the named entities, grouped in
// the order the entities are given. Names match case-insensitively.
func EntityTransitions(result *models.SustainableResult, entities ...string) []models.EntityElectricity {
	var out []models.EntityElectricity
	seen := models.NewKeySet()
	for _, name := range entities {
		name = strings.TrimSpace(name)
		if name == "" || !seen.Add(strings.ToLower(name)) {
			continue
		}
		for _, row := range result.Transitions {
			if strings.EqualFold(row.Entity, name) {
				out = append(out, row)
			}
		}
	}
	return out
}

// TransitionComparison returns the first and last year of the transition window for one entity
func TransitionComparison(result *models.SustainableResult, entity string) []models.EntityElectricity {
	var out []models.EntityElectricity
	for _, row := range EntityTransitions(result, entity) {
		if row.Year == TransitionStartYear || row.Year == TransitionEndYear {
			out = append(out, row)
		}
	}
	return out
}

// AdoptionForYear filters the renewable adoption scatter to one year
func AdoptionForYear(points []models.AdoptionPoint, year int) []models.AdoptionPoint {
	var out []models.AdoptionPoint
	for _, p := range points {
		if p.Year == year {
			out = append(out, p)
		}
	}
	return out
}
