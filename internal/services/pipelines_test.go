package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-analytics/internal/models"
)

var substitutionHeader = []string{
	"Year", "Traditional_biomass", "Coal", "Oil", "Gas", "Nuclear",
	"Hydropower", "Wind", "Solar", "Biofuels", "Other_renewables",
}

func TestEnergyMix(t *testing.T) {
	table := &models.RawTable{
		Source: "substitution",
		Header: substitutionHeader,
		Rows: [][]string{
			{"2022", "10", "40", "30", "20", "5", "4", "1", "", "0", "0"},
			{"1983", "20", "20", "25", "10", "2", "3", "0", "0", "0", "0"},
			{"", "1", "1", "1", "1", "1", "1", "1", "1", "1", "1"},
		},
		Width: len(substitutionHeader),
	}

	result, err := EnergyMix(table)
	require.NoError(t, err)

	require.Len(t, result.Series, 2, "rows without a year are ignored")
	assert.Equal(t, models.YearSeries{Year: 1983, Fossil: 55, Renewables: 3, Nuclear: 2}, result.Series[0])
	assert.Equal(t, models.YearSeries{Year: 2022, Fossil: 90, Renewables: 5, Nuclear: 5}, result.Series[1])

	require.NotEmpty(t, result.Totals)
	assert.Equal(t, models.SourceTotal{Source: "Coal", Total: 60}, result.Totals[0])
	assert.Equal(t, models.SourceTotal{Source: "Oil", Total: 55}, result.Totals[1])
	for i := 1; i < len(result.Totals); i++ {
		assert.GreaterOrEqual(t, result.Totals[i-1].Total, result.Totals[i].Total)
	}

	assert.Equal(t, 1983, result.FirstYear)
	assert.Equal(t, 2022, result.LastYear)
	var share float64
	for _, m := range result.LastYearMix {
		assert.NotEqual(t, "Traditional_biomass", m.Source)
		share += m.Share
	}
	assert.InDelta(t, 1.0, share, 1e-9)
	assert.InDelta(t, 40.0/100.0, result.LastYearMix[0].Share, 1e-9)

	require.Len(t, result.Renewables, 10)
	assert.Equal(t, models.SourceYear{Year: 1983, Source: "Solar", Value: 0}, result.Renewables[0])
	assert.Equal(t, models.SourceYear{Year: 1983, Source: "Hydropower", Value: 3}, result.Renewables[4])
	assert.Equal(t, models.SourceYear{Year: 2022, Source: "Wind", Value: 1}, result.Renewables[6])

	require.Len(t, result.Frames, 2, "one mix frame per year")
	assert.Equal(t, 1983, result.Frames[0].Year)
	assert.Equal(t, result.FirstYearMix, result.Frames[0].Mix)
	assert.Equal(t, result.LastYearMix, result.Frames[1].Mix)

	frame, ok := MixFrameForYear(result.Frames, 2022)
	require.True(t, ok)
	assert.Equal(t, 2022, frame.Year)
	_, ok = MixFrameForYear(result.Frames, 1999)
	assert.False(t, ok)
}

func TestEnergyMix_MissingColumn(t *testing.T) {
	table := &models.RawTable{
		Source: "substitution",
		Path:   "substitution/global.csv",
		Header: []string{"Year", "Coal"},
		Rows:   [][]string{{"2000", "1"}},
		Width:  2,
	}

	_, err := EnergyMix(table)
	var malformed *models.MalformedLayoutError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "substitution", malformed.Source)
	assert.Equal(t, "substitution/global.csv", malformed.Path)
}

var sustainableHeader = []string{
	"Entity", "Year",
	"Electricity from fossil fuels (TWh)", "Electricity from nuclear (TWh)", "Electricity from renewables (TWh)",
	"Low-carbon electricity (% electricity)", "gdp_per_capita",
	"Renewables (% equivalent primary energy)", "Value_co2_emissions_kt_by_country",
	"Renewable energy share in the total final energy consumption (%)",
	"Primary energy consumption per capita (kWh/person)",
}

func TestSustainableEnergy(t *testing.T) {
	table := &models.RawTable{
		Source: "sustainable",
		Header: sustainableHeader,
		Rows: [][]string{
			{"France", "2019", "40", "380", "110", "90", "40000", "12", "300000", "9.5", "45000"},
			{"France", "2020", "35", "335", "120", "91", "39000", "13", "280000", "10", "42000"},
			{"Germany", "2020", "250", "60", "250", "55", "46000", "", "600000", "18", ""},
			{"Tuvalu", "2020", "", "", "", "", "4000", "1", "0", "", "3000"},
			{"France", "2000", "50", "400", "70", "88", "35000", "8", "350000", "7", "48000"},
		},
		Width: len(sustainableHeader),
	}

	result, err := SustainableEnergy(table)
	require.NoError(t, err)

	assert.Equal(t, 2020, result.LatestYear)
	require.Len(t, result.Latest, 2, "entities without generation are left out")
	assert.Equal(t, "Germany", result.Latest[0].Entity)
	assert.Equal(t, 560.0, result.Latest[0].Total)
	assert.Equal(t, "France", result.Latest[1].Entity)
	assert.Equal(t, 490.0, result.Latest[1].Total)
	assert.Equal(t, 91.0, result.Latest[1].LowCarbonShare)

	require.Len(t, result.Global, 3)
	assert.Equal(t, 2000, result.Global[0].Year)
	y2019 := result.Global[1]
	assert.Equal(t, 2019, y2019.Year)
	assert.Equal(t, 530.0, y2019.Total)
	assert.InDelta(t, 40.0/530*100, y2019.FossilShare, 1e-9)
	assert.InDelta(t, 380.0/530*100, y2019.NuclearShare, 1e-9)
	assert.InDelta(t, 100.0, y2019.FossilShare+y2019.NuclearShare+y2019.RenewablesShare, 1e-9)
	assert.Equal(t, 2020, result.Global[2].Year)
	assert.Equal(t, 1050.0, result.Global[2].Total)

	require.Len(t, result.Scatter, 4, "rows without a renewables share are dropped")
	tuvalu := result.Scatter[2]
	assert.Equal(t, "Tuvalu", tuvalu.Entity)
	assert.Equal(t, 1.0, tuvalu.CO2Kt)

	require.Len(t, result.Transitions, 5)
	assert.Equal(t, "France", result.Transitions[0].Entity)
	assert.Equal(t, 2000, result.Transitions[0].Year)
	assert.Equal(t, 520.0, result.Transitions[0].Total)
	assert.Equal(t, "Tuvalu", result.Transitions[4].Entity)

	require.Len(t, result.Adoption, 4, "rows without a final-energy share are dropped")
	assert.Equal(t, models.AdoptionPoint{
		Entity: "Germany", Year: 2020, RenewableShare: 18, CO2Kt: 600000, PrimaryEnergyPerCapita: 0,
	}, result.Adoption[2])
	y2020 := AdoptionForYear(result.Adoption, 2020)
	require.Len(t, y2020, 2)
	assert.Equal(t, "France", y2020[0].Entity)
	assert.Equal(t, 10.0, y2020[0].RenewableShare)
}

func TestSustainableEnergy_EntityViews(t *testing.T) {
	result := &models.SustainableResult{Transitions: []models.EntityElectricity{
		{Entity: "France", Year: 2000, Total: 520},
		{Entity: "France", Year: 2010, Total: 560},
		{Entity: "France", Year: 2020, Total: 490},
		{Entity: "Germany", Year: 2000, Total: 570},
		{Entity: "Germany", Year: 2020, Total: 560},
	}}

	got := EntityTransitions(result, "germany", "France", "GERMANY", " ")
	require.Len(t, got, 5)
	assert.Equal(t, "Germany", got[0].Entity)
	assert.Equal(t, "Germany", got[1].Entity)
	assert.Equal(t, "France", got[2].Entity)
	assert.Equal(t, 2010, got[3].Year)

	assert.Empty(t, EntityTransitions(result, "Atlantis"))

	cmp := TransitionComparison(result, "france")
	require.Len(t, cmp, 2)
	assert.Equal(t, TransitionStartYear, cmp[0].Year)
	assert.Equal(t, TransitionEndYear, cmp[1].Year)
}

func TestMortalityRates(t *testing.T) {
	recs := []models.NormalizedRecord{
		{Country: "Coal", Value: 24.6},
		{Country: "Nuclear", Value: 0.03},
		{Country: "Solar", Value: 0.02},
		{Country: "Wind", Value: 0.03},
	}

	assert.Equal(t, []models.RankedValue{
		{Entity: "Solar", Value: 0.02},
		{Entity: "Nuclear", Value: 0.03},
		{Entity: "Wind", Value: 0.03},
		{Entity: "Coal", Value: 24.6},
	}, MortalityRates(recs))
	assert.Empty(t, MortalityRates(nil))
}
