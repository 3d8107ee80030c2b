package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-analytics/internal/models"
)

func euTable(rows ...[]string) *models.RawTable {
	return &models.RawTable{
		Source: "eu_prices",
		Header: []string{"fecha", "hora", "sistema", "bandera", "precio", "tipo_moneda"},
		Rows:   rows,
		Width:  6,
	}
}

func TestParseEUPrices(t *testing.T) {
	table := euTable(
		[]string{"01/02/2023", "10:00:00", "ES", "Y", "50", "EUR"},
		[]string{"01/02/2023", "10:00:00", "ES", " n ", "80", "EUR"},
		[]string{"01/02/2023", "10:30", "ES", "1", "70", "EUR"},
		[]string{"2023-02-02", "11:00:00", "ES", "maybe", "90", "EUR"},
		[]string{"31/31/2023", "10:00:00", "ES", "Y", "50", "EUR"},
		[]string{"01/02/2023", "noon", "ES", "Y", "50", "EUR"},
		[]string{"01/02/2023", "12:00", "ES", "0", "", "EUR"},
	)

	points, stats, err := ParseEUPrices(table, models.DecimalPoint)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.RowsRead)
	assert.Equal(t, 4, stats.RowsKept)
	assert.Equal(t, 1, stats.UnmappedFlags)
	assert.Equal(t, map[string]int{"date": 1, "hour": 1, "empty": 1}, stats.Dropped)

	require.Len(t, points, 4)
	feb1 := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, PricePoint{Date: feb1, Hour: 10, Green: true, Price: 50}, points[0])
	assert.Equal(t, PricePoint{Date: feb1, Hour: 10, Green: false, Price: 80}, points[1])
	assert.Equal(t, PricePoint{Date: feb1, Hour: 10, Green: true, Price: 70}, points[2])
	assert.False(t, points[3].Green, "unmapped flags count as conventional")
	assert.Equal(t, time.Date(2023, 2, 2, 0, 0, 0, 0, time.UTC), points[3].Date)
}

func TestParseEUPrices_DecimalComma(t *testing.T) {
	table := euTable([]string{"01/02/2023", "10:00", "ES", "Y", "50,5", "EUR"})

	points, _, err := ParseEUPrices(table, models.DecimalComma)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 50.5, points[0].Price)
}

func TestParseEUPrices_MissingColumn(t *testing.T) {
	table := &models.RawTable{
		Source: "eu_prices",
		Path:   "data/eu/prices.csv",
		Header: []string{"fecha", "hora", "precio"},
		Width:  3,
	}

	_, _, err := ParseEUPrices(table, models.DecimalPoint)
	var malformed *models.MalformedLayoutError
	require.True(t, errors.As(err, &malformed))
	assert.Contains(t, malformed.Reason, "is_green_energy")
	assert.Equal(t, "data/eu/prices.csv", malformed.Path)
	assert.Contains(t, err.Error(), "(data/eu/prices.csv)")
}

func TestHourlyAverages(t *testing.T) {
	day := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	points := []PricePoint{
		{Date: day, Hour: 10, Green: true, Price: 50},
		{Date: day, Hour: 10, Green: true, Price: 70},
		{Date: day, Hour: 10, Green: false, Price: 80},
		{Date: day, Hour: 3, Green: false, Price: 40},
	}

	hourly := HourlyAverages(points)
	require.Len(t, hourly, 2)

	assert.Equal(t, 3, hourly[0].Hour)
	assert.Nil(t, hourly[0].Green)
	require.NotNil(t, hourly[0].Conventional)
	assert.Equal(t, 40.0, *hourly[0].Conventional)
	assert.Nil(t, hourly[0].Spread)

	assert.Equal(t, 10, hourly[1].Hour)
	assert.Equal(t, 60.0, *hourly[1].Green)
	assert.Equal(t, 80.0, *hourly[1].Conventional)
	assert.Equal(t, -20.0, *hourly[1].Spread)

	assert.Empty(t, HourlyAverages(nil))
}

func TestHourlyAverages_ThreePricesInOneHour(t *testing.T) {
	day := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	points := []PricePoint{
		{Date: day, Hour: 7, Green: false, Price: 10},
		{Date: day.AddDate(0, 0, 1), Hour: 7, Green: false, Price: 20},
		{Date: day.AddDate(0, 0, 2), Hour: 7, Green: false, Price: 45},
	}

	hourly := HourlyAverages(points)
	require.Len(t, hourly, 1)
	assert.InDelta(t, 25.0, *hourly[0].Conventional, 1e-9)
	assert.Nil(t, hourly[0].Green)

	_, ok := groupMean(nil)
	assert.False(t, ok)
}

func TestPriceGaps(t *testing.T) {
	d1 := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	points := []PricePoint{
		{Date: d2, Hour: 1, Green: true, Price: 30},
		{Date: d2, Hour: 1, Green: false, Price: 10},
		{Date: d1, Hour: 5, Green: true, Price: 20},
		{Date: d1, Hour: 5, Green: false, Price: 25},
		{Date: d1, Hour: 2, Green: true, Price: 99},
	}

	assert.Equal(t, []models.PriceGap{
		{Date: d1, Hour: 5, Gap: -5},
		{Date: d2, Hour: 1, Gap: 20},
	}, PriceGaps(points))
}

func TestCandles(t *testing.T) {
	day := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	points := []PricePoint{
		{Date: day, Hour: 11, Green: true, Price: 40},
		{Date: day, Hour: 10, Green: false, Price: 80},
		{Date: day, Hour: 10, Green: false, Price: 95},
		{Date: day, Hour: 10, Green: false, Price: 60},
		{Date: day, Hour: 10, Green: false, Price: 70},
	}

	candles := Candles(points)
	require.Len(t, candles, 2)

	assert.Equal(t, models.Candle{
		Green: false, Bucket: day.Add(10 * time.Hour),
		Open: 80, High: 95, Low: 60, Close: 70,
	}, candles[0])
	assert.Equal(t, models.Candle{
		Green: true, Bucket: day.Add(11 * time.Hour),
		Open: 40, High: 40, Low: 40, Close: 40,
	}, candles[1])
}
