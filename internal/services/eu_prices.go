package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"energy-analytics/internal/models"
)

// euHeaderNames maps the published Spanish headers to their English names
var euHeaderNames = map[string]string{
	"fecha":               "date",
	"hora":                "time",
	"sistema":             "system_code",
	"bandera":             "is_green_energy",
	"precio":              "price_eur_mwh",
	"tipo_moneda":         "currency_type",
	"origen_dato":         "data_source",
	"fecha_actualizacion": "last_updated",
}

var euDateLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006", "2006-01-02", "02/01/2006 15:04:05", "2006-01-02 15:04:05"}

var euTimeLayouts = []string{"15:04:05", "15:04"}

// PricePoint is one cleaned day-ahead price observation
type PricePoint struct {
	Date  time.Time
	Hour  int
	Green bool
	Price float64
}

// PriceParseStats counts what happened while cleaning the price table
type PriceParseStats struct {
	RowsRead      int
	RowsKept      int
	UnmappedFlags int
	Dropped       map[string]int
}

// ParseEUPrices renames the headers, maps the green-energy flag and drops rows whose
// date, hour or price cannot be parsed. Unmapped flags count as conventional energy.
func ParseEUPrices(table *models.RawTable, decimal models.DecimalFormat) ([]PricePoint, PriceParseStats, error) {
	counts := PriceParseStats{RowsRead: len(table.Rows), Dropped: make(map[string]int)}

	cols := make(map[string]int)
	for i, h := range table.Header {
		name := strings.ToLower(strings.TrimSpace(h))
		if english, ok := euHeaderNames[name]; ok {
			name = english
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"date", "time", "is_green_energy", "price_eur_mwh"} {
		if _, ok := cols[required]; !ok {
			return nil, counts, &models.MalformedLayoutError{
				Source: table.Source,
				Path:   table.Path,
				Reason: fmt.Sprintf("column %q not found in header", required),
			}
		}
	}

	points := make([]PricePoint, 0, len(table.Rows))
	for i := range table.Rows {
		rawFlag, _ := table.Cell(i, cols["is_green_energy"])
		green, mapped := parseGreenFlag(rawFlag)
		if !mapped {
			counts.UnmappedFlags++
		}

		rawDate, _ := table.Cell(i, cols["date"])
		date, ok := parseDayFirst(rawDate)
		if !ok {
			counts.Dropped["date"]++
			continue
		}
		rawTime, _ := table.Cell(i, cols["time"])
		hour, ok := parseHour(rawTime)
		if !ok {
			counts.Dropped["hour"]++
			continue
		}
		rawPrice, _ := table.Cell(i, cols["price_eur_mwh"])
		price := models.CoerceFloat(rawPrice, decimal)
		if !price.OK() {
			counts.Dropped[string(price.Failure)]++
			continue
		}

		points = append(points, PricePoint{Date: date, Hour: hour, Green: green, Price: price.Value})
	}
	counts.RowsKept = len(points)
	return points, counts, nil
}

func parseGreenFlag(raw string) (green bool, mapped bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "Y", "1":
		return true, true
	case "N", "0":
		return false, true
	}
	return false, false
}

func parseDayFirst(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range euDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parseHour(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range euTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), true
		}
	}
	return 0, false
}

// groupMean averages one group of prices. An empty group has no mean.
func groupMean(prices []float64) (float64, bool) {
	if len(prices) == 0 {
		return 0, false
	}
	m, err := stats.Mean(prices)
	if err != nil {
		return 0, false
	}
	return m, true
}

// HourlyAverages returns the mean green and conventional price for every hour of the
// day that has data, with their spread when both are present
func HourlyAverages(points []PricePoint) []models.HourlyPrice {
	green := make(map[int][]float64)
	conv := make(map[int][]float64)
	for _, p := range points {
		if p.Green {
			green[p.Hour] = append(green[p.Hour], p.Price)
		} else {
			conv[p.Hour] = append(conv[p.Hour], p.Price)
		}
	}

	var out []models.HourlyPrice
	for hour := 0; hour < 24; hour++ {
		g, gok := groupMean(green[hour])
		c, cok := groupMean(conv[hour])
		if !gok && !cok {
			continue
		}
		row := models.HourlyPrice{Hour: hour}
		if gok {
			row.Green = floatPtr(g)
		}
		if cok {
			row.Conventional = floatPtr(c)
		}
		if gok && cok {
			row.Spread = floatPtr(g - c)
		}
		out = append(out, row)
	}
	return out
}

type dateHour struct {
	date time.Time
	hour int
}

// PriceGaps pivots mean prices by (date, hour) and returns green minus conventional
// wherever both energy types were priced, ordered by date then hour
func PriceGaps(points []PricePoint) []models.PriceGap {
	green := make(map[dateHour][]float64)
	conv := make(map[dateHour][]float64)
	for _, p := range points {
		k := dateHour{p.Date, p.Hour}
		if p.Green {
			green[k] = append(green[k], p.Price)
		} else {
			conv[k] = append(conv[k], p.Price)
		}
	}

	var out []models.PriceGap
	for k, prices := range green {
		gv, _ := groupMean(prices)
		cv, ok := groupMean(conv[k])
		if !ok {
			continue
		}
		out = append(out, models.PriceGap{Date: k.date, Hour: k.hour, Gap: gv - cv})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

// Candles builds open/high/low/close per energy type and date-hour bucket. Open and
// close follow file order. Conventional candles come first, each type in time order.
func Candles(points []PricePoint) []models.Candle {
	type key struct {
		green  bool
		bucket time.Time
	}
	index := make(map[key]int)
	var out []models.Candle
	for _, p := range points {
		k := key{p.Green, p.Date.Add(time.Duration(p.Hour) * time.Hour)}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, models.Candle{
				Green: p.Green, Bucket: k.bucket,
				Open: p.Price, High: p.Price, Low: p.Price, Close: p.Price,
			})
			continue
		}
		c := &out[i]
		if p.Price > c.High {
			c.High = p.Price
		}
		if p.Price < c.Low {
			c.Low = p.Price
		}
		c.Close = p.Price
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Green != out[j].Green {
			return !out[i].Green
		}
		return out[i].Bucket.Before(out[j].Bucket)
	})
	return out
}

func floatPtr(v float64) *float64 { return &v }
