package services

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"energy-analytics/internal/models"
)

// loadFrame turns a raw table into a dataframe with string columns. Numeric conversion
// happens per column so that unparseable cells become NaN instead of failing the load.
func loadFrame(table *models.RawTable) (dataframe.DataFrame, error) {
	df := dataframe.LoadRecords(
		table.Records(),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, &models.MalformedLayoutError{Source: table.Source, Path: table.Path, Reason: fmt.Sprintf("unloadable table: %v", df.Err)}
	}
	return df, nil
}

// requireColumns fails with a layout error naming the first absent column
func requireColumns(df dataframe.DataFrame, table *models.RawTable, names ...string) error {
	have := make(map[string]bool)
	for _, n := range df.Names() {
		have[n] = true
	}
	for _, n := range names {
		if !have[n] {
			return &models.MalformedLayoutError{Source: table.Source, Path: table.Path, Reason: fmt.Sprintf("column %q not found in header", n)}
		}
	}
	return nil
}

// floatColumn returns the column as float64 with NaN for missing or unparseable cells
func floatColumn(df dataframe.DataFrame, name string) []float64 {
	return df.Col(name).Float()
}

// zeroNaN replaces missing values with zero in place, matching fillna(0) and sum() semantics
func zeroNaN(values []float64) []float64 {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			values[i] = 0
		}
	}
	return values
}

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
