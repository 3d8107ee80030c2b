package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-analytics/internal/models"
	"energy-analytics/pkg/logging"
)

func TestNormalizer_CategoryMeansAcrossSources(t *testing.T) {
	dir := t.TempDir()
	nuclear := writeFile(t, dir, "nuclear.csv", "LCOE nuclear\nCountry,USD/MWh\nFR,60\nDE,70\n")
	green := writeFile(t, dir, "solar.csv", "LCOE solar\nCountry,USD/MWh\nFR,30\nDE,50\n")

	n, collector := newTestNormalizer(1)
	result, err := n.Normalize(context.Background(), []models.SourceSpec{
		lcoeSpec("nuclear", nuclear, models.CategoryNuclear, true),
		lcoeSpec("solar", green, models.CategoryGreen, true),
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 4)
	assert.Equal(t, models.NormalizedRecord{Country: "FR", Category: models.CategoryNuclear, Value: 60, Source: "nuclear"}, result.Records[0])
	assert.Equal(t, "solar", result.Records[3].Source)
	assert.Empty(t, result.Warnings)

	means := MeanByCategory(result.Records)
	assert.Equal(t, map[models.Category]float64{models.CategoryNuclear: 65, models.CategoryGreen: 40}, means)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.SourcesTotal.WithLabelValues("loaded")))
	assert.Equal(t, float64(4), testutil.ToFloat64(collector.RecordsNormalized))
}

func TestNormalizer_OptionalSourceFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "coal.csv", "preamble\nCountry,Cost\nPL,90\n")
	narrow := writeFile(t, dir, "gas.csv", "preamble\nCountry,Cost\nPL,80\n")

	wide := lcoeSpec("gas", narrow, models.CategoryTraditional, false)
	wide.Value = models.Positional(14)

	n, collector := newTestNormalizer(1)
	result, err := n.Normalize(context.Background(), []models.SourceSpec{
		lcoeSpec("coal", good, models.CategoryTraditional, true),
		lcoeSpec("nuclear_lto", filepath.Join(dir, "absent.csv"), models.CategoryNuclear, false),
		wide,
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	require.Len(t, result.Sources, 3)
	assert.Equal(t, models.SourceLoaded, result.Sources[0].Status)
	assert.Equal(t, models.SourceSkippedMissing, result.Sources[1].Status)
	assert.Equal(t, models.SourceSkippedMalformed, result.Sources[2].Status)
	assert.NotEmpty(t, result.Sources[2].Error)
	assert.Len(t, result.Skipped(), 2)

	require.Len(t, result.Warnings, 2)
	assert.Equal(t, models.WarnMissingSource, result.Warnings[0].Kind)
	assert.Equal(t, "nuclear_lto", result.Warnings[0].Source)
	assert.Equal(t, models.WarnMalformedLayout, result.Warnings[1].Kind)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.SourcesTotal.WithLabelValues("skipped_missing")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.SourcesTotal.WithLabelValues("skipped_malformed")))
}

func TestNormalizer_UnreadableOptionalSource(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "nuclear.csv", "preamble\nCountry,Cost\nFR,60\n")
	blocker := writeFile(t, dir, "blocker", "a regular file where a directory is expected")

	n, collector := newTestNormalizer(1)
	result, err := n.Normalize(context.Background(), []models.SourceSpec{
		lcoeSpec("nuclear", good, models.CategoryNuclear, true),
		lcoeSpec("nuclear_lto", filepath.Join(blocker, "3_22.csv"), models.CategoryNuclear, false),
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "FR", result.Records[0].Country)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, models.SourceSkippedUnreadable, result.Sources[1].Status)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.WarnUnreadable, result.Warnings[0].Kind)
	assert.Equal(t, "nuclear_lto", result.Warnings[0].Source)
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.SourcesTotal.WithLabelValues("skipped_unreadable")))
}

func TestNormalizer_SourceLogsCarryPath(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "nuclear.csv", "preamble\nCountry,Cost\nFR,60\n")
	missing := filepath.Join(dir, "wind.csv")

	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("test", "1.0.0", logging.InfoLevel)
	logger.SetOutput(&buf)
	n := NewNormalizer(1, logger, newTestCollector())

	_, err := n.Normalize(context.Background(), []models.SourceSpec{
		lcoeSpec("nuclear", good, models.CategoryNuclear, true),
		lcoeSpec("wind", missing, models.CategoryGreen, false),
	})
	require.NoError(t, err)

	bySource := make(map[string]logging.LogEntry)
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var entry logging.LogEntry
		require.NoError(t, dec.Decode(&entry))
		if entry.Source != "" {
			bySource[entry.Source] = entry
		}
	}

	require.Contains(t, bySource, "nuclear")
	assert.Equal(t, "[NORMALIZE_SOURCE_LOADED] Source normalized", bySource["nuclear"].Message)
	assert.Equal(t, good, bySource["nuclear"].Fields["path"])
	assert.Equal(t, "Nuclear", bySource["nuclear"].Fields["category"])

	require.Contains(t, bySource, "wind")
	assert.Equal(t, "WARN", bySource["wind"].Level)
	assert.Equal(t, missing, bySource["wind"].Fields["path"])
	assert.Equal(t, false, bySource["wind"].Fields["mandatory"])
	assert.Equal(t, "skipped_missing", bySource["wind"].Fields["status"])
}

func TestNormalizer_UnreadableMandatorySource(t *testing.T) {
	dir := t.TempDir()
	blocker := writeFile(t, dir, "blocker", "not a directory")

	n, _ := newTestNormalizer(1)
	_, err := n.Normalize(context.Background(), []models.SourceSpec{
		lcoeSpec("nuclear", filepath.Join(blocker, "3_1.csv"), models.CategoryNuclear, true),
	})

	var unreadable *models.UnreadableSourceError
	require.True(t, errors.As(err, &unreadable))
	assert.Equal(t, "nuclear", unreadable.Source)
}

func TestNormalizer_MandatorySourceFailures(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.csv", "only a preamble\n")

	tests := []struct {
		name  string
		spec  models.SourceSpec
		check func(*testing.T, error)
	}{
		{
			name: "missing file",
			spec: lcoeSpec("solar", filepath.Join(dir, "nope.csv"), models.CategoryGreen, true),
			check: func(t *testing.T, err error) {
				var missing *models.MissingSourceError
				assert.True(t, errors.As(err, &missing))
			},
		},
		{
			name: "nothing after the offset",
			spec: lcoeSpec("wind", empty, models.CategoryGreen, true),
			check: func(t *testing.T, err error) {
				var malformed *models.MalformedLayoutError
				assert.True(t, errors.As(err, &malformed))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, collector := newTestNormalizer(1)
			result, err := n.Normalize(context.Background(), []models.SourceSpec{tt.spec})
			require.Error(t, err)
			assert.Nil(t, result)
			tt.check(t, err)
			assert.Equal(t, float64(1), testutil.ToFloat64(collector.SourcesTotal.WithLabelValues("failed")))
		})
	}
}

func TestNormalizer_DropsUnusableRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hydro.csv", "preamble\nCountry,Cost\nFR,10\n DE ,abc\n,5\nIT,\nES,NaN\nPT, 7.5 \n")

	n, collector := newTestNormalizer(1)
	result, err := n.Normalize(context.Background(), []models.SourceSpec{
		lcoeSpec("hydro", path, models.CategoryGreen, true),
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "FR", result.Records[0].Country)
	assert.Equal(t, "PT", result.Records[1].Country)
	assert.Equal(t, 7.5, result.Records[1].Value)

	report := result.Sources[0]
	assert.Equal(t, 6, report.RowsRead)
	assert.Equal(t, 2, report.RecordsKept)
	assert.Equal(t, 1, report.DroppedMissingKey)
	assert.Equal(t, map[models.CoercionFailure]int{
		models.CoercionEmpty:      1,
		models.CoercionNotNumeric: 1,
		models.CoercionNonFinite:  1,
	}, report.DroppedByReason)
	assert.Equal(t, 4, report.Dropped())

	kinds := make([]models.WarningKind, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []models.WarningKind{
		models.WarnMissingKey, models.WarnValueCoercion, models.WarnValueCoercion, models.WarnValueCoercion,
	}, kinds)

	assert.Equal(t, float64(6), testutil.ToFloat64(collector.RowsReadTotal.WithLabelValues("hydro")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.RowsDroppedTotal.WithLabelValues("hydro", "missing_key")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.RowsDroppedTotal.WithLabelValues("hydro", "not_numeric")))
}

func TestNormalizer_DecimalComma(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deaths.csv", "Entity;Deaths\nCoal;24,6\nNuclear;0,03\nGrouped;1.234,5\n")

	spec := models.SourceSpec{
		Name:      "mortality",
		Path:      path,
		Delimiter: ";",
		Key:       models.Named("Entity"),
		Value:     models.Named("Deaths"),
		Decimal:   models.DecimalComma,
	}

	n, _ := newTestNormalizer(1)
	result, err := n.Normalize(context.Background(), []models.SourceSpec{spec})
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.InDelta(t, 24.6, result.Records[0].Value, 1e-9)
	assert.InDelta(t, 0.03, result.Records[1].Value, 1e-9)
	assert.Equal(t, 1, result.Sources[0].DroppedByReason[models.CoercionNotNumeric])
}

func TestNormalizer_UnknownNamedColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "activity.csv", "Country,TOTAL\nFR,100\n")

	spec := models.SourceSpec{Name: "activity", Path: path, Key: models.Named("Country"), Value: models.Named("Total TWh")}

	n, _ := newTestNormalizer(1)
	result, err := n.Normalize(context.Background(), []models.SourceSpec{spec})
	require.NoError(t, err)
	assert.Equal(t, models.SourceSkippedMalformed, result.Sources[0].Status)

	spec.Mandatory = true
	_, err = n.Normalize(context.Background(), []models.SourceSpec{spec})
	var malformed *models.MalformedLayoutError
	require.True(t, errors.As(err, &malformed))
	assert.Contains(t, malformed.Error(), "Total TWh")
}

func TestNormalizer_ParallelKeepsDeclarationOrder(t *testing.T) {
	const count = 8
	specs := make([]models.SourceSpec, count)
	for i := range specs {
		specs[i] = models.SourceSpec{
			Name:     fmt.Sprintf("src%d", i),
			Path:     fmt.Sprintf("src%d.csv", i),
			Key:      models.Positional(0),
			Value:    models.Positional(1),
			Category: models.CategoryGreen,
		}
	}

	n, _ := newTestNormalizer(4)
	n.read = func(ctx context.Context, spec models.SourceSpec) (*models.RawTable, error) {
		var idx int
		fmt.Sscanf(spec.Name, "src%d", &idx)
		// Later sources finish first.
		time.Sleep(time.Duration(count-idx) * 2 * time.Millisecond)
		return &models.RawTable{
			Source: spec.Name,
			Header: []string{"k", "v"},
			Rows:   [][]string{{spec.Name, fmt.Sprint(idx)}},
			Width:  2,
		}, nil
	}

	result, err := n.Normalize(context.Background(), specs)
	require.NoError(t, err)
	require.Len(t, result.Records, count)
	for i, r := range result.Records {
		assert.Equal(t, fmt.Sprintf("src%d", i), r.Country)
		assert.Equal(t, float64(i), r.Value)
		assert.Equal(t, fmt.Sprintf("src%d", i), result.Sources[i].Name)
	}
}

func TestNormalizer_UnexpectedReadErrorAborts(t *testing.T) {
	n, _ := newTestNormalizer(1)
	boom := errors.New("disk on fire")
	n.read = func(ctx context.Context, spec models.SourceSpec) (*models.RawTable, error) {
		return nil, boom
	}

	_, err := n.Normalize(context.Background(), []models.SourceSpec{
		lcoeSpec("optional", "x.csv", models.CategoryGreen, false),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestNormalizer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, _ := newTestNormalizer(2)
	n.read = func(ctx context.Context, spec models.SourceSpec) (*models.RawTable, error) {
		return nil, ctx.Err()
	}

	_, err := n.Normalize(ctx, []models.SourceSpec{
		lcoeSpec("a", "a.csv", models.CategoryGreen, false),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizer_PositionalExtractionAfterPreamble(t *testing.T) {
	dir := t.TempDir()
	row := []string{"", " Spain ", "Tech", "", "", "", "", "", "", "", "", "", "", " 45.2 ", "x"}
	header := []string{"", "Country", "Technology", "", "", "", "", "", "", "", "", "", "", "LCOE", ""}
	content := "Table 3.13\nProjected costs\n\nUSD/MWh\n" + strings.Join(header, ",") + "\n" + strings.Join(row, ",") + "\n"
	path := writeFile(t, dir, "3_13.csv", content)

	spec := models.SourceSpec{
		Name:         "nuclear_new",
		Path:         path,
		HeaderOffset: 4,
		Key:          models.Positional(1),
		Value:        models.Positional(13),
		Category:     models.CategoryNuclear,
		Mandatory:    true,
	}

	n, _ := newTestNormalizer(1)
	result, err := n.Normalize(context.Background(), []models.SourceSpec{spec})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, models.NormalizedRecord{Country: "Spain", Category: models.CategoryNuclear, Value: 45.2, Source: "nuclear_new"}, result.Records[0])
}
