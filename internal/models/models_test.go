package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestCoerceFloat covers the best-effort numeric coercion policy
func TestCoerceFloat(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		format      DecimalFormat
		wantValue   float64
		wantFailure CoercionFailure
	}{
		{name: "plain decimal", raw: "45.2", format: DecimalPoint, wantValue: 45.2},
		{name: "zero value format", raw: "45.2", format: "", wantValue: 45.2},
		{name: "padded", raw: "  45.2 ", format: DecimalPoint, wantValue: 45.2},
		{name: "negative", raw: "-3.5", format: DecimalPoint, wantValue: -3.5},
		{name: "scientific", raw: "1e3", format: DecimalPoint, wantValue: 1000},
		{name: "empty", raw: "", format: DecimalPoint, wantFailure: CoercionEmpty},
		{name: "blank", raw: "   ", format: DecimalPoint, wantFailure: CoercionEmpty},
		{name: "text", raw: "n/a", format: DecimalPoint, wantFailure: CoercionNotNumeric},
		{name: "comma under point format", raw: "45,2", format: DecimalPoint, wantFailure: CoercionNotNumeric},
		{name: "nan", raw: "NaN", format: DecimalPoint, wantFailure: CoercionNonFinite},
		{name: "infinity", raw: "inf", format: DecimalPoint, wantFailure: CoercionNonFinite},
		{name: "signed infinity word", raw: "-Infinity", format: DecimalPoint, wantFailure: CoercionNonFinite},
		{name: "out of range", raw: "1e400", format: DecimalPoint, wantFailure: CoercionNotNumeric},
		{name: "hex float", raw: "0x1p4", format: DecimalPoint, wantFailure: CoercionNotNumeric},
		{name: "underscore separators", raw: "1_000", format: DecimalPoint, wantFailure: CoercionNotNumeric},
		{name: "leading dot", raw: ".5", format: DecimalPoint, wantValue: 0.5},
		{name: "trailing dot", raw: "5.", format: DecimalPoint, wantValue: 5},
		{name: "explicit plus", raw: "+2.5E-1", format: DecimalPoint, wantValue: 0.25},
		{name: "comma decimal", raw: "24,62", format: DecimalComma, wantValue: 24.62},
		{name: "comma format leaves points alone", raw: "0.03", format: DecimalComma, wantValue: 0.03},
		{name: "grouped under comma format fails", raw: "1.234,56", format: DecimalComma, wantFailure: CoercionNotNumeric},
		{name: "grouped comma", raw: "1.234,56", format: DecimalCommaGrouped, wantValue: 1234.56},
		{name: "grouped comma without thousands", raw: "0,5", format: DecimalCommaGrouped, wantValue: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CoerceFloat(tt.raw, tt.format)
			assert.Equal(t, tt.wantFailure, out.Failure)
			assert.Equal(t, tt.raw, out.Raw)
			if tt.wantFailure == "" {
				assert.True(t, out.OK())
				assert.InDelta(t, tt.wantValue, out.Value, 1e-9)
			} else {
				assert.False(t, out.OK())
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	got, err := ParseCategory(" green ")
	require.NoError(t, err)
	assert.Equal(t, CategoryGreen, got)

	_, err = ParseCategory("Geothermal")
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "category", vErr.Field)
	assert.False(t, vErr.IsTransient())

	assert.True(t, CategoryNuclear.Valid())
	assert.False(t, Category("Solar").Valid())
}

func TestColumnRef_YAML(t *testing.T) {
	var doc struct {
		Key   ColumnRef `yaml:"key"`
		Value ColumnRef `yaml:"value"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("key: Country\nvalue: 13\n"), &doc))

	assert.True(t, doc.Key.IsNamed())
	assert.Equal(t, "Country", doc.Key.Name)
	assert.False(t, doc.Value.IsNamed())
	assert.Equal(t, 13, doc.Value.Index)

	idx, ok := doc.Key.Resolve([]string{"Index", " Country ", "TOTAL"})
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = Named("Missing").Resolve([]string{"Country"})
	assert.False(t, ok)

	err := yaml.Unmarshal([]byte("key: [1, 2]\n"), &doc)
	assert.Error(t, err)
}

func TestSourceSpec_Validate(t *testing.T) {
	valid := SourceSpec{
		Name:         "solar",
		Path:         "3_14.csv",
		HeaderOffset: 4,
		Key:          Positional(1),
		Value:        Positional(14),
		Category:     CategoryGreen,
	}
	require.NoError(t, valid.Validate())
	assert.Equal(t, 15, valid.MinColumns())

	tests := []struct {
		name   string
		mutate func(*SourceSpec)
		field  string
	}{
		{"missing name", func(s *SourceSpec) { s.Name = "" }, "name"},
		{"missing path", func(s *SourceSpec) { s.Path = " " }, "path"},
		{"negative offset", func(s *SourceSpec) { s.HeaderOffset = -1 }, "header_offset"},
		{"negative value column", func(s *SourceSpec) { s.Value = Positional(-2) }, "value_column"},
		{"unknown decimal", func(s *SourceSpec) { s.Decimal = "arabic" }, "decimal"},
		{"long delimiter", func(s *SourceSpec) { s.Delimiter = ";;" }, "delimiter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.mutate(&spec)
			err := spec.Validate()
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestSourceSpec_MinColumnsIgnoresNamedRefs(t *testing.T) {
	spec := SourceSpec{Key: Named("Country"), Value: Named("TOTAL")}
	assert.Equal(t, 0, spec.MinColumns())

	spec.Value = Positional(3)
	assert.Equal(t, 4, spec.MinColumns())
	assert.False(t, spec.IsWorkbook())

	spec.Path = "costs.XLSX"
	assert.True(t, spec.IsWorkbook())
}

func TestKeySet(t *testing.T) {
	s := NewKeySet("FR", "DE", "FR", "ES")
	assert.Equal(t, []string{"FR", "DE", "ES"}, s.Keys())
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("DE"))
	assert.False(t, s.Contains("IT"))

	var zero KeySet
	assert.False(t, zero.Contains("FR"))
	assert.True(t, zero.Add("FR"))
	assert.False(t, zero.Add("FR"))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["FR","DE","ES"]`, string(data))
}

func TestWarningFromError(t *testing.T) {
	missing := &MissingSourceError{Source: "nuclear_lto", Path: "3_22.csv", Err: os.ErrNotExist}
	w, ok := WarningFromError(fmt.Errorf("normalize: %w", missing))
	require.True(t, ok)
	assert.Equal(t, WarnMissingSource, w.Kind)
	assert.Equal(t, "nuclear_lto", w.Source)
	assert.True(t, errors.Is(missing, os.ErrNotExist))

	malformed := &MalformedLayoutError{Source: "coal", Path: "3_21.csv", Expected: 15, Actual: 4, Reason: "too few columns"}
	w, ok = WarningFromError(malformed)
	require.True(t, ok)
	assert.Equal(t, WarnMalformedLayout, w.Kind)
	assert.Contains(t, w.Message, "expected at least 15 columns, got 4")

	unreadable := &UnreadableSourceError{Source: "wind", Path: "3_6.csv", Err: os.ErrPermission}
	w, ok = WarningFromError(fmt.Errorf("normalize: %w", unreadable))
	require.True(t, ok)
	assert.Equal(t, WarnUnreadable, w.Kind)
	assert.Equal(t, "wind", w.Source)
	assert.True(t, errors.Is(unreadable, os.ErrPermission))
	assert.Equal(t, SourceSkippedUnreadable, SkipStatus(w.Kind))
	assert.Equal(t, SourceSkippedMissing, SkipStatus(WarnMissingSource))
	assert.Equal(t, SourceSkippedMalformed, SkipStatus(WarnMalformedLayout))

	_, ok = WarningFromError(errors.New("disk on fire"))
	assert.False(t, ok)
}

func TestSourceReport_Dropped(t *testing.T) {
	r := SourceReport{
		DroppedMissingKey: 2,
		DroppedByReason: map[CoercionFailure]int{
			CoercionNotNumeric: 3,
			CoercionEmpty:      1,
		},
	}
	assert.Equal(t, 6, r.Dropped())
	assert.Equal(t, []CoercionFailure{CoercionEmpty, CoercionNotNumeric}, r.CoercionFailures())
}
