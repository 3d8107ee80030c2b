package models

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecimalFormat declares how a source writes decimal numbers
type DecimalFormat string

const (
	// DecimalPoint parses values as they are ("45.2")
	DecimalPoint DecimalFormat = "point"
	// DecimalComma replaces every ',' with '.' before parsing ("45,2")
	DecimalComma DecimalFormat = "comma"
	// DecimalCommaGrouped drops '.' grouping separators, then treats ',' as the decimal mark ("1.234,56")
	DecimalCommaGrouped DecimalFormat = "comma_grouped"
)

// Valid reports whether f is a known format. The zero value means DecimalPoint.
func (f DecimalFormat) Valid() bool {
	switch f {
	case "", DecimalPoint, DecimalComma, DecimalCommaGrouped:
		return true
	}
	return false
}

// ColumnRef addresses a column by zero-based position or by header name
type ColumnRef struct {
	Index int
	Name  string
}

// Positional returns a ColumnRef for index i
func Positional(i int) ColumnRef {
	return ColumnRef{Index: i}
}

// Named returns a ColumnRef resolved against the header row
func Named(name string) ColumnRef {
	return ColumnRef{Index: -1, Name: name}
}

// IsNamed reports whether the reference needs a header lookup
func (c ColumnRef) IsNamed() bool {
	return c.Name != ""
}

func (c ColumnRef) String() string {
	if c.IsNamed() {
		return strconv.Quote(c.Name)
	}
	return strconv.Itoa(c.Index)
}

// Resolve returns the column position, looking names up in header
func (c ColumnRef) Resolve(header []string) (int, bool) {
	if !c.IsNamed() {
		return c.Index, c.Index >= 0
	}
	for i, h := range header {
		if strings.TrimSpace(h) == c.Name {
			return i, true
		}
	}
	return -1, false
}

// UnmarshalYAML accepts either an integer position or a header name
func (c *ColumnRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: column must be an index or a header name", value.Line)
	}
	if value.Tag == "!!int" {
		i, err := strconv.Atoi(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid column index %q", value.Line, value.Value)
		}
		*c = Positional(i)
		return nil
	}
	if strings.TrimSpace(value.Value) == "" {
		return fmt.Errorf("line %d: empty column name", value.Line)
	}
	*c = Named(strings.TrimSpace(value.Value))
	return nil
}

// MarshalYAML writes positions as ints and names as strings
func (c ColumnRef) MarshalYAML() (interface{}, error) {
	if c.IsNamed() {
		return c.Name, nil
	}
	return c.Index, nil
}

// SourceSpec declares one raw tabular source: where it lives, how many rows precede its header,
// which columns hold the key and the value, and which category its rows belong to.
type SourceSpec struct {
	Name         string        `yaml:"name" json:"name"`
	Path         string        `yaml:"path" json:"path"`
	Sheet        string        `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	Delimiter    string        `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	HeaderOffset int           `yaml:"header_offset" json:"header_offset"`
	Key          ColumnRef     `yaml:"key_column" json:"-"`
	Value        ColumnRef     `yaml:"value_column" json:"-"`
	Category     Category      `yaml:"category,omitempty" json:"category,omitempty"`
	Mandatory    bool          `yaml:"mandatory" json:"mandatory"`
	Decimal      DecimalFormat `yaml:"decimal,omitempty" json:"decimal,omitempty"`
}

// IsWorkbook reports whether the source is an .xlsx workbook
func (s SourceSpec) IsWorkbook() bool {
	return strings.EqualFold(filepath.Ext(s.Path), ".xlsx")
}

// MinColumns is the narrowest table that can satisfy the positional references
func (s SourceSpec) MinColumns() int {
	n := 0
	for _, ref := range []ColumnRef{s.Key, s.Value} {
		if !ref.IsNamed() && ref.Index+1 > n {
			n = ref.Index + 1
		}
	}
	return n
}

// Validate checks the declaration itself; it never touches the file
func (s SourceSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Message: "source name is required"}
	}
	if strings.TrimSpace(s.Path) == "" {
		return &ValidationError{Field: "path", Value: s.Name, Message: fmt.Sprintf("source %s: path is required", s.Name)}
	}
	if s.HeaderOffset < 0 {
		return &ValidationError{Field: "header_offset", Value: strconv.Itoa(s.HeaderOffset), Message: fmt.Sprintf("source %s: header_offset must be >= 0", s.Name)}
	}
	for field, ref := range map[string]ColumnRef{"key_column": s.Key, "value_column": s.Value} {
		if !ref.IsNamed() && ref.Index < 0 {
			return &ValidationError{Field: field, Value: ref.String(), Message: fmt.Sprintf("source %s: %s must be >= 0", s.Name, field)}
		}
	}
	if !s.Decimal.Valid() {
		return &ValidationError{Field: "decimal", Value: string(s.Decimal), Message: fmt.Sprintf("source %s: unknown decimal format %q", s.Name, s.Decimal)}
	}
	if len([]rune(s.Delimiter)) > 1 {
		return &ValidationError{Field: "delimiter", Value: s.Delimiter, Message: fmt.Sprintf("source %s: delimiter must be a single character", s.Name)}
	}
	return nil
}

// RawTable is a source after the header offset has been applied: the row that follows the
// skipped rows is kept as Header, everything after it is a data row.
type RawTable struct {
	Source string
	Path   string
	Header []string
	Rows   [][]string
	Width  int
}

// Cell returns the untrimmed cell at (row, col) and whether the row is wide enough to have it
func (t *RawTable) Cell(row, col int) (string, bool) {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return "", false
	}
	return t.Rows[row][col], true
}

// CoercionFailure tags why a value could not become a float
type CoercionFailure string

const (
	CoercionEmpty      CoercionFailure = "empty"
	CoercionNotNumeric CoercionFailure = "not_numeric"
	CoercionNonFinite  CoercionFailure = "non_finite"
)

// CoercionOutcome is the result of best-effort numeric coercion: a value, or a failure reason
type CoercionOutcome struct {
	Raw     string
	Value   float64
	Failure CoercionFailure
}

// OK reports whether coercion produced a usable value
func (o CoercionOutcome) OK() bool {
	return o.Failure == ""
}

// plainDecimal is the only number syntax accepted; strconv alone would also take hex
// floats and underscore separators.
var plainDecimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

var nonFiniteWords = map[string]bool{"nan": true, "inf": true, "infinity": true}

// CoerceFloat converts a raw cell to float64 according to the declared decimal format.
// It never fails hard; unusable input is reported through the outcome.
func CoerceFloat(raw string, format DecimalFormat) CoercionOutcome {
	out := CoercionOutcome{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		out.Failure = CoercionEmpty
		return out
	}

	switch format {
	case DecimalComma:
		s = strings.ReplaceAll(s, ",", ".")
	case DecimalCommaGrouped:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	if !plainDecimal.MatchString(s) {
		out.Failure = CoercionNotNumeric
		if nonFiniteWords[strings.ToLower(strings.TrimLeft(s, "+-"))] {
			out.Failure = CoercionNonFinite
		}
		return out
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		out.Failure = CoercionNotNumeric
		return out
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		out.Failure = CoercionNonFinite
		return out
	}
	out.Value = v
	return out
}

// Records returns the header followed by every row, each padded to Width
func (t *RawTable) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	for _, row := range append([][]string{t.Header}, t.Rows...) {
		padded := make([]string, t.Width)
		copy(padded, row)
		out = append(out, padded)
	}
	return out
}
