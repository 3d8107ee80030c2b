package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"energy-analytics/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead_DelimitedHeaderOffset(t *testing.T) {
	path := writeFile(t, "3_14.csv", "Table 3.14\nSolar PV\n\nUSD/MWh\nNo,Country,Tech,Cost\n1,France ,PV,45.2\n2,Chile,PV,\n\n3,Spain,PV,38.1,extra\n")

	table, err := Read(context.Background(), models.SourceSpec{
		Name:         "solar",
		Path:         path,
		HeaderOffset: 4,
		Key:          models.Positional(1),
		Value:        models.Positional(3),
	})
	require.NoError(t, err)

	assert.Equal(t, "solar", table.Source)
	assert.Equal(t, []string{"No", "Country", "Tech", "Cost"}, table.Header)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 5, table.Width)

	cell, ok := table.Cell(0, 1)
	assert.True(t, ok)
	assert.Equal(t, "France ", cell)

	_, ok = table.Cell(1, 4)
	assert.False(t, ok)

	records := table.Records()
	require.Len(t, records, 4)
	assert.Len(t, records[0], 5)
	assert.Equal(t, "", records[1][4])
}

func TestRead_Delimiter(t *testing.T) {
	path := writeFile(t, "rates.csv", "\ufeffEntity;Deaths\nCoal;24,62\nNuclear;0,03\n")

	table, err := Read(context.Background(), models.SourceSpec{
		Name:      "mortality",
		Path:      path,
		Delimiter: ";",
		Key:       models.Named("Entity"),
		Value:     models.Named("Deaths"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Entity", "Deaths"}, table.Header)
	assert.Equal(t, [][]string{{"Coal", "24,62"}, {"Nuclear", "0,03"}}, table.Rows)
}

func TestRead_Errors(t *testing.T) {
	blocker := writeFile(t, "blocker", "a regular file, not a directory")

	tests := []struct {
		name       string
		content    string
		spec       models.SourceSpec
		checkError func(t *testing.T, err error)
	}{
		{
			name: "missing file",
			spec: models.SourceSpec{Name: "nuclear_lto", Path: filepath.Join(t.TempDir(), "absent.csv")},
			checkError: func(t *testing.T, err error) {
				var missing *models.MissingSourceError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, "nuclear_lto", missing.Source)
				assert.True(t, errors.Is(err, os.ErrNotExist))
			},
		},
		{
			name:    "nothing after offset",
			content: "a\nb\nc\n",
			spec:    models.SourceSpec{Name: "short", HeaderOffset: 4},
			checkError: func(t *testing.T, err error) {
				var malformed *models.MalformedLayoutError
				require.True(t, errors.As(err, &malformed))
				assert.Contains(t, malformed.Reason, "no header row")
			},
		},
		{
			name:    "too narrow",
			content: "x\nNo,Country,Cost\n1,FR,3\n",
			spec:    models.SourceSpec{Name: "coal", HeaderOffset: 1, Key: models.Positional(1), Value: models.Positional(14)},
			checkError: func(t *testing.T, err error) {
				var malformed *models.MalformedLayoutError
				require.True(t, errors.As(err, &malformed))
				assert.Equal(t, 15, malformed.Expected)
				assert.Equal(t, 3, malformed.Actual)
			},
		},
		{
			name: "path under a regular file",
			spec: models.SourceSpec{Name: "nuclear_lto", Path: filepath.Join(blocker, "3_22.csv")},
			checkError: func(t *testing.T, err error) {
				var unreadable *models.UnreadableSourceError
				require.True(t, errors.As(err, &unreadable))
				assert.Equal(t, "nuclear_lto", unreadable.Source)
				assert.False(t, errors.Is(err, os.ErrNotExist))
			},
		},
		{
			name: "workbook under a regular file",
			spec: models.SourceSpec{Name: "book", Path: filepath.Join(blocker, "data.xlsx")},
			checkError: func(t *testing.T, err error) {
				var unreadable *models.UnreadableSourceError
				assert.True(t, errors.As(err, &unreadable))
			},
		},
		{
			name:    "missing workbook",
			spec:    models.SourceSpec{Name: "book", Path: filepath.Join(t.TempDir(), "absent.xlsx")},
			checkError: func(t *testing.T, err error) {
				var missing *models.MissingSourceError
				assert.True(t, errors.As(err, &missing))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := tt.spec
			if spec.Path == "" {
				spec.Path = writeFile(t, "src.csv", tt.content)
			}
			table, err := Read(context.Background(), spec)
			assert.Nil(t, table)
			require.Error(t, err)
			tt.checkError(t, err)
		})
	}
}

func TestRead_HeaderOnlyIsEmptyTable(t *testing.T) {
	path := writeFile(t, "empty.csv", "Country,TOTAL\n")
	table, err := Read(context.Background(), models.SourceSpec{Name: "act", Path: path})
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Equal(t, 2, table.Width)
	assert.Equal(t, "act", table.Source)
	assert.Equal(t, path, table.Path)
}

func TestRead_Workbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Levelised costs"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"No", "Country", "Cost"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{1, "Japan", 61.5}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]interface{}{2, "Korea", 42}))
	path := filepath.Join(t.TempDir(), "costs.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := Read(context.Background(), models.SourceSpec{
		Name:         "costs",
		Path:         path,
		HeaderOffset: 1,
		Key:          models.Positional(1),
		Value:        models.Positional(2),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"No", "Country", "Cost"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Japan", table.Rows[0][1])
	assert.Equal(t, "61.5", table.Rows[0][2])
	assert.Equal(t, "Korea", table.Rows[1][1])

	_, err = Read(context.Background(), models.SourceSpec{Name: "costs", Path: path, Sheet: "Nope"})
	var malformed *models.MalformedLayoutError
	assert.True(t, errors.As(err, &malformed))
}

func TestRead_CancelledContext(t *testing.T) {
	var b []byte
	b = append(b, "k,v\n"...)
	for i := 0; i < 3*ctxCheckInterval; i++ {
		b = append(b, "x,1\n"...)
	}
	path := writeFile(t, "big.csv", string(b))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Read(ctx, models.SourceSpec{Name: "big", Path: path})
	assert.ErrorIs(t, err, context.Canceled)
}
