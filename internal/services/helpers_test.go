package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"energy-analytics/internal/models"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

func newTestCollector() *metrics.Collector {
	return metrics.NewCollector("test", prometheus.NewRegistry())
}

func newTestNormalizer(workers int) (*Normalizer, *metrics.Collector) {
	collector := newTestCollector()
	return NewNormalizer(workers, logging.NewNopLogger(), collector), collector
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// lcoeSpec declares a two-column source with one preamble line
func lcoeSpec(name, path string, category models.Category, mandatory bool) models.SourceSpec {
	return models.SourceSpec{
		Name:         name,
		Path:         path,
		HeaderOffset: 1,
		Key:          models.Positional(0),
		Value:        models.Positional(1),
		Category:     category,
		Mandatory:    mandatory,
	}
}

func records(t *testing.T, rows ...interface{}) []models.NormalizedRecord {
	t.Helper()
	require.Zero(t, len(rows)%3, "rows come in key, category, value triples")
	out := make([]models.NormalizedRecord, 0, len(rows)/3)
	for i := 0; i < len(rows); i += 3 {
		out = append(out, models.NormalizedRecord{
			Country:  rows[i].(string),
			Category: rows[i+1].(models.Category),
			Value:    rows[i+2].(float64),
		})
	}
	return out
}
