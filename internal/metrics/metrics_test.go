package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveDocument("equivalencias", "completed", 20*time.Millisecond)
	r.ObserveDocument("equivalencias", "completed", 30*time.Millisecond)
	r.ObserveDocument("unknown", "skipped", time.Millisecond)
	r.AddRecords("recipe", 3)
	r.AddRecords("recipe", 0)
	r.AddFindings("warning", 2)
	r.SetCatalogFoods(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.documentsTotal.WithLabelValues("equivalencias", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.documentsTotal.WithLabelValues("unknown", "skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.recordsTotal.WithLabelValues("recipe")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.findingsTotal.WithLabelValues("warning")))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.catalogFoods))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.AddRecords("equivalency", 5)
	r.MarkRun(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, r.WriteTextfile(path))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(blob)
	assert.Contains(t, text, `nutridoc_records_total{kind="equivalency"} 5`)
	assert.Contains(t, text, "nutridoc_last_run_timestamp_seconds 1.7e+09")
}
