package metrics

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(filepath.Join(t.TempDir(), "metrics.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecorderStoresRows(t *testing.T) {
	r := newTestRecorder(t)

	_, err := r.RecordSnapshot(1, 1, 1000, 1025, 477)
	require.NoError(t, err)
	_, err = r.RecordSnapshot(2, 2, 1050, 1080, 477)
	require.NoError(t, err)

	count, err := r.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	avg, err := r.AverageLatency()
	require.NoError(t, err)
	// Latencies are 25ms and 30ms.
	assert.InDelta(t, 27.5, float64(avg.Milliseconds()), 1.0)
}

func TestRecorderJitterEWMA(t *testing.T) {
	r := newTestRecorder(t)

	// First record has no previous sample, jitter stays 0.
	rec, err := r.RecordSnapshot(1, 1, 1000, 1020, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.JitterMS)

	// Server advanced 50ms, receive advanced 58ms: instantaneous jitter 8ms,
	// smoothed by 1/8.
	rec, err = r.RecordSnapshot(2, 2, 1050, 1078, 100)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rec.JitterMS, 0.001)

	// A perfectly paced packet decays the estimate rather than zeroing it.
	rec, err = r.RecordSnapshot(3, 3, 1100, 1128, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.875, rec.JitterMS, 0.001)
}

func TestRecorderEmptyAverage(t *testing.T) {
	r := newTestRecorder(t)

	avg, err := r.AverageLatency()
	require.NoError(t, err)
	assert.Zero(t, avg)
}
