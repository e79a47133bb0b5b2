package metrics

import (
	"errors"
	"testing"

	"dexindexer/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexer_ObserveEvent(t *testing.T) {
	m := NewIndexer(prometheus.NewRegistry())

	m.ObserveEvent("loans.Borrowed", "processed", 100)
	m.ObserveEvent("loans.Borrowed", "processed", 101)
	m.ObserveEvent("loans.Borrowed", "skipped", 102)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues("loans.Borrowed", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("loans.Borrowed", "skipped")))
	assert.Equal(t, 102.0, testutil.ToFloat64(m.LastHeight))
}

func TestIndexer_ObserveFlush(t *testing.T) {
	m := NewIndexer(prometheus.NewRegistry())

	m.ObserveFlush(map[string]int{"swap": 3, "aggregate": 11}, 0.01, nil)
	m.ObserveFlush(map[string]int{"swap": 1}, 0.02, errors.New("down"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FlushedRecords.WithLabelValues("swap")))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.FlushedRecords.WithLabelValues("aggregate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushErrors))
}

func TestIndexer_ObserveIngest(t *testing.T) {
	m := NewIndexer(prometheus.NewRegistry())

	m.ObserveIngest("accepted")
	m.ObserveIngest("duplicate")
	m.ObserveIngest("accepted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Ingested.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ingested.WithLabelValues("duplicate")))
}

func TestIndexer_NilIsNoop(t *testing.T) {
	var m *Indexer

	assert.NotPanics(t, func() {
		m.ObserveEvent("x", "processed", 1)
		m.ObserveFlush(nil, 0, nil)
		m.ObserveIngest("accepted")
	})
}

func TestStartProfiler_Disabled(t *testing.T) {
	p, err := StartProfiler(config.PyroscopeConfig{Enabled: false}, "indexer-1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProfilerTags(t *testing.T) {
	tags := profilerTags(map[string]string{"region": "eu", "service": "custom"}, "indexer-1")

	assert.Equal(t, map[string]string{
		"service":  "custom",
		"instance": "indexer-1",
		"region":   "eu",
	}, tags)
}
