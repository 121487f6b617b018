package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "catalog")

	ch := make(chan *prometheus.Desc, 20)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	require.Len(t, names, 8)
	for _, n := range names {
		assert.True(t, strings.Contains(n, "storefront_db_pool_"), n)
	}
}

func TestPoolStatsCollector_NilPoolCollectsNothing(t *testing.T) {
	c := NewPoolStatsCollector(nil, "catalog")
	ch := make(chan prometheus.Metric, 20)
	c.Collect(ch)
	close(ch)
	assert.Empty(t, ch)
}

func TestRegisterPoolMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, nil, "catalog"))
	assert.Error(t, RegisterPoolMetrics(reg, nil, "catalog"), "duplicate registration")
}
