package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSysStatsCollectorThrottlesReuse(t *testing.T) {
	c := NewSysStatsCollector(".")

	first := c.Collect()
	require.NotZero(t, first.CPUCount)

	second := c.Collect()
	require.Equal(t, first, second)
}
