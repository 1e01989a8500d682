package stats_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/pkg/stats"
)

func newTestRegistry(t *testing.T) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "Test counter.",
	})
	require.NoError(t, reg.Register(counter))
	counter.Add(3)
	return reg
}

func TestDumpMetrics(t *testing.T) {
	reg := newTestRegistry(t)
	filename := filepath.Join(t.TempDir(), "stats")

	err := stats.DumpMetrics(reg, filename)
	require.NoError(t, err)
	err = stats.DumpMetrics(reg, filename)
	require.NoError(t, err)

	buf, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.Contains(t, string(buf), "test_counter_total")
}

func TestEnableMemoryStatistics(t *testing.T) {
	reg := newTestRegistry(t)
	filename := filepath.Join(t.TempDir(), "stats")

	ctx, cancel := context.WithCancel(context.Background())
	stats.EnableMemoryStatistics(ctx, stats.Opts{
		Interval:        time.Millisecond,
		DumpFile:        filename,
		Gatherer:        reg,
		ActiveTransfers: func() int { return 1 },
	})
	time.Sleep(5 * time.Millisecond)
	cancel()

	require.Eventually(t, func() bool {
		buf, err := os.ReadFile(filename)
		return err == nil && len(buf) > 0
	}, time.Second, 5*time.Millisecond)
}
