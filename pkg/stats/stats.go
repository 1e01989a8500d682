package stats

import (
	"bufio"
	"context"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	BYTE = 1 << (10 * iota)
	KILOBYTE
	MEGABYTE
	GIGABYTE
)

// Opts configures the periodic statistics reporter.
type Opts struct {
	Interval time.Duration
	// DumpFile, if set, receives the gathered metrics when the context is done.
	DumpFile string
	Gatherer prometheus.Gatherer
	// ActiveTransfers, if set, is logged along with the memory statistics.
	ActiveTransfers func() int
}

// EnableMemoryStatistics starts a go routine that periodically logs memory
// usage and number of go routines of the process, until ctx is done.
func EnableMemoryStatistics(ctx context.Context, opts Opts) {
	if opts.Interval <= 0 {
		return
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	ticker := time.NewTicker(opts.Interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				PrintMemoryStatistics()
				PrintNumOfRoutines()
				if opts.ActiveTransfers != nil {
					log.Infof("Num of active transfers: %d", opts.ActiveTransfers())
				}
			case <-ctx.Done():
				if opts.DumpFile == "" {
					return
				}
				if err := DumpMetrics(gatherer, opts.DumpFile); err != nil {
					log.WithError(err).Warn("stats: failed to dump metrics")
				}
				return
			}
		}
	}()
}

func toMegabytes(bytes uint64) float64 {
	return float64(bytes) / MEGABYTE
}

// PrintMemoryStatistics prints memory statistics using go runtime library.
func PrintMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Infof(
		"Total allocated: %.3fMB, Heap allocated: %.3fMB, "+
			"Allocated objects count: %v, Freed objects count: %v",
		toMegabytes(memStats.TotalAlloc),
		toMegabytes(memStats.HeapAlloc),
		memStats.Mallocs,
		memStats.Frees,
	)
}

// DumpMetrics appends the metrics collected by gatherer to the given file.
func DumpMetrics(gatherer prometheus.Gatherer, filename string) error {
	file, err := os.OpenFile(
		filename,
		os.O_APPEND|os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return err
	}
	defer file.Close()

	metricFamily, err := gatherer.Gather()
	if err != nil {
		return err
	}

	writer := bufio.NewWriter(file)
	for _, v := range metricFamily {
		if _, err := writer.WriteString(v.String() + "\n"); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// PrintNumOfRoutines prints number of go routines currently running
func PrintNumOfRoutines() {
	log.Infof("Num of go routines: %v", runtime.NumGoroutine())
}
