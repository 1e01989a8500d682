package metricspubsub_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	metricspubsub "github.com/tdex-network/tdex-stealth/internal/infrastructure/pubsub/metrics"
)

func TestPublisher(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	publisher, err := metricspubsub.NewPublisher(reg)
	require.NoError(t, err)

	ctx := context.Background()
	statuses := []string{
		"PLANNED", "EXECUTING_HOP[0]", "EXECUTING_HOP[1]", "PARTIALLY_FAILED",
	}
	for _, status := range statuses {
		err := publisher.PublishTransferEvent(ctx, ports.TransferEvent{
			TransferID:   "id",
			Status:       status,
			PrivacyLevel: "MAXIMUM",
			HopCount:     3,
		})
		require.NoError(t, err)
	}

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	require.ElementsMatch(t, []string{
		"stealth_transfer_status_changes_total",
		"stealth_transfers_settled_total",
		"stealth_transfer_hops",
	}, names)

	count, err := testutil.GatherAndCount(reg, "stealth_transfer_status_changes_total")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// Registering twice on the same registry fails.
	_, err = metricspubsub.NewPublisher(reg)
	require.Error(t, err)
}
