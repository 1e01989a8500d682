package kafkapubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newPublisher(writer, "transfers")

	event := ports.TransferEvent{
		TransferID:   "transfer-1",
		SessionID:    "session",
		Status:       "EXECUTING_HOP[1]",
		PrivacyLevel: "MAXIMUM",
		HopIndex:     1,
		HopCount:     3,
		Timestamp:    1700000000,
	}
	err := publisher.PublishTransferEvent(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, writer.msgs, 1)
	require.Equal(t, []byte("transfer-1"), writer.msgs[0].Key)

	var got ports.TransferEvent
	err = json.Unmarshal(writer.msgs[0].Value, &got)
	require.NoError(t, err)
	require.Equal(t, event, got)

	require.NoError(t, publisher.Close())
	require.True(t, writer.closed)
}

func TestFailingPublisher(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		writer := &fakeWriter{err: fmt.Errorf("broker unreachable")}
		publisher := newPublisher(writer, "transfers")

		err := publisher.PublishTransferEvent(
			context.Background(), ports.TransferEvent{TransferID: "id"},
		)
		require.ErrorContains(t, err, "broker unreachable")
	})

	t.Run("new", func(t *testing.T) {
		_, err := NewPublisher(nil, "transfers")
		require.Error(t, err)

		_, err = NewPublisher([]string{"localhost:9092"}, "")
		require.Error(t, err)
	})
}
