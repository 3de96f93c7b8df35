package core

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gigchain/core/types"
)

func TestEventStreamBacklogFromCursor(t *testing.T) {
	stream := NewEventStream()
	for i := 0; i < 5; i++ {
		stream.Publish(EventUpdate{Module: "jobs", Event: &types.Event{Type: "jobs.created"}})
	}
	_, cancel, backlog := stream.Subscribe(context.Background(), "3")
	defer cancel()
	require.Len(t, backlog, 2)
	require.Equal(t, uint64(4), backlog[0].Sequence)
	require.Equal(t, "5", backlog[1].Cursor)

	_, cancelAll, all := stream.Subscribe(context.Background(), "not-a-number")
	defer cancelAll()
	require.Len(t, all, 5)
}

func TestEventStreamHistoryIsBounded(t *testing.T) {
	stream := NewEventStream()
	for i := 0; i < eventHistoryLimit+10; i++ {
		stream.Publish(EventUpdate{Event: &types.Event{Type: "bank.transfer"}})
	}
	_, cancel, backlog := stream.Subscribe(context.Background(), "")
	defer cancel()
	require.Len(t, backlog, eventHistoryLimit)
	require.Equal(t, uint64(11), backlog[0].Sequence)
}

func TestEventStreamCancelClosesChannel(t *testing.T) {
	stream := NewEventStream()
	ctx, stop := context.WithCancel(context.Background())
	updates, cancel, _ := stream.Subscribe(ctx, "")
	require.Equal(t, 1, stream.Subscribers())

	stream.Publish(EventUpdate{Event: &types.Event{Type: "escrow.created", Attributes: map[string]string{"jobId": "1"}}})
	got := <-updates
	require.Equal(t, "1", got.Event.Attributes["jobId"])

	stop()
	for range updates {
	}
	require.Equal(t, 0, stream.Subscribers())
	cancel()
}

func TestEventStreamCancelStopsWatchers(t *testing.T) {
	stream := NewEventStream()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	baseline := runtime.NumGoroutine()

	cancels := make([]func(), 0, 64)
	for i := 0; i < 32; i++ {
		_, cancel, _ := stream.Subscribe(ctx, "")
		cancels = append(cancels, cancel)
		_, cancel, _ = stream.Subscribe(context.Background(), "")
		cancels = append(cancels, cancel)
	}
	require.Equal(t, 64, stream.Subscribers())
	for _, cancel := range cancels {
		cancel()
	}
	require.Equal(t, 0, stream.Subscribers())
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventStreamResumeContinuesSequence(t *testing.T) {
	stream := NewEventStream()
	stream.Resume(41)
	update := stream.Publish(EventUpdate{Event: &types.Event{Type: "bank.transfer"}})
	require.Equal(t, uint64(42), update.Sequence)

	stream.Resume(10)
	require.Equal(t, uint64(43), stream.Publish(EventUpdate{}).Sequence)
}
