package audit_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gigchain/core"
	"gigchain/core/types"
	"gigchain/storage/audit"
)

func openStore(t *testing.T) *audit.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := audit.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func update(seq uint64, module, typ, jobID string) core.EventUpdate {
	return core.EventUpdate{
		Sequence:  seq,
		Cursor:    fmt.Sprint(seq),
		Module:    module,
		Operation: "op",
		Timestamp: 1_800_000_000,
		Event:     &types.Event{Type: typ, Attributes: map[string]string{"jobId": jobID, "status": "posted"}},
	}
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Record(ctx, update(1, "jobs", "jobs.created", "0")))
	require.NoError(t, store.Record(ctx, update(2, "escrow", "escrow.created", "7")))
	require.NoError(t, store.Record(ctx, update(3, "jobs", "jobs.completed", "0")))

	all, err := store.List(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, uint64(1), all[0].Sequence)

	jobEntries, err := store.List(ctx, audit.Filter{Module: "jobs", JobID: "0"})
	require.NoError(t, err)
	require.Len(t, jobEntries, 2)
	attrs, err := jobEntries[1].Decode()
	require.NoError(t, err)
	require.Equal(t, "posted", attrs["status"])

	after, err := store.List(ctx, audit.Filter{AfterSequence: 2})
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, "jobs.completed", after[0].Type)

	last, err := store.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), last)
}

func TestRecordIgnoresReplayedSequence(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.Record(ctx, update(5, "jobs", "jobs.created", "1")))
	require.NoError(t, store.Record(ctx, update(5, "jobs", "jobs.created", "1")))
	entries, err := store.List(ctx, audit.Filter{Type: "jobs.created"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := audit.Open("  ")
	require.Error(t, err)

	last, err := openStore(t).LastSequence(context.Background())
	require.NoError(t, err)
	require.Zero(t, last)
}
