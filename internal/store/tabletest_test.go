package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tckz/visitor-counter/internal/counter"
)

// exerciseTable runs the Table contract against t.
func exerciseTable(t *testing.T, tbl counter.Table) {
	t.Helper()
	ctx := context.Background()
	key := counter.RecordKey

	res, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, counter.StatusNotFound, res.Status)

	err = tbl.Merge(ctx, counter.Record{Key: key, CounterID: 5}, counter.Unconditional())
	require.ErrorIs(t, err, counter.ErrNotFound)

	require.NoError(t, tbl.Create(ctx, counter.Record{Key: key, CounterID: 1}))
	require.ErrorIs(t, tbl.Create(ctx, counter.Record{Key: key, CounterID: 1}), counter.ErrAlreadyExists)

	res, err = tbl.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, counter.StatusFound, res.Status)
	require.Equal(t, int64(1), res.Record.CounterID)
	require.NotEmpty(t, res.Record.ETag)
	first := res.Record.ETag

	require.NoError(t, tbl.Merge(ctx, counter.Record{Key: key, CounterID: 2}, counter.IfMatch(first)))

	res, err = tbl.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Record.CounterID)
	require.NotEqual(t, first, res.Record.ETag)

	// stale etag
	err = tbl.Merge(ctx, counter.Record{Key: key, CounterID: 3}, counter.IfMatch(first))
	require.ErrorIs(t, err, counter.ErrConflict)

	// unconditional write ignores the etag
	require.NoError(t, tbl.Merge(ctx, counter.Record{Key: key, CounterID: 3}, counter.Unconditional()))
	res, err = tbl.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(3), res.Record.CounterID)

	other := counter.Key{PartitionKey: "1", RowKey: "2"}
	res, err = tbl.Get(ctx, other)
	require.NoError(t, err)
	require.Equal(t, counter.StatusNotFound, res.Status)
}

// exerciseBlankETag checks that a row without an etag, e.g. one written by
// another tool, is still guarded by IfMatch. blank removes the stored etag.
func exerciseBlankETag(t *testing.T, tbl counter.Table, blank func()) {
	t.Helper()
	ctx := context.Background()
	key := counter.RecordKey

	require.NoError(t, tbl.Create(ctx, counter.Record{Key: key, CounterID: 10}))
	blank()

	res, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, counter.StatusFound, res.Status)
	require.Empty(t, res.Record.ETag)

	// another writer lands between our read and our write
	require.NoError(t, tbl.Merge(ctx, counter.Record{Key: key, CounterID: 11}, counter.Unconditional()))

	err = tbl.Merge(ctx, counter.Record{Key: key, CounterID: 11}, counter.IfMatch(res.Record.ETag))
	require.ErrorIs(t, err, counter.ErrConflict)

	res, err = tbl.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(11), res.Record.CounterID)

	// with the etag still blank the conditional write goes through
	blank()
	require.NoError(t, tbl.Merge(ctx, counter.Record{Key: key, CounterID: 12}, counter.IfMatch("")))
	res, err = tbl.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(12), res.Record.CounterID)
	require.NotEmpty(t, res.Record.ETag)

	require.ErrorIs(t, tbl.Merge(ctx, counter.Record{Key: key, CounterID: 13}, counter.IfMatch("")), counter.ErrConflict)
}
