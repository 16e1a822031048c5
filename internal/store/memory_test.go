package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tckz/visitor-counter/internal/counter"
)

func TestMemoryTable(t *testing.T) {
	exerciseTable(t, NewMemoryTable("visitorcounter"))
}

func TestMemoryTableBlankETag(t *testing.T) {
	tbl := NewMemoryTable("visitorcounter")
	exerciseBlankETag(t, tbl, func() {
		require.True(t, tbl.SetField(counter.RecordKey, counter.FieldETag, nil))
	})
}

func TestMemoryTableMergeKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	tbl := NewMemoryTable("visitorcounter")
	key := counter.RecordKey

	require.NoError(t, tbl.Create(ctx, counter.Record{Key: key, CounterID: 1}))
	require.True(t, tbl.SetField(key, "label", "home"))
	require.NoError(t, tbl.Merge(ctx, counter.Record{Key: key, CounterID: 2}, counter.Unconditional()))

	v, ok := tbl.Field(key, "label")
	require.True(t, ok)
	require.Equal(t, "home", v)

	v, ok = tbl.Field(key, counter.FieldCounterID)
	require.True(t, ok)
	require.Equal(t, int64(2), v)
	require.Equal(t, 1, tbl.Len())
}

func TestMemoryTableHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryTable("visitorcounter").Get(ctx, counter.RecordKey)
	require.ErrorIs(t, err, context.Canceled)
}
