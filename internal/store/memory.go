package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tckz/visitor-counter/internal/counter"
)

var _ counter.Table = (*MemoryTable)(nil)

type memoryRow struct {
	fields map[string]any
}

func (r memoryRow) clone() memoryRow {
	m := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		m[k] = v
	}
	return memoryRow{fields: m}
}

// MemoryTable keeps rows in process memory. Rows live as long as the process.
type MemoryTable struct {
	name  string
	cache *cache.Cache
	// serializes read-compare-write in Merge
	mu sync.Mutex
}

func NewMemoryTable(name string) *MemoryTable {
	return &MemoryTable{
		name:  name,
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (t *MemoryTable) rowKey(key counter.Key) string {
	return t.name + ":" + key.String()
}

func (t *MemoryTable) Get(ctx context.Context, key counter.Key) (counter.ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return counter.ReadResult{}, err
	}

	v, ok := t.cache.Get(t.rowKey(key))
	if !ok {
		return counter.NotFound(), nil
	}
	row := v.(memoryRow)

	rec := counter.Record{Key: key}
	if n, ok := row.fields[counter.FieldCounterID].(int64); ok {
		rec.CounterID = n
	}
	if s, ok := row.fields[counter.FieldETag].(string); ok {
		rec.ETag = s
	}
	return counter.Found(rec), nil
}

func (t *MemoryTable) Merge(ctx context.Context, rec counter.Record, cond counter.Precondition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	k := t.rowKey(rec.Key)
	v, ok := t.cache.Get(k)
	if !ok {
		return counter.ErrNotFound
	}
	row := v.(memoryRow).clone()
	cur, _ := row.fields[counter.FieldETag].(string)
	if !cond.Matches(cur) {
		return counter.ErrConflict
	}

	row.fields[counter.FieldCounterID] = rec.CounterID
	row.fields[counter.FieldETag] = uuid.NewString()
	t.cache.Set(k, row, cache.NoExpiration)
	return nil
}

func (t *MemoryTable) Create(ctx context.Context, rec counter.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := memoryRow{fields: map[string]any{
		counter.FieldPartitionKey: rec.Key.PartitionKey,
		counter.FieldRowKey:       rec.Key.RowKey,
		counter.FieldCounterID:    rec.CounterID,
		counter.FieldETag:         uuid.NewString(),
	}}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.cache.Add(t.rowKey(rec.Key), row, cache.NoExpiration); err != nil {
		return counter.ErrAlreadyExists
	}
	return nil
}

// SetField writes an arbitrary property on an existing row.
func (t *MemoryTable) SetField(key counter.Key, name string, value any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := t.rowKey(key)
	v, ok := t.cache.Get(k)
	if !ok {
		return false
	}
	row := v.(memoryRow).clone()
	row.fields[name] = value
	t.cache.Set(k, row, cache.NoExpiration)
	return true
}

// Field reads a property of a row.
func (t *MemoryTable) Field(key counter.Key, name string) (any, bool) {
	v, ok := t.cache.Get(t.rowKey(key))
	if !ok {
		return nil, false
	}
	f, ok := v.(memoryRow).fields[name]
	return f, ok
}

// Len reports the number of rows.
func (t *MemoryTable) Len() int {
	return t.cache.ItemCount()
}

func (t *MemoryTable) Close() error {
	return nil
}
