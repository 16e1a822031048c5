package counter

import (
	"context"
	"sync"
)

// Opener builds a Table. It is called at most once per successful open.
type Opener func(ctx context.Context) (Table, error)

// TableProvider hands out the Table used by a Service.
type TableProvider interface {
	Table(ctx context.Context) (Table, error)
}

var _ TableProvider = (*LazyTable)(nil)

// LazyTable opens its Table on first use and reuses it afterwards. A failed
// open is not remembered, so the next caller tries again.
type LazyTable struct {
	open Opener

	mu    sync.Mutex
	table Table
}

func NewLazyTable(open Opener) *LazyTable {
	return &LazyTable{open: open}
}

func (l *LazyTable) Table(ctx context.Context) (Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.table != nil {
		return l.table, nil
	}

	t, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.table = t
	return t, nil
}

func (l *LazyTable) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.table == nil {
		return nil
	}
	err := l.table.Close()
	l.table = nil
	return err
}

// StaticTable provides an already opened Table.
type StaticTable struct {
	T Table
}

func (s StaticTable) Table(ctx context.Context) (Table, error) {
	return s.T, nil
}
