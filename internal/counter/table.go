// Package counter implements the visitor counter: a single record in a
// key-row table store that is read, incremented and written back on every
// visit.
package counter

import (
	"context"
	"errors"
	"fmt"
)

const (
	// DefaultTableName is used when STORE_TABLE_NAME is unset.
	DefaultTableName = "visitorcounter"

	FieldPartitionKey = "PartitionKey"
	FieldRowKey       = "RowKey"
	FieldCounterID    = "counterId"
	FieldETag         = "etag"
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrConflict      = errors.New("entity was modified concurrently")
)

// Key identifies a row by partition and row identifier.
type Key struct {
	PartitionKey string
	RowKey       string
}

func (k Key) String() string {
	return k.PartitionKey + ":" + k.RowKey
}

// RecordKey is the fixed key of the singleton counter row.
var RecordKey = Key{PartitionKey: "1", RowKey: "1"}

type Record struct {
	Key       Key
	CounterID int64
	// ETag changes on every write. Empty for records not read from a table.
	ETag string
}

type ReadStatus int

const (
	StatusNotFound ReadStatus = iota
	StatusFound
)

func (s ReadStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// ReadResult is the outcome of Table.Get. Record is only meaningful when
// Status is StatusFound.
type ReadResult struct {
	Status ReadStatus
	Record Record
}

func Found(rec Record) ReadResult {
	return ReadResult{Status: StatusFound, Record: rec}
}

func NotFound() ReadResult {
	return ReadResult{Status: StatusNotFound}
}

// Precondition guards a Merge. The zero value is unconditional.
type Precondition struct {
	set  bool
	etag string
}

// Unconditional writes whatever the stored etag is.
func Unconditional() Precondition {
	return Precondition{}
}

// IfMatch requires the stored etag to equal etag. An empty etag matches a
// row that has none.
func IfMatch(etag string) Precondition {
	return Precondition{set: true, etag: etag}
}

func (p Precondition) IsSet() bool {
	return p.set
}

// ETag is the expected etag, "" when unconditional.
func (p Precondition) ETag() string {
	return p.etag
}

// Matches reports whether a row whose etag is stored may be written.
func (p Precondition) Matches(stored string) bool {
	return !p.set || p.etag == stored
}

func (p Precondition) String() string {
	if !p.set {
		return "*"
	}
	return fmt.Sprintf("%q", p.etag)
}

// Table is a key-row store holding counter records.
type Table interface {
	// Get reads a row. An absent row is StatusNotFound with a nil error.
	Get(ctx context.Context, key Key) (ReadResult, error)
	// Merge updates only the counterId of an existing row, keeping its other
	// properties. A set cond makes the write conditional on the stored
	// etag and yields ErrConflict on mismatch. A missing row yields
	// ErrNotFound.
	Merge(ctx context.Context, rec Record, cond Precondition) error
	// Create inserts a new row, ErrAlreadyExists if the key is taken.
	Create(ctx context.Context, rec Record) error
	Close() error
}
