package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"

	"github.com/tckz/visitor-counter/internal/counter"
)

var _ counter.Table = (*DatastoreTable)(nil)

// partitionKind is the kind of the ancestor key carrying the PartitionKey.
const partitionKind = "Partition"

// DatastoreTable stores rows as entities of kind <table>, named by RowKey,
// under an ancestor keyed by PartitionKey.
type DatastoreTable struct {
	kind      string
	namespace string
	client    *datastore.Client
}

func NewDatastoreTable(kind, namespace string, client *datastore.Client) *DatastoreTable {
	return &DatastoreTable{kind: kind, namespace: namespace, client: client}
}

func (t *DatastoreTable) key(k counter.Key) *datastore.Key {
	return entityKey(t.kind, t.namespace, k)
}

func entityKey(kind, namespace string, k counter.Key) *datastore.Key {
	parent := datastore.NameKey(partitionKind, k.PartitionKey, nil)
	parent.Namespace = namespace
	key := datastore.NameKey(kind, k.RowKey, parent)
	key.Namespace = namespace
	return key
}

// Entities are loaded as PropertyList so that properties written by other
// tools survive a Merge and do not fail the load.
func (t *DatastoreTable) Get(ctx context.Context, key counter.Key) (counter.ReadResult, error) {
	var pl datastore.PropertyList
	if err := t.client.Get(ctx, t.key(key), &pl); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return counter.NotFound(), nil
		}
		return counter.ReadResult{}, fmt.Errorf("Get: %w", err)
	}

	rec, err := recordFromProperties(key, pl)
	if err != nil {
		return counter.ReadResult{}, err
	}
	return counter.Found(rec), nil
}

func (t *DatastoreTable) Merge(ctx context.Context, rec counter.Record, cond counter.Precondition) error {
	key := t.key(rec.Key)
	_, err := t.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var pl datastore.PropertyList
		if err := tx.Get(key, &pl); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return counter.ErrNotFound
			}
			return fmt.Errorf("tx.Get: %w", err)
		}

		if err := checkPrecondition(pl, cond); err != nil {
			return err
		}

		pl = setProperty(pl, counter.FieldCounterID, rec.CounterID, false)
		pl = setProperty(pl, counter.FieldETag, uuid.NewString(), true)
		if _, err := tx.Put(key, &pl); err != nil {
			return fmt.Errorf("tx.Put: %w", err)
		}
		return nil
	})
	return transactionError(err)
}

func (t *DatastoreTable) Create(ctx context.Context, rec counter.Record) error {
	key := t.key(rec.Key)
	_, err := t.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var pl datastore.PropertyList
		err := tx.Get(key, &pl)
		if err == nil {
			return counter.ErrAlreadyExists
		} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return fmt.Errorf("tx.Get: %w", err)
		}

		pl = newProperties(rec)
		if _, err := tx.Put(key, &pl); err != nil {
			return fmt.Errorf("tx.Put: %w", err)
		}
		return nil
	})
	return transactionError(err)
}

func checkPrecondition(pl datastore.PropertyList, cond counter.Precondition) error {
	cur, _ := propertyValue(pl, counter.FieldETag).(string)
	if !cond.Matches(cur) {
		return counter.ErrConflict
	}
	return nil
}

func transactionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, datastore.ErrConcurrentTransaction):
		return fmt.Errorf("%w: %w", counter.ErrConflict, err)
	case errors.Is(err, counter.ErrNotFound), errors.Is(err, counter.ErrConflict), errors.Is(err, counter.ErrAlreadyExists):
		return err
	default:
		return fmt.Errorf("RunInTransaction: %w", err)
	}
}

func (t *DatastoreTable) Close() error {
	return t.client.Close()
}

func newProperties(rec counter.Record) datastore.PropertyList {
	return datastore.PropertyList{
		{Name: counter.FieldPartitionKey, Value: rec.Key.PartitionKey},
		{Name: counter.FieldRowKey, Value: rec.Key.RowKey},
		{Name: counter.FieldCounterID, Value: rec.CounterID},
		{Name: counter.FieldETag, Value: uuid.NewString(), NoIndex: true},
	}
}

func recordFromProperties(key counter.Key, pl datastore.PropertyList) (counter.Record, error) {
	rec := counter.Record{Key: key}

	switch v := propertyValue(pl, counter.FieldCounterID).(type) {
	case nil:
	case int64:
		rec.CounterID = v
	case float64:
		rec.CounterID = int64(v)
	default:
		return counter.Record{}, fmt.Errorf("property %s has unexpected type %T", counter.FieldCounterID, v)
	}

	rec.ETag, _ = propertyValue(pl, counter.FieldETag).(string)
	return rec, nil
}

func propertyValue(pl datastore.PropertyList, name string) any {
	for _, p := range pl {
		if p.Name == name {
			return p.Value
		}
	}
	return nil
}

func setProperty(pl datastore.PropertyList, name string, value any, noIndex bool) datastore.PropertyList {
	for i := range pl {
		if pl[i].Name == name {
			pl[i].Value = value
			pl[i].NoIndex = noIndex
			return pl
		}
	}
	return append(pl, datastore.Property{Name: name, Value: value, NoIndex: noIndex})
}
