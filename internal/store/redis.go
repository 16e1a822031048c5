package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tckz/visitor-counter/internal/counter"
)

var _ counter.Table = (*RedisTable)(nil)

// RedisTable stores each row as a hash at "<table>:<PartitionKey>:<RowKey>".
type RedisTable struct {
	name   string
	client redis.UniversalClient
}

func NewRedisTable(name string, client redis.UniversalClient) *RedisTable {
	return &RedisTable{name: name, client: client}
}

func (t *RedisTable) rowKey(key counter.Key) string {
	return t.name + ":" + key.String()
}

func (t *RedisTable) Get(ctx context.Context, key counter.Key) (counter.ReadResult, error) {
	m, err := t.client.HGetAll(ctx, t.rowKey(key)).Result()
	if err != nil {
		return counter.ReadResult{}, fmt.Errorf("HGetAll: %w", err)
	}
	if len(m) == 0 {
		return counter.NotFound(), nil
	}

	rec := counter.Record{Key: key, ETag: m[counter.FieldETag]}
	if s, ok := m[counter.FieldCounterID]; ok && s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return counter.ReadResult{}, fmt.Errorf("parse %s=%q: %w", counter.FieldCounterID, s, err)
		}
		rec.CounterID = n
	}
	return counter.Found(rec), nil
}

// mergeScript writes counterId and etag only if the row exists and, when
// ARGV[1] is "1", only if its etag equals ARGV[2]. An absent etag field
// compares as "".
// Returns 1 on write, 0 if the row is missing, -1 on etag mismatch.
var mergeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if ARGV[1] == '1' then
  local cur = redis.call('HGET', KEYS[1], ARGV[5]) or ''
  if cur ~= ARGV[2] then
    return -1
  end
end
redis.call('HSET', KEYS[1], ARGV[3], ARGV[4], ARGV[5], ARGV[6])
return 1
`)

// Merge writes counterId and a new etag in a single atomic script call.
func (t *RedisTable) Merge(ctx context.Context, rec counter.Record, cond counter.Precondition) error {
	checked := "0"
	if cond.IsSet() {
		checked = "1"
	}

	r, err := mergeScript.Run(ctx, t.client, []string{t.rowKey(rec.Key)},
		checked, cond.ETag(),
		counter.FieldCounterID, rec.CounterID,
		counter.FieldETag, uuid.NewString(),
	).Int()
	if err != nil {
		return fmt.Errorf("mergeScript.Run: %w", err)
	}

	switch r {
	case 1:
		return nil
	case 0:
		return counter.ErrNotFound
	default:
		return counter.ErrConflict
	}
}

func (t *RedisTable) Create(ctx context.Context, rec counter.Record) error {
	k := t.rowKey(rec.Key)
	err := t.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return fmt.Errorf("Exists: %w", err)
		}
		if n > 0 {
			return counter.ErrAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k,
				counter.FieldPartitionKey, rec.Key.PartitionKey,
				counter.FieldRowKey, rec.Key.RowKey,
				counter.FieldCounterID, rec.CounterID,
				counter.FieldETag, uuid.NewString(),
			)
			return nil
		})
		return err
	}, k)

	if errors.Is(err, redis.TxFailedErr) {
		// someone else wrote the key after our EXISTS
		return counter.ErrAlreadyExists
	}
	return t.txError(err)
}

func (t *RedisTable) txError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return counter.ErrConflict
	case errors.Is(err, counter.ErrNotFound), errors.Is(err, counter.ErrConflict), errors.Is(err, counter.ErrAlreadyExists):
		return err
	default:
		return fmt.Errorf("Watch: %w", err)
	}
}

func (t *RedisTable) Close() error {
	return t.client.Close()
}
