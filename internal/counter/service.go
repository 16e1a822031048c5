package counter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Concurrency selects how Service guards the read-modify-write sequence.
type Concurrency string

const (
	// ConcurrencyNone writes back without a version check. Concurrent
	// visits may lose increments.
	ConcurrencyNone Concurrency = "none"
	// ConcurrencyOptimistic makes the write conditional on the etag read
	// and retries the whole sequence on conflict.
	ConcurrencyOptimistic Concurrency = "optimistic"
)

const DefaultMaxRetries = 3

func ParseConcurrency(s string) (Concurrency, error) {
	switch c := Concurrency(strings.ToLower(strings.TrimSpace(s))); c {
	case "", ConcurrencyNone:
		return ConcurrencyNone, nil
	case ConcurrencyOptimistic:
		return c, nil
	default:
		return "", &ConfigurationError{Setting: "STORE_CONCURRENCY", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

type options struct {
	concurrency Concurrency
	maxRetries  int
	logger      *zap.SugaredLogger
}

type Option func(o *options)

func WithConcurrency(c Concurrency) Option {
	return Option(func(o *options) {
		o.concurrency = c
	})
}

// WithMaxRetries bounds the extra attempts made in optimistic mode.
func WithMaxRetries(n int) Option {
	return Option(func(o *options) {
		o.maxRetries = n
	})
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return Option(func(o *options) {
		o.logger = logger
	})
}

type Service struct {
	tables TableProvider
	key    Key
	opts   options
}

func NewService(tables TableProvider, opts ...Option) *Service {
	o := options{
		concurrency: ConcurrencyNone,
		maxRetries:  DefaultMaxRetries,
		logger:      zap.NewNop().Sugar(),
	}
	for _, e := range opts {
		e(&o)
	}
	if o.maxRetries < 0 {
		o.maxRetries = 0
	}

	return &Service{
		tables: tables,
		key:    RecordKey,
		opts:   o,
	}
}

// Increment adds one visit and returns the resulting count.
func (s *Service) Increment(ctx context.Context) (int64, error) {
	t, err := s.tables.Table(ctx)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			return 0, ce
		}
		return 0, &StoreOperationError{Op: "open table", Err: err}
	}

	for attempt := 0; ; attempt++ {
		n, err := s.incrementOnce(ctx, t)
		if err == nil {
			return n, nil
		}
		if s.opts.concurrency != ConcurrencyOptimistic || !errors.Is(err, ErrConflict) || attempt >= s.opts.maxRetries {
			return 0, err
		}
		s.opts.logger.Infof("conflict on %s, retrying: attempt=%d", s.key, attempt+1)
	}
}

func (s *Service) incrementOnce(ctx context.Context, t Table) (int64, error) {
	res, err := t.Get(ctx, s.key)
	if err != nil {
		return 0, &StoreOperationError{Op: "get entity", Err: err}
	}

	switch res.Status {
	case StatusFound:
		rec := res.Record
		rec.Key = s.key
		rec.CounterID++

		cond := Unconditional()
		if s.opts.concurrency == ConcurrencyOptimistic {
			cond = IfMatch(res.Record.ETag)
		}
		if err := t.Merge(ctx, rec, cond); err != nil {
			if cond.IsSet() && errors.Is(err, ErrNotFound) {
				err = fmt.Errorf("%w: %w", ErrConflict, err)
			}
			return 0, &StoreOperationError{Op: "update entity", Err: err}
		}
		s.opts.logger.Infof("Updated counter: %d", rec.CounterID)
		return rec.CounterID, nil

	case StatusNotFound:
		rec := Record{Key: s.key, CounterID: 1}
		if err := t.Create(ctx, rec); err != nil {
			if s.opts.concurrency == ConcurrencyOptimistic && errors.Is(err, ErrAlreadyExists) {
				err = fmt.Errorf("%w: %w", ErrConflict, err)
			}
			return 0, &StoreOperationError{Op: "create entity", Err: err}
		}
		s.opts.logger.Infof("Created new visitor counter record.")
		return rec.CounterID, nil

	default:
		return 0, &StoreOperationError{Op: "get entity", Err: fmt.Errorf("unexpected read status %d", res.Status)}
	}
}
