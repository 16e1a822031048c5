package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/store"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel    = flag.String("log-level", "warn", "info|warn|error")
	optConn        = flag.String("conn", "", "connection string, defaults to STORE_CONNECTION_STRING")
	optTable       = flag.String("table", "", "table name, defaults to STORE_TABLE_NAME")
	optGoroutines  = flag.Int("goroutines", 2, "Number of concurrent visitors")
	optIncrements  = flag.Int("increments", 10, "Increments per visitor")
	optConcurrency = flag.String("concurrency", "none", "none|optimistic")
	optMaxRetries  = flag.Int("max-retries", counter.DefaultMaxRetries, "Extra attempts on conflict in optimistic mode")
)

func init() {
	config.LoadDotEnv()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("*** config.FromEnv: %v", err)
	}
	s := cfg.StoreSettings()
	if *optConn != "" {
		s.ConnectionString = *optConn
	}
	if *optTable != "" {
		s.TableName = *optTable
	}

	mode, err := counter.ParseConcurrency(*optConcurrency)
	if err != nil {
		logger.Fatalf("*** %v", err)
	}

	// mem:// tables are per process, so every visitor must share one
	shared, err := store.Open(ctx, s)
	if err != nil {
		logger.Fatalf("*** store.Open: %v", err)
	}
	defer shared.Close()

	before, err := current(ctx, shared)
	if err != nil {
		logger.Fatalf("*** current: %v", err)
	}

	succeeded := make([]int64, *optGoroutines)
	var failed int64
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < *optGoroutines; i++ {
		index := i
		eg.Go(func() error {
			logger := logger.With(zap.Int("index", index))

			tables := counter.StaticTable{T: shared}
			if d, _ := store.ParseDescriptor(s.ConnectionString); d != nil && d.Scheme != store.SchemeMemory {
				// separate connections make the interleaving more likely
				tbl, err := store.Open(ctx, s)
				if err != nil {
					return fmt.Errorf("store.Open: %w", err)
				}
				defer tbl.Close()
				tables = counter.StaticTable{T: tbl}
			}

			svc := counter.NewService(tables,
				counter.WithConcurrency(mode),
				counter.WithMaxRetries(*optMaxRetries),
				counter.WithLogger(logger),
			)
			for j := 0; j < *optIncrements; j++ {
				if _, err := svc.Increment(ctx); err != nil {
					logger.Warnf("Increment: %v", err)
					atomic.AddInt64(&failed, 1)
					continue
				}
				succeeded[index]++
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		logger.Fatalf("*** Wait: %v", err)
	}

	after, err := current(context.Background(), shared)
	if err != nil {
		logger.Fatalf("*** current: %v", err)
	}

	total := lo.Sum(succeeded)
	fmt.Fprintf(os.Stdout, "concurrency=%s before=%d after=%d succeeded=%d failed=%d lost=%d\n",
		mode, before, after, total, failed, before+total-after)
}

func current(ctx context.Context, t counter.Table) (int64, error) {
	res, err := t.Get(ctx, counter.RecordKey)
	if err != nil {
		return 0, err
	}
	return lo.Ternary(res.Status == counter.StatusFound, res.Record.CounterID, 0), nil
}
