package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/server"
	"github.com/tckz/visitor-counter/internal/store"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel        = flag.String("log-level", "", "debug|info|warn|error, overrides LOG_LEVEL")
	optShutdownTimeout = flag.Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
)

var cfg config.Config

func init() {
	config.LoadDotEnv()

	flag.Parse()

	var err error
	cfg, err = config.FromEnv()

	level := cfg.LogLevel
	if *optLogLevel != "" {
		level = *optLogLevel
	}
	if level == "" {
		level = config.DefaultLogLevel
	}
	logger = log.Must(log.NewLogger(log.WithLogLevel(level))).Sugar().With(zap.String("app", myName))

	if err != nil {
		logger.Fatalf("*** config.FromEnv: %v", err)
	}
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if cfg.ConnectionString == "" {
		logger.Warnf("%s is not set, every request will fail until it is", config.EnvConnectionString)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		logger.Fatalf("*** run: %v", err)
	}
}

func run(ctx context.Context) error {
	tables := counter.NewLazyTable(func(ctx context.Context) (counter.Table, error) {
		// The table outlives the request that opened it.
		return store.Open(context.WithoutCancel(ctx), cfg.StoreSettings())
	})
	defer func() {
		if err := tables.Close(); err != nil {
			logger.Errorf("tables.Close: %v", err)
		}
	}()

	svc := counter.NewService(tables,
		counter.WithConcurrency(cfg.Concurrency),
		counter.WithMaxRetries(cfg.MaxRetries),
		counter.WithLogger(logger),
	)
	router := server.NewRouter(server.NewHandler(svc, logger), cfg.CounterPath, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Infof("listening on %s, counter=%s, table=%s, concurrency=%s", srv.Addr, cfg.CounterPath, cfg.TableName, cfg.Concurrency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logger.Infof("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), *optShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return eg.Wait()
}
