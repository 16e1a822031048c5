package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

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
	optLogLevel     = flag.String("log-level", "info", "info|warn|error")
	optConn         = flag.String("conn", "", "connection string, defaults to STORE_CONNECTION_STRING")
	optTable        = flag.String("table", "", "table name, defaults to STORE_TABLE_NAME")
	optPartitionKey = flag.String("partition-key", counter.RecordKey.PartitionKey, "PartitionKey")
	optRowKey       = flag.String("row-key", counter.RecordKey.RowKey, "RowKey")
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

	tbl, err := store.Open(ctx, s)
	if err != nil {
		logger.Fatalf("*** store.Open: %v", err)
	}
	defer tbl.Close()

	key := counter.Key{PartitionKey: *optPartitionKey, RowKey: *optRowKey}
	res, err := tbl.Get(ctx, key)
	if err != nil {
		logger.Errorf("Get: %v", err)
		return
	}

	switch res.Status {
	case counter.StatusFound:
		fmt.Fprintf(os.Stdout, "%+v\n", res.Record)
	default:
		logger.Infof("key=%s %s", key, res.Status)
	}
}
