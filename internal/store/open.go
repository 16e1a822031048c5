// Package store provides the key-row tables the visitor counter is kept in:
// Cloud Datastore, Redis and process memory. The backend is picked from the
// scheme of the connection string.
package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"google.golang.org/api/option"

	"github.com/tckz/visitor-counter/internal/counter"
)

const (
	SchemeDatastore = "datastore"
	SchemeRedis     = "redis"
	SchemeRedisTLS  = "rediss"
	SchemeMemory    = "mem"
)

var supportedSchemes = []string{SchemeDatastore, SchemeRedis, SchemeRedisTLS, SchemeMemory}

const settingConnectionString = "STORE_CONNECTION_STRING"

// Descriptor is a parsed connection string.
type Descriptor struct {
	Scheme string

	// datastore
	ProjectID       string
	DatabaseID      string
	Namespace       string
	CredentialsFile string

	// redis
	Redis *redis.Options
}

// ParseDescriptor parses one of
//
//	datastore://<project>?database=<id>&namespace=<ns>&credentials=<file>
//	redis://[user:pass@]host:port/<db>, rediss://...
//	mem://
//
// Errors are *counter.ConfigurationError.
func ParseDescriptor(s string) (*Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &counter.ConfigurationError{Setting: settingConnectionString, Reason: "must be set"}
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, &counter.ConfigurationError{Setting: settingConnectionString, Reason: fmt.Sprintf("url.Parse: %v", err)}
	}

	scheme := strings.ToLower(u.Scheme)
	if !lo.Contains(supportedSchemes, scheme) {
		return nil, &counter.ConfigurationError{
			Setting: settingConnectionString,
			Reason:  fmt.Sprintf("unsupported scheme %q, want one of %s", u.Scheme, strings.Join(supportedSchemes, "|")),
		}
	}

	d := &Descriptor{Scheme: scheme}
	switch scheme {
	case SchemeDatastore:
		d.ProjectID = u.Host
		if d.ProjectID == "" {
			return nil, &counter.ConfigurationError{Setting: settingConnectionString, Reason: "datastore project must be specified, use '-' to detect it"}
		}
		d.ProjectID = lo.Ternary(d.ProjectID == "-", datastore.DetectProjectID, d.ProjectID)
		q := u.Query()
		d.DatabaseID = q.Get("database")
		d.Namespace = q.Get("namespace")
		d.CredentialsFile = q.Get("credentials")

	case SchemeRedis, SchemeRedisTLS:
		opt, err := redis.ParseURL(s)
		if err != nil {
			return nil, &counter.ConfigurationError{Setting: settingConnectionString, Reason: fmt.Sprintf("redis.ParseURL: %v", err)}
		}
		d.Redis = opt
	}

	return d, nil
}

// Settings selects the table to open.
type Settings struct {
	ConnectionString string
	TableName        string
}

// Open parses the connection string and opens the table it names.
func Open(ctx context.Context, s Settings) (counter.Table, error) {
	d, err := ParseDescriptor(s.ConnectionString)
	if err != nil {
		return nil, err
	}

	name := lo.Ternary(s.TableName == "", counter.DefaultTableName, s.TableName)

	switch d.Scheme {
	case SchemeDatastore:
		t, err := openDatastore(ctx, d, name)
		if err != nil {
			return nil, err
		}
		return t, nil
	case SchemeRedis, SchemeRedisTLS:
		return NewRedisTable(name, newRedisClient(d.Redis)), nil
	case SchemeMemory:
		return NewMemoryTable(name), nil
	default:
		return nil, &counter.ConfigurationError{Setting: settingConnectionString, Reason: fmt.Sprintf("unsupported scheme %q", d.Scheme)}
	}
}

func openDatastore(ctx context.Context, d *Descriptor, kind string) (*DatastoreTable, error) {
	var opts []option.ClientOption
	if d.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(d.CredentialsFile))
	}

	var cl *datastore.Client
	var err error
	if d.DatabaseID != "" {
		cl, err = datastore.NewClientWithDatabase(ctx, d.ProjectID, d.DatabaseID, opts...)
	} else {
		cl, err = datastore.NewClient(ctx, d.ProjectID, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("datastore.NewClient: %w", err)
	}
	return NewDatastoreTable(kind, d.Namespace, cl), nil
}

func newRedisClient(opt *redis.Options) redis.UniversalClient {
	o := *opt
	if o.DialTimeout == 0 {
		o.DialTimeout = time.Second * 2
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = time.Second * 2
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = time.Second * 2
	}
	if o.PoolTimeout == 0 {
		o.PoolTimeout = time.Second * 5
	}
	return redis.NewClient(&o)
}
