// Package config reads the visitor counter settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/store"
)

const (
	EnvConnectionString = "STORE_CONNECTION_STRING"
	EnvTableName        = "STORE_TABLE_NAME"
	EnvConcurrency      = "STORE_CONCURRENCY"
	EnvMaxRetries       = "STORE_MAX_RETRIES"
	EnvPort             = "PORT"
	EnvCounterPath      = "COUNTER_PATH"
	EnvLogLevel         = "LOG_LEVEL"

	DefaultPort        = "8080"
	DefaultCounterPath = "/api/VisitorCounter"
	DefaultLogLevel    = "info"
)

type Config struct {
	// ConnectionString may be empty here. The error is raised when the
	// table is first needed.
	ConnectionString string
	TableName        string
	Concurrency      counter.Concurrency
	MaxRetries       int

	Port        string
	CounterPath string
	LogLevel    string
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func (c Config) StoreSettings() store.Settings {
	return store.Settings{
		ConnectionString: c.ConnectionString,
		TableName:        c.TableName,
	}
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(filenames ...string) {
	if len(filenames) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range filenames {
		_ = godotenv.Load(f)
	}
}

// FromEnv reads the process environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Load builds a Config from getenv, filling defaults.
func Load(getenv func(string) string) (Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	c := Config{
		ConnectionString: strings.TrimSpace(getenv(EnvConnectionString)),
		TableName:        get(EnvTableName, counter.DefaultTableName),
		Port:             get(EnvPort, DefaultPort),
		CounterPath:      get(EnvCounterPath, DefaultCounterPath),
		LogLevel:         get(EnvLogLevel, DefaultLogLevel),
	}

	cc, err := counter.ParseConcurrency(getenv(EnvConcurrency))
	if err != nil {
		return Config{}, err
	}
	c.Concurrency = cc

	n, err := strconv.Atoi(get(EnvMaxRetries, strconv.Itoa(counter.DefaultMaxRetries)))
	if err != nil || n < 0 {
		return Config{}, &counter.ConfigurationError{Setting: EnvMaxRetries, Reason: "must be a non-negative integer"}
	}
	c.MaxRetries = n

	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return Config{}, &counter.ConfigurationError{Setting: EnvPort, Reason: fmt.Sprintf("invalid port %q", c.Port)}
	}
	if !strings.HasPrefix(c.CounterPath, "/") {
		c.CounterPath = "/" + c.CounterPath
	}

	return c, nil
}
