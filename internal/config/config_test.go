package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/tckz/visitor-counter/internal/counter"
)

func envOf(t *testing.T, dotenv string) func(string) string {
	t.Helper()
	m, err := godotenv.Unmarshal(dotenv)
	require.NoError(t, err)
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(envOf(t, ""))
	require.NoError(t, err)
	require.Equal(t, Config{
		TableName:   "visitorcounter",
		Concurrency: counter.ConcurrencyNone,
		MaxRetries:  3,
		Port:        "8080",
		CounterPath: "/api/VisitorCounter",
		LogLevel:    "info",
	}, c)
	require.Equal(t, ":8080", c.Addr())
}

func TestLoad(t *testing.T) {
	c, err := Load(envOf(t, `
STORE_CONNECTION_STRING=redis://localhost:6379/0
STORE_TABLE_NAME=visits
STORE_CONCURRENCY=optimistic
STORE_MAX_RETRIES=5
PORT=9090
COUNTER_PATH=count
LOG_LEVEL=debug
`))
	require.NoError(t, err)
	require.Equal(t, "redis://localhost:6379/0", c.ConnectionString)
	require.Equal(t, "visits", c.TableName)
	require.Equal(t, counter.ConcurrencyOptimistic, c.Concurrency)
	require.Equal(t, 5, c.MaxRetries)
	require.Equal(t, ":9090", c.Addr())
	require.Equal(t, "/count", c.CounterPath)
	require.Equal(t, "debug", c.LogLevel)

	s := c.StoreSettings()
	require.Equal(t, "redis://localhost:6379/0", s.ConnectionString)
	require.Equal(t, "visits", s.TableName)
}

func TestLoadInvalid(t *testing.T) {
	for _, env := range []string{
		"STORE_CONCURRENCY=locking",
		"STORE_MAX_RETRIES=-1",
		"STORE_MAX_RETRIES=many",
		"PORT=http",
	} {
		_, err := Load(envOf(t, env))
		var ce *counter.ConfigurationError
		require.ErrorAs(t, err, &ce, env)
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("STORE_TABLE_NAME=fromfile\nCOUNTER_PATH=/fromfile\n"), 0o600))

	t.Setenv("STORE_TABLE_NAME", "fromenv")
	t.Setenv("COUNTER_PATH", "")
	os.Unsetenv("COUNTER_PATH")

	LoadDotEnv(p, filepath.Join(t.TempDir(), "missing.env"))

	c, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "fromenv", c.TableName)
	require.Equal(t, "/fromfile", c.CounterPath)
}
