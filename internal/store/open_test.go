package store

import (
	"context"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/stretchr/testify/require"

	"github.com/tckz/visitor-counter/internal/counter"
)

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor("datastore://my-project?database=counters&namespace=web&credentials=/tmp/sa.json")
	require.NoError(t, err)
	require.Equal(t, &Descriptor{
		Scheme:          SchemeDatastore,
		ProjectID:       "my-project",
		DatabaseID:      "counters",
		Namespace:       "web",
		CredentialsFile: "/tmp/sa.json",
	}, d)

	d, err = ParseDescriptor("datastore://-")
	require.NoError(t, err)
	require.Equal(t, datastore.DetectProjectID, d.ProjectID)

	d, err = ParseDescriptor("redis://:secret@localhost:6379/2")
	require.NoError(t, err)
	require.Equal(t, SchemeRedis, d.Scheme)
	require.Equal(t, "localhost:6379", d.Redis.Addr)
	require.Equal(t, 2, d.Redis.DB)
	require.Equal(t, "secret", d.Redis.Password)

	d, err = ParseDescriptor("rediss://localhost:6380")
	require.NoError(t, err)
	require.Equal(t, SchemeRedisTLS, d.Scheme)
	require.NotNil(t, d.Redis.TLSConfig)

	d, err = ParseDescriptor(" mem:// ")
	require.NoError(t, err)
	require.Equal(t, SchemeMemory, d.Scheme)
}

func TestParseDescriptorErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"   ",
		"DefaultEndpointsProtocol=https;AccountName=x;AccountKey=y",
		"postgres://localhost/db",
		"datastore://",
		"redis://localhost:6379/notanumber",
		"://broken",
	} {
		_, err := ParseDescriptor(s)
		var ce *counter.ConfigurationError
		require.ErrorAs(t, err, &ce, "input=%q", s)
		require.Equal(t, "STORE_CONNECTION_STRING", ce.Setting)
	}
}

func TestOpenMemory(t *testing.T) {
	tbl, err := Open(context.Background(), Settings{ConnectionString: "mem://"})
	require.NoError(t, err)
	defer tbl.Close()

	mt, ok := tbl.(*MemoryTable)
	require.True(t, ok)
	require.Equal(t, counter.DefaultTableName, mt.name)
}

func TestOpenRedis(t *testing.T) {
	tbl, err := Open(context.Background(), Settings{ConnectionString: "redis://localhost:6379/0", TableName: "visits"})
	require.NoError(t, err)
	defer tbl.Close()

	rt, ok := tbl.(*RedisTable)
	require.True(t, ok)
	require.Equal(t, "visits", rt.name)
}

func TestOpenMissingConnectionString(t *testing.T) {
	_, err := Open(context.Background(), Settings{})
	var ce *counter.ConfigurationError
	require.ErrorAs(t, err, &ce)
}
