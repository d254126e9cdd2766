package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupSQLite(t *testing.T) *SQLStore {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.RunMigrations())
	return s
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, setupSQLite(t))
}

func TestNewSQLiteStore_UnreachablePath(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "dir", "storefront.db"))
	assert.ErrorContains(t, err, "failed to ping database")
}

func TestNewPostgresStore_Unreachable(t *testing.T) {
	_, err := NewPostgresStore(&Credentials{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "postgres",
		Password: "postgres",
		DBName:   "inviteu",
	})
	assert.ErrorContains(t, err, "failed to ping database")
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	s := setupSQLite(t)
	assert.NoError(t, s.RunMigrations())
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RunMigrations())
	require.NoError(t, s.Set(ctx, "requests", []byte(`[{"id":"1"}]`)))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(v))
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	s, err := NewPostgresStore(&Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "storefront",
		Password: "storefront",
		DBName:   "storefront",
	})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.RunMigrations())

	testStoreContract(t, s)
}
