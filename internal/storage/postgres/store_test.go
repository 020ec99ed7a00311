package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/storage"
	"github.com/hetulpatel/pricearb/internal/storage/storagetest"
)

// testDSN points at a disposable database; every table is truncated between cases.
func testDSN(t *testing.T) string {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("ARB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping test - ARB_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func openClean(t *testing.T, dsn string) *Store {
	ctx := testContext(t)
	s, err := Open(ctx, Config{DSN: dsn, MaxConns: 4})
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	require.NoError(t, s.Migrate(ctx))
	_, err = s.Pool().Exec(ctx, `TRUNCATE opportunities, listings, snapshots`)
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	dsn := testDSN(t)
	storagetest.Run(t, func(t *testing.T) storage.Store { return openClean(t, dsn) })
}

func TestOpenBadDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{DSN: "::not a dsn::"})
	require.Error(t, err)
}
