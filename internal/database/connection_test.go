//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/cloo-solutions/kbrelay/internal/database"
	"github.com/cloo-solutions/kbrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAndConnect(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	require.NoError(t, database.Migrate(pc.ConnectionString(), "file://../../migrations"))
	// A second run is a no-op.
	require.NoError(t, database.Migrate(pc.ConnectionString(), "file://../../migrations"))

	pool, err := database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 4})
	require.NoError(t, err)
	defer pool.Close()

	var tables int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_name IN ('knowledge_chunks', 'assistant_runs', 'run_messages')
	`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 3, tables)
}

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := database.NewPool(context.Background(), database.Config{URL: "::not a url::"})
	assert.Error(t, err)
}
