package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSNAddsPragmas(t *testing.T) {
	assert.Equal(t, "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file::memory:"))
	assert.Equal(t, "cgu.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("cgu.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(10)", sqliteDSN("x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(10)"))
}

func TestConnectSQLiteMigratesTwice(t *testing.T) {
	ctx := context.Background()
	database, err := Connect(ctx, DriverSQLite, "file::memory:")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, Migrate(ctx, database))

	var tables []string
	require.NoError(t, database.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'conversations', 'messages') ORDER BY name`))
	assert.Equal(t, []string{"conversations", "messages", "users"}, tables)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	require.Error(t, err)
}
