//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"cgu-connect/internal/db"
	"cgu-connect/internal/models"
)

func TestPostgresDialect(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("cgu_connect"),
		postgres.WithUsername("cgu_user"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	database, err := db.Connect(ctx, db.DriverPostgres, dsn)
	require.NoError(t, err)
	defer database.Close()
	// migrations must be re-runnable against an existing schema
	require.NoError(t, db.Migrate(ctx, database))

	users := NewUserRepo(database)
	convs := NewConversationRepo(database)
	msgs := NewMessageRepo(database)

	now := time.Now().UTC().Truncate(time.Microsecond)
	a, err := users.Create(ctx, models.User{Username: "alice", Email: "alice@cgu.edu.tw", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	b, err := users.Create(ctx, models.User{Username: "bob", Email: "bob@cgu.edu.tw", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	conv, err := convs.Create(ctx, a.ID, b.ID, now)
	require.NoError(t, err)
	_, err = convs.Create(ctx, a.ID, b.ID, now)
	require.ErrorIs(t, err, ErrDuplicateConversation)

	msg, err := msgs.Create(ctx, models.Message{ConversationID: conv.ID, SenderID: a.ID, Content: "hello", Kind: models.KindText, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	require.NoError(t, convs.UpdateLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt))

	count, err := msgs.CountUnread(ctx, conv.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	updated, err := msgs.MarkRead(ctx, conv.ID, b.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	total, err := msgs.CountUnreadForUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = database.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, msg.ID)
	require.NoError(t, err)
	got, err := convs.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastMessageID)
}
