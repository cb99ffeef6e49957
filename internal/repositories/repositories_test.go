package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cgu-connect/internal/db"
	"cgu-connect/internal/models"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := db.Connect(context.Background(), db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func createUser(t *testing.T, repo *UserRepo, name string) models.User {
	t.Helper()
	user, err := repo.Create(context.Background(), models.User{
		Username:  name,
		Email:     fmt.Sprintf("%s@cgu.edu.tw", name),
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	})
	require.NoError(t, err)
	return user
}

func sendAt(t *testing.T, repo *MessageRepo, conversationID, senderID int64, content string, at time.Time) models.Message {
	t.Helper()
	msg, err := repo.Create(context.Background(), models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           models.KindText,
		CreatedAt:      at,
		UpdatedAt:      at,
	})
	require.NoError(t, err)
	return msg
}

func TestUserRepoCreateAndGet(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	require.NotZero(t, alice.ID)

	got, err := users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.CreatedAt.Equal(baseTime))
	assert.False(t, got.ProfileCompleted)

	_, err = users.Create(ctx, models.User{Username: "alice", Email: "other@cgu.edu.tw", CreatedAt: baseTime, UpdatedAt: baseTime})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	_, err = users.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	exists, err := users.Exists(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = users.Exists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepoUpdateProfile(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	ctx := context.Background()
	alice := createUser(t, users, "alice")

	updated, err := users.UpdateProfile(ctx, alice.ID, models.ProfileUpdate{DisplayName: "Alice", Bio: "hi"}, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.DisplayName)
	assert.False(t, updated.ProfileCompleted)

	updated, err = users.UpdateProfile(ctx, alice.ID, models.ProfileUpdate{DisplayName: "Alice", Semester: "3", Department: "CSIE"}, baseTime.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, updated.ProfileCompleted)

	updated, err = users.UpdateProfile(ctx, alice.ID, models.ProfileUpdate{Bio: "cleared"}, baseTime.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, updated.ProfileCompleted)

	_, err = users.UpdateProfile(ctx, 999, models.ProfileUpdate{}, baseTime)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConversationRepoUniquePair(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	convs := NewConversationRepo(database)
	ctx := context.Background()
	a := createUser(t, users, "alice")
	b := createUser(t, users, "bob")

	_, err := convs.GetByParticipants(ctx, a.ID, b.ID)
	require.ErrorIs(t, err, ErrConversationNotFound)

	conv, err := convs.Create(ctx, a.ID, b.ID, baseTime)
	require.NoError(t, err)
	assert.Nil(t, conv.LastMessageID)
	assert.Nil(t, conv.LastMessageAt)

	_, err = convs.Create(ctx, a.ID, b.ID, baseTime)
	assert.ErrorIs(t, err, ErrDuplicateConversation)

	found, err := convs.GetByParticipants(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	_, err = convs.Create(ctx, a.ID, 999, baseTime)
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestConversationRepoRejectsSelfPair(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	convs := NewConversationRepo(database)
	a := createUser(t, users, "alice")

	_, err := convs.Create(context.Background(), a.ID, a.ID, baseTime)
	require.Error(t, err)
}

func TestConversationRepoLastMessagePointer(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	convs := NewConversationRepo(database)
	msgs := NewMessageRepo(database)
	ctx := context.Background()
	a := createUser(t, users, "alice")
	b := createUser(t, users, "bob")
	conv, err := convs.Create(ctx, a.ID, b.ID, baseTime)
	require.NoError(t, err)

	first := sendAt(t, msgs, conv.ID, a.ID, "first", baseTime.Add(time.Minute))
	second := sendAt(t, msgs, conv.ID, b.ID, "second", baseTime.Add(2*time.Minute))

	require.NoError(t, convs.UpdateLastMessage(ctx, conv.ID, second.ID, second.CreatedAt))
	// an older message never takes the pointer back
	require.NoError(t, convs.UpdateLastMessage(ctx, conv.ID, first.ID, first.CreatedAt))

	got, err := convs.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageID)
	assert.Equal(t, second.ID, *got.LastMessageID)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(second.CreatedAt))

	err = convs.UpdateLastMessage(ctx, 999, second.ID, second.CreatedAt)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationRepoListForUserOrdering(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	convs := NewConversationRepo(database)
	msgs := NewMessageRepo(database)
	ctx := context.Background()
	a := createUser(t, users, "alice")
	b := createUser(t, users, "bob")
	c := createUser(t, users, "carol")

	ab, err := convs.Create(ctx, a.ID, b.ID, baseTime)
	require.NoError(t, err)
	ac, err := convs.Create(ctx, a.ID, c.ID, baseTime.Add(time.Minute))
	require.NoError(t, err)

	list, err := convs.ListForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ac.ID, list[0].ID)

	msg := sendAt(t, msgs, ab.ID, b.ID, "ping", baseTime.Add(time.Hour))
	require.NoError(t, convs.UpdateLastMessage(ctx, ab.ID, msg.ID, msg.CreatedAt))

	list, err = convs.ListForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ab.ID, list[0].ID)

	list, err = convs.ListForUser(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ac.ID, list[0].ID)
}

func TestMessageRepoUnreadAndMarkRead(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	convs := NewConversationRepo(database)
	msgs := NewMessageRepo(database)
	ctx := context.Background()
	a := createUser(t, users, "alice")
	b := createUser(t, users, "bob")
	c := createUser(t, users, "carol")
	ab, err := convs.Create(ctx, a.ID, b.ID, baseTime)
	require.NoError(t, err)
	bc, err := convs.Create(ctx, b.ID, c.ID, baseTime)
	require.NoError(t, err)

	sendAt(t, msgs, ab.ID, a.ID, "one", baseTime.Add(1*time.Minute))
	sendAt(t, msgs, ab.ID, a.ID, "two", baseTime.Add(2*time.Minute))
	sendAt(t, msgs, ab.ID, b.ID, "reply", baseTime.Add(3*time.Minute))
	sendAt(t, msgs, bc.ID, c.ID, "hey bob", baseTime.Add(4*time.Minute))
	late := sendAt(t, msgs, ab.ID, a.ID, "late", baseTime.Add(10*time.Minute))

	count, err := msgs.CountUnread(ctx, ab.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = msgs.CountUnread(ctx, ab.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	total, err := msgs.CountUnreadForUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	perConv, err := msgs.UnreadCountsForUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{ab.ID: 3, bc.ID: 1}, perConv)

	// messages after the cut-off stay unread
	updated, err := msgs.MarkRead(ctx, ab.ID, b.ID, baseTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	count, err = msgs.CountUnread(ctx, ab.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	updated, err = msgs.MarkRead(ctx, ab.ID, b.ID, late.CreatedAt)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	updated, err = msgs.MarkRead(ctx, ab.ID, b.ID, late.CreatedAt)
	require.NoError(t, err)
	assert.EqualValues(t, 0, updated)
}

func TestMessageRepoUnsend(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	convs := NewConversationRepo(database)
	msgs := NewMessageRepo(database)
	ctx := context.Background()
	a := createUser(t, users, "alice")
	b := createUser(t, users, "bob")
	ab, err := convs.Create(ctx, a.ID, b.ID, baseTime)
	require.NoError(t, err)
	msg := sendAt(t, msgs, ab.ID, a.ID, "oops", baseTime.Add(time.Minute))

	err = msgs.Unsend(ctx, msg.ID, b.ID, baseTime.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrMessageNotFound)

	require.NoError(t, msgs.Unsend(ctx, msg.ID, a.ID, baseTime.Add(2*time.Minute)))

	got, err := msgs.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Unsent)
	assert.Empty(t, got.Content)
	assert.Nil(t, got.MediaURL)

	count, err := msgs.CountUnread(ctx, ab.ID, b.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// tombstones are not unread, so marking read leaves them alone
	updated, err := msgs.MarkRead(ctx, ab.ID, b.ID, baseTime.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, updated)

	page, err := msgs.ListByConversation(ctx, ab.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].Unsent)
}

func TestMessageRepoListAndLatest(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	convs := NewConversationRepo(database)
	msgs := NewMessageRepo(database)
	ctx := context.Background()
	a := createUser(t, users, "alice")
	b := createUser(t, users, "bob")
	ab, err := convs.Create(ctx, a.ID, b.ID, baseTime)
	require.NoError(t, err)

	_, err = msgs.Latest(ctx, ab.ID)
	require.ErrorIs(t, err, ErrMessageNotFound)

	var sent []models.Message
	for i := 0; i < 5; i++ {
		sent = append(sent, sendAt(t, msgs, ab.ID, a.ID, fmt.Sprintf("m%d", i), baseTime.Add(time.Duration(i)*time.Second)))
	}
	// same timestamp as m4, higher id wins
	tie := sendAt(t, msgs, ab.ID, b.ID, "tie", sent[4].CreatedAt)

	page, err := msgs.ListByConversation(ctx, ab.ID, 3, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, []int64{tie.ID, sent[4].ID, sent[3].ID}, []int64{page[0].ID, page[1].ID, page[2].ID})

	page, err = msgs.ListByConversation(ctx, ab.ID, 3, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, sent[0].ID, page[2].ID)

	latest, err := msgs.Latest(ctx, ab.ID)
	require.NoError(t, err)
	assert.Equal(t, tie.ID, latest.ID)

	ids, err := msgs.LatestIDs(ctx, []int64{ab.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{ab.ID: tie.ID}, ids)

	loaded, err := msgs.GetByIDs(ctx, []int64{sent[1].ID, sent[2].ID, 999})
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestMessageRepoCreateUnknownConversation(t *testing.T) {
	database := newTestDB(t)
	users := NewUserRepo(database)
	msgs := NewMessageRepo(database)
	a := createUser(t, users, "alice")

	_, err := msgs.Create(context.Background(), models.Message{
		ConversationID: 42,
		SenderID:       a.ID,
		Content:        "x",
		Kind:           models.KindText,
		CreatedAt:      baseTime,
		UpdatedAt:      baseTime,
	})
	assert.ErrorIs(t, err, ErrUnknownReference)
}
