package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"cgu-connect/internal/models"
)

const messageColumns = `id, conversation_id, sender_id, content, message_type, media_url, is_read, unsent, created_at, updated_at`

// MessageRepository defines interactions for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, messageID int64) (models.Message, error)
	GetByIDs(ctx context.Context, messageIDs []int64) ([]models.Message, error)
	Latest(ctx context.Context, conversationID int64) (models.Message, error)
	LatestIDs(ctx context.Context, conversationIDs []int64) (map[int64]int64, error)
	ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]models.Message, error)
	CountUnread(ctx context.Context, conversationID, userID int64) (int, error)
	CountUnreadForUser(ctx context.Context, userID int64) (int, error)
	UnreadCountsForUser(ctx context.Context, userID int64) (map[int64]int, error)
	MarkRead(ctx context.Context, conversationID, readerID int64, before time.Time) (int64, error)
	Unsend(ctx context.Context, messageID, senderID int64, now time.Time) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores msg unread and returns it with its id.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.IsRead = false
	msg.Unsent = false
	query := r.db.Rebind(`INSERT INTO messages (conversation_id, sender_id, content, message_type, media_url, is_read, unsent, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, FALSE, FALSE, ?, ?) RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query, msg.ConversationID, msg.SenderID, msg.Content, string(msg.Kind), msg.MediaURL, msg.CreatedAt, msg.UpdatedAt).
		Scan(&msg.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Message{}, ErrUnknownReference
		}
		return models.Message{}, err
	}
	return msg, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// GetByIDs loads the given messages in no particular order. Unknown ids are skipped.
func (r *MessageRepo) GetByIDs(ctx context.Context, messageIDs []int64) ([]models.Message, error) {
	msgs := []models.Message{}
	if len(messageIDs) == 0 {
		return msgs, nil
	}
	query, args, err := sqlx.In(`SELECT `+messageColumns+` FROM messages WHERE id IN (?)`, messageIDs)
	if err != nil {
		return nil, err
	}
	if err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Latest returns the newest message of a conversation by creation time.
func (r *MessageRepo) Latest(ctx context.Context, conversationID int64) (models.Message, error) {
	var msg models.Message
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?
        ORDER BY created_at DESC, id DESC LIMIT 1`)
	err := r.db.GetContext(ctx, &msg, query, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// LatestIDs maps each conversation that has messages to its highest message id.
func (r *MessageRepo) LatestIDs(ctx context.Context, conversationIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT conversation_id, MAX(id) AS max_id FROM messages WHERE conversation_id IN (?) GROUP BY conversation_id`, conversationIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ConversationID int64 `db:"conversation_id"`
		MaxID          int64 `db:"max_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ConversationID] = row.MaxID
	}
	return result, nil
}

// ListByConversation returns a page of messages newest first. Tombstones are
// included as placeholders.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]models.Message, error) {
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?
        ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, conversationID, limit, offset); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountUnread counts messages addressed to userID in one conversation.
func (r *MessageRepo) CountUnread(ctx context.Context, conversationID, userID int64) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM messages
        WHERE conversation_id = ? AND sender_id <> ? AND is_read = FALSE AND unsent = FALSE`)
	err := r.db.GetContext(ctx, &count, query, conversationID, userID)
	return count, err
}

// CountUnreadForUser counts messages addressed to userID across every conversation.
func (r *MessageRepo) CountUnreadForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE (c.participant1_id = ? OR c.participant2_id = ?)
        AND m.sender_id <> ? AND m.is_read = FALSE AND m.unsent = FALSE`)
	err := r.db.GetContext(ctx, &count, query, userID, userID, userID)
	return count, err
}

// UnreadCountsForUser returns per-conversation unread counts; conversations
// with nothing unread are absent.
func (r *MessageRepo) UnreadCountsForUser(ctx context.Context, userID int64) (map[int64]int, error) {
	query := r.db.Rebind(`SELECT m.conversation_id, COUNT(*) AS unread FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE (c.participant1_id = ? OR c.participant2_id = ?)
        AND m.sender_id <> ? AND m.is_read = FALSE AND m.unsent = FALSE
        GROUP BY m.conversation_id`)
	var rows []struct {
		ConversationID int64 `db:"conversation_id"`
		Unread         int   `db:"unread"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, userID, userID, userID); err != nil {
		return nil, err
	}
	result := make(map[int64]int, len(rows))
	for _, row := range rows {
		result[row.ConversationID] = row.Unread
	}
	return result, nil
}

// MarkRead marks the other participant's unread messages created at or before
// before as read and returns how many rows changed.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID int64, before time.Time) (int64, error) {
	query := r.db.Rebind(`UPDATE messages SET is_read = TRUE, updated_at = ?
        WHERE conversation_id = ? AND sender_id <> ? AND is_read = FALSE AND unsent = FALSE AND created_at <= ?`)
	res, err := r.db.ExecContext(ctx, query, before, conversationID, readerID, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Unsend tombstones a message owned by senderID.
func (r *MessageRepo) Unsend(ctx context.Context, messageID, senderID int64, now time.Time) error {
	query := r.db.Rebind(`UPDATE messages SET content = '', media_url = NULL, unsent = TRUE, updated_at = ?
        WHERE id = ? AND sender_id = ?`)
	res, err := r.db.ExecContext(ctx, query, now, messageID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
