package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"cgu-connect/internal/models"
)

const conversationColumns = `id, participant1_id, participant2_id, last_message_id, last_message_at, created_at, updated_at`

// ConversationRepository abstracts conversation persistence. Callers pass
// participants already in canonical order (low, high).
type ConversationRepository interface {
	GetByParticipants(ctx context.Context, low, high int64) (models.Conversation, error)
	Create(ctx context.Context, low, high int64, now time.Time) (models.Conversation, error)
	Get(ctx context.Context, conversationID int64) (models.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID, messageID int64, at time.Time) error
	ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetByParticipants looks a conversation up by its canonical pair.
func (r *ConversationRepo) GetByParticipants(ctx context.Context, low, high int64) (models.Conversation, error) {
	var conv models.Conversation
	query := r.db.Rebind(`SELECT ` + conversationColumns + ` FROM conversations WHERE participant1_id = ? AND participant2_id = ?`)
	err := r.db.GetContext(ctx, &conv, query, low, high)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Create inserts a conversation with no last message. Losing a creation race
// for the same pair yields ErrDuplicateConversation.
func (r *ConversationRepo) Create(ctx context.Context, low, high int64, now time.Time) (models.Conversation, error) {
	conv := models.Conversation{
		Participant1ID: low,
		Participant2ID: high,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	query := r.db.Rebind(`INSERT INTO conversations (participant1_id, participant2_id, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query, low, high, now, now).Scan(&conv.ID); err != nil {
		switch {
		case isUniqueViolation(err):
			return models.Conversation{}, ErrDuplicateConversation
		case isForeignKeyViolation(err):
			return models.Conversation{}, ErrUnknownReference
		}
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, r.db.Rebind(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// UpdateLastMessage moves the denormalized pointer to messageID. The pointer
// never moves backwards in time.
func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, conversationID, messageID int64, at time.Time) error {
	query := r.db.Rebind(`UPDATE conversations SET last_message_id = ?, last_message_at = ?, updated_at = ?
        WHERE id = ? AND (last_message_at IS NULL OR last_message_at <= ?)`)
	res, err := r.db.ExecContext(ctx, query, messageID, at, at, conversationID, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		// either the conversation is gone or a newer message already owns the pointer
		var exists bool
		if err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = ?)`), conversationID); err != nil {
			return err
		}
		if !exists {
			return ErrConversationNotFound
		}
	}
	return nil
}

// ListForUser returns the user's conversations, most recent activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	query := r.db.Rebind(`SELECT ` + conversationColumns + ` FROM conversations
        WHERE participant1_id = ? OR participant2_id = ?
        ORDER BY COALESCE(last_message_at, created_at) DESC, id DESC`)
	convs := []models.Conversation{}
	if err := r.db.SelectContext(ctx, &convs, query, userID, userID); err != nil {
		return nil, err
	}
	return convs, nil
}
