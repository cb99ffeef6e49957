package models

import "time"

// Conversation is the 1:1 channel between two users. Participant1ID is always
// the lower id.
type Conversation struct {
	ID             int64      `db:"id" json:"id"`
	Participant1ID int64      `db:"participant1_id" json:"participant1_id"`
	Participant2ID int64      `db:"participant2_id" json:"participant2_id"`
	LastMessageID  *int64     `db:"last_message_id" json:"last_message_id"`
	LastMessageAt  *time.Time `db:"last_message_at" json:"last_message_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID int64) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c Conversation) OtherParticipant(userID int64) int64 {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// ConversationSummary is the conversation-list view for one user.
type ConversationSummary struct {
	Conversation
	OtherParticipantID int64    `json:"other_participant_id"`
	LastMessage        *Message `json:"last_message"`
	UnreadCount        int      `json:"unread_count"`
}
