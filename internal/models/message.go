package models

import "time"

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
)

// Valid reports whether k is a supported message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo:
		return true
	}
	return false
}

// Message represents a direct message. Only IsRead and the unsent tombstone
// change after creation.
type Message struct {
	ID             int64       `db:"id" json:"id"`
	ConversationID int64       `db:"conversation_id" json:"conversation_id"`
	SenderID       int64       `db:"sender_id" json:"sender_id"`
	Content        string      `db:"content" json:"content"`
	Kind           MessageKind `db:"message_type" json:"message_type"`
	MediaURL       *string     `db:"media_url" json:"media_url"`
	IsRead         bool        `db:"is_read" json:"is_read"`
	Unsent         bool        `db:"unsent" json:"unsent"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// ConversationEvent is pushed to websocket clients of a conversation.
type ConversationEvent struct {
	Type           string   `json:"type"`
	ConversationID int64    `json:"conversation_id"`
	Message        *Message `json:"message,omitempty"`
	MessageID      int64    `json:"message_id,omitempty"`
	ReaderID       int64    `json:"reader_id,omitempty"`
	ReadCount      int64    `json:"read_count,omitempty"`
}

const (
	EventMessage = "message"
	EventUnsent  = "unsent"
	EventRead    = "read"
)
