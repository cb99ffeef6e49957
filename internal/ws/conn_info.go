package ws

import "time"

type ConnInfo struct {
	ConnID         string
	ConversationID int64
	UserID         int64
	DeviceID       string
	IP             string
	RequestID      string
	TraceID        string
	ConnectedAt    time.Time
}
