package messaging

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParticipant    = errors.New("invalid participant")
	ErrDuplicateConversation = errors.New("duplicate conversation")
	ErrNotAParticipant       = errors.New("sender is not a participant of the conversation")
	ErrInvalidMessageKind    = errors.New("invalid message kind")
	ErrEmptyContent          = errors.New("text message content is empty")
	ErrMediaRequired         = errors.New("media url is required for image and video messages")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrNotFound              = errors.New("not found")
	ErrUserExists            = errors.New("username or email already taken")
	ErrInvalidUser           = errors.New("invalid user")
	ErrStoreFailure          = errors.New("store failure")
)

// storeFailure keeps both ErrStoreFailure and the driver error in the chain.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
}
