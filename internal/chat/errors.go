// ABOUTME: Error taxonomy for the chat session manager
// ABOUTME: Sentinel errors plus SendError, which preserves the caller's draft

package chat

import (
	"errors"
	"fmt"
)

// ErrConversationUnavailable is returned when the find/create/list/subscribe
// path of Open fails. The caller may retry Open; the conversation must not be
// presented as empty.
var ErrConversationUnavailable = errors.New("conversation unavailable")

// ErrEmptyMessage is returned when a message is empty after trimming whitespace
var ErrEmptyMessage = errors.New("message text is empty")

// ErrInvalidSender is returned when the sender identity doesn't match the
// declared role. Client messages must come from the session's client; admin
// messages require a real authenticated principal id.
var ErrInvalidSender = errors.New("invalid sender identity")

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = errors.New("session is closed")

// SendError wraps a failed insert. Draft holds the trimmed text that was
// being sent so the caller can restore it instead of losing the user's input.
type SendError struct {
	Draft string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
