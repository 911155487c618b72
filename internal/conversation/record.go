package conversation

import (
	"errors"
	"time"
)

// Record is the durable, cross-channel mapping from an external identity
// (normalized phone number) to the opaque conversation reference produced by
// the AI backend, plus the agent that last served the identity.
//
// Invariant: exactly one record per identity. Writes are last-write-wins,
// serialized per identity by the store's identity lock when available.
type Record struct {
	Identity        string    `json:"identity" db:"identity"`
	ConversationRef string    `json:"conversation_ref" db:"conversation_ref"`
	LastAgent       string    `json:"last_agent" db:"last_agent"`
	LastActivity    time.Time `json:"last_activity" db:"last_activity"`
}

// TranscriptTurn is one spoken or written exchange turn. Turns live in the
// cross-channel history shared with the text-messaging path; the relay only
// buffers them in memory for the duration of a call.
type TranscriptTurn struct {
	Speaker   string    `json:"speaker"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

var (
	ErrNotFound        = errors.New("conversation: record not found")
	ErrInvalidArgument = errors.New("conversation: invalid argument")
)
