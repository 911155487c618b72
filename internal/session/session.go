package session

import (
	"errors"
	"sync"
	"time"

	"voicebridge/internal/agent"
	"voicebridge/internal/conversation"
)

// Status is the lifecycle stage of one call session.
type Status string

const (
	// StatusRinging: webhook accepted, media stream not yet connected.
	StatusRinging Status = "ringing"
	// StatusStreaming: both legs connected, audio flowing.
	StatusStreaming Status = "streaming"
	// StatusDraining: teardown started, persisting state and closing legs.
	StatusDraining Status = "draining"
	// StatusClosed: terminal.
	StatusClosed Status = "closed"
)

var (
	ErrDuplicateSession = errors.New("session: call already has a session")
	ErrSessionNotFound  = errors.New("session: not found")
)

// ConnHandle is the minimal surface the registry needs to force-close a leg.
// Both the telephony websocket and the backend stream satisfy it.
type ConnHandle interface {
	Close() error
}

// Session tracks the state of one live call: identity, lifecycle status, the
// agent profile serving it, both connection legs, and the in-call transcript
// buffered for history append at teardown.
type Session struct {
	CallID    string
	Identity  string
	CreatedAt time.Time

	mu              sync.Mutex
	status          Status
	profile         agent.Profile
	conversationRef string
	telephonyConn   ConnHandle
	backendConn     ConnHandle
	transcript      []conversation.TranscriptTurn
	lastActivity    time.Time
}

func New(callID, identity string) *Session {
	now := time.Now()
	return &Session{
		CallID:       callID,
		Identity:     identity,
		CreatedAt:    now,
		status:       StatusRinging,
		lastActivity: now,
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus advances the lifecycle. Closed is terminal; transitions out of
// it are ignored.
func (s *Session) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusClosed {
		return
	}
	s.status = st
}

func (s *Session) Profile() agent.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) SetProfile(p agent.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

func (s *Session) ConversationRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationRef
}

func (s *Session) SetConversationRef(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationRef = ref
}

// AttachConns records both legs so teardown can close them.
func (s *Session) AttachConns(telephony, backend ConnHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telephonyConn = telephony
	s.backendConn = backend
}

// CloseConns closes whichever legs are attached. Safe to call repeatedly.
func (s *Session) CloseConns() {
	s.mu.Lock()
	tel, be := s.telephonyConn, s.backendConn
	s.telephonyConn, s.backendConn = nil, nil
	s.mu.Unlock()

	if tel != nil {
		_ = tel.Close()
	}
	if be != nil {
		_ = be.Close()
	}
}

// Touch marks activity on either leg, resetting the idle clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// IdleFor reports how long the session has been without activity.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// AppendTurn buffers a transcript turn for the cross-channel history.
func (s *Session) AppendTurn(speaker, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, conversation.TranscriptTurn{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

// Turns returns a copy of the buffered transcript.
func (s *Session) Turns() []conversation.TranscriptTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.TranscriptTurn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Info is an immutable snapshot for the operator API.
type Info struct {
	CallID    string    `json:"call_id"`
	Identity  string    `json:"identity"`
	Status    Status    `json:"status"`
	Agent     string    `json:"agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	IdleSecs  float64   `json:"idle_seconds"`
}

func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		CallID:    s.CallID,
		Identity:  s.Identity,
		Status:    s.status,
		Agent:     s.profile.Name,
		CreatedAt: s.CreatedAt,
		IdleSecs:  time.Since(s.lastActivity).Seconds(),
	}
}
