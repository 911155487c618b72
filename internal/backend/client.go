package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"voicebridge/internal/config"

	"github.com/gorilla/websocket"
)

var (
	ErrHandshake = errors.New("backend: session handshake failed")
	ErrClosed    = errors.New("backend: stream closed")
)

// SessionConfig is what the relay asks the backend to become for one call:
// the routed agent's instructions, the voice, telephony audio codecs, and
// server-side turn detection.
type SessionConfig struct {
	Instructions string
	Voice        string
}

// Stream is one live realtime session with the AI backend.
//
// Configure and InjectContext must complete before audio is forwarded so the
// first spoken response already reflects the caller's prior conversation.
type Stream interface {
	// SessionID is the backend's opaque conversation reference.
	SessionID() string
	Configure(cfg SessionConfig) error
	// InjectContext adds prior-conversation text as a non-spoken system item.
	InjectContext(text string) error
	// RequestResponse asks the backend to speak (used for the greeting).
	RequestResponse() error
	// AppendAudio forwards one base64 telephony frame. The send path is a
	// bounded queue; under backpressure the oldest frame is dropped.
	AppendAudio(payload string) error
	// Events yields decoded server events until the stream dies, then closes.
	Events() <-chan ServerEvent
	Close() error
}

// Dialer opens realtime sessions. The relay depends on this interface so
// tests can substitute a scripted backend.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// WebsocketDialer dials the realtime API over a websocket.
type WebsocketDialer struct {
	cfg       config.BackendConfig
	queueSize int
	log       *slog.Logger
}

func NewWebsocketDialer(cfg config.BackendConfig, queueSize int, log *slog.Logger) *WebsocketDialer {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebsocketDialer{cfg: cfg, queueSize: queueSize, log: log}
}

// Dial connects, then blocks until the backend announces the session. The
// session ID must be known before priming, so the handshake read is
// synchronous and bounded by the configured handshake timeout.
func (d *WebsocketDialer) Dial(ctx context.Context) (Stream, error) {
	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	q := u.Query()
	q.Set("model", d.cfg.Model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("backend dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("backend dial: %w", err)
	}

	deadline := time.Now().Add(d.cfg.HandshakeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetReadDeadline(deadline)

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	ev := ParseServerEvent(data)
	if ev.Kind != KindSessionCreated || ev.SessionID == "" {
		conn.Close()
		return nil, fmt.Errorf("%w: first event %q", ErrHandshake, ev.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	s := &wsStream{
		conn:      conn,
		sessionID: ev.SessionID,
		events:    make(chan ServerEvent, 64),
		audioq:    make(chan string, d.queueSize),
		done:      make(chan struct{}),
		log:       d.log.With("backend_session", ev.SessionID),
	}
	go s.readLoop()
	go s.audioLoop()
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	sessionID string

	// writeMu serializes all websocket writes: control events from the relay
	// goroutine and audio appends from the audio loop.
	writeMu sync.Mutex

	events chan ServerEvent
	audioq chan string

	closeOnce sync.Once
	done      chan struct{}
	log       *slog.Logger
}

func (s *wsStream) SessionID() string { return s.sessionID }

func (s *wsStream) Events() <-chan ServerEvent { return s.events }

func (s *wsStream) writeJSON(v any) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *wsStream) Configure(cfg SessionConfig) error {
	return s.writeJSON(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions":        cfg.Instructions,
			"voice":               cfg.Voice,
			"input_audio_format":  "g711_ulaw",
			"output_audio_format": "g711_ulaw",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": map[string]any{
				"type": "server_vad",
			},
		},
	})
}

func (s *wsStream) InjectContext(text string) error {
	if text == "" {
		return nil
	}
	return s.writeJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "system",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
}

func (s *wsStream) RequestResponse() error {
	return s.writeJSON(map[string]any{"type": "response.create"})
}

// AppendAudio never blocks the telephony read loop: when the queue is full
// the oldest frame is dropped so latency stays bounded.
func (s *wsStream) AppendAudio(payload string) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	for {
		select {
		case s.audioq <- payload:
			return nil
		default:
		}
		select {
		case <-s.audioq:
			s.log.Debug("audio queue full, dropped oldest frame")
		default:
		}
	}
}

func (s *wsStream) audioLoop() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.audioq:
			err := s.writeJSON(map[string]any{
				"type":  "input_audio_buffer.append",
				"audio": payload,
			})
			if err != nil {
				// A failed audio send means the socket is gone; the read
				// loop will surface the close to the relay.
				s.log.Warn("audio send failed", "err", err)
				s.Close()
				return
			}
		}
	}
}

func (s *wsStream) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Info("backend stream ended", "err", err)
			}
			s.Close()
			return
		}
		ev := ParseServerEvent(data)
		if ev.Kind == KindUnknown {
			s.log.Debug("skipping unhandled backend event", "type", ev.Type)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	return nil
}
