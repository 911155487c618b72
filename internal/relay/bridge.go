package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voicebridge/internal/agent"
	"voicebridge/internal/backend"
	"voicebridge/internal/conversation"
	"voicebridge/internal/priming"
	"voicebridge/internal/session"
	"voicebridge/pkg/logger"
)

var (
	ErrNoStartEvent   = errors.New("relay: media stream did not begin with a start event")
	ErrUnknownCall    = errors.New("relay: no session for call")
	ErrBackendFailure = errors.New("relay: backend connection failed")
)

// Bridge runs one media relay per call: it binds the telephony stream to a
// fresh backend session, primes it with prior conversation, then pumps audio
// both ways until either leg ends.
//
// Per-direction ordering is by construction: one goroutine reads telephony
// frames, one reads backend events, each direction has a single writer.
type Bridge struct {
	sessions *session.Registry
	store    *conversation.Store
	history  conversation.HistorySource
	router   *agent.Router
	injector *priming.Injector
	dialer   backend.Dialer
	log      *slog.Logger
}

func NewBridge(
	sessions *session.Registry,
	store *conversation.Store,
	history conversation.HistorySource,
	router *agent.Router,
	injector *priming.Injector,
	dialer backend.Dialer,
	log *slog.Logger,
) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		sessions: sessions,
		store:    store,
		history:  history,
		router:   router,
		injector: injector,
		dialer:   dialer,
		log:      log,
	}
}

// Run drives one media-stream connection to completion. It owns conn: by the
// time Run returns, conn is closed and the call's session (if any) destroyed.
func (b *Bridge) Run(ctx context.Context, conn TelephonyConn) error {
	start, err := b.awaitStart(conn)
	if err != nil {
		conn.Close()
		return err
	}

	sess, ok := b.sessions.Get(start.CallID)
	if !ok {
		// The stream can arrive without a live session, e.g. after a restart
		// mid-call; the start parameters carry what is needed to bind it.
		if start.Identity == "" {
			b.log.Warn("media stream for unknown call without identity", "call_id", start.CallID)
			conn.Close()
			return ErrUnknownCall
		}
		created, err := b.sessions.Create(start.CallID, start.Identity)
		if err != nil {
			// Another stream bound this call in the meantime.
			conn.Close()
			return err
		}
		sess = created
	}
	log := logger.WithCall(b.log, sess.CallID, sess.Identity)
	sess.Touch()

	rec, hasRecord := b.store.Lookup(ctx, sess.Identity)
	profile := b.router.Route(ctx, b.lastUserTurn(ctx, sess.Identity, hasRecord), hasRecord)
	sess.SetProfile(profile)
	log.Info("routed call", "agent", profile.Name, "returning_caller", hasRecord)

	stream, err := b.dialer.Dial(ctx)
	if err != nil {
		// No retry within the call: destroy the session and end the call.
		log.Error("backend dial failed", "err", err)
		conn.Close()
		b.sessions.Destroy(sess.CallID)
		return errors.Join(ErrBackendFailure, err)
	}

	sess.AttachConns(conn, stream)
	sess.SetConversationRef(stream.SessionID())

	if err := b.injector.Prime(ctx, stream, profile, sess.Identity, rec, hasRecord); err != nil {
		log.Error("session priming failed", "err", err)
		b.sessions.Destroy(sess.CallID)
		return err
	}
	sess.SetStatus(session.StatusStreaming)
	log.Info("bridging started", "backend_session", stream.SessionID())

	// Teardown order matters: stop feeding the backend, let the backend pump
	// drain buffered transcripts, then destroy the session so the finisher
	// sees the complete call.
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.pumpBackend(sess, conn, stream, log)
		conn.Close()
	}()

	reason := b.pumpTelephony(sess, conn, stream, log)
	stream.Close()
	<-done
	log.Info("bridging ended", "reason", reason)
	b.sessions.Destroy(sess.CallID)
	return nil
}

// awaitStart reads frames until the start event arrives. Anything else first
// is a protocol violation and ends the connection.
func (b *Bridge) awaitStart(conn TelephonyConn) (StreamEvent, error) {
	deadline := time.Now().Add(startEventTimeout)
	for time.Now().Before(deadline) {
		ev, err := conn.ReadEvent()
		if err != nil {
			return StreamEvent{}, err
		}
		switch ev.Kind {
		case StreamStart:
			if ev.CallID == "" {
				return StreamEvent{}, ErrNoStartEvent
			}
			return ev, nil
		case StreamUnknown:
			continue
		default:
			return StreamEvent{}, ErrNoStartEvent
		}
	}
	return StreamEvent{}, ErrNoStartEvent
}

// pumpTelephony forwards caller audio to the backend until the stream stops.
// Audio reaches the backend only after priming completed, because this loop
// starts after Prime returns.
func (b *Bridge) pumpTelephony(sess *session.Session, conn TelephonyConn, stream backend.Stream, log *slog.Logger) string {
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			return "telephony stream ended"
		}
		switch ev.Kind {
		case StreamMedia:
			sess.Touch()
			if err := stream.AppendAudio(ev.Payload); err != nil {
				return "backend rejected audio"
			}
		case StreamStop:
			return "caller hung up"
		case StreamMark, StreamUnknown:
			log.Debug("skipping telephony event", "event", ev.Event)
		case StreamStart:
			// Duplicate start mid-call; nothing to rebind.
		}
	}
}

// pumpBackend forwards assistant audio and transcripts to the caller until
// the backend stream ends, then closes the telephony leg so the other pump
// unblocks.
func (b *Bridge) pumpBackend(sess *session.Session, conn TelephonyConn, stream backend.Stream, log *slog.Logger) {
	for ev := range stream.Events() {
		switch ev.Kind {
		case backend.KindAudioDelta:
			sess.Touch()
			if err := conn.WriteMedia(ev.Audio); err != nil {
				return
			}
		case backend.KindSpeechStarted:
			// Caller barge-in: drop assistant audio still buffered downstream.
			if err := conn.WriteClear(); err != nil {
				return
			}
		case backend.KindUserTranscript:
			sess.AppendTurn(conversation.SpeakerUser, ev.Text)
		case backend.KindAssistantText:
			sess.AppendTurn(conversation.SpeakerAssistant, ev.Text)
		case backend.KindError:
			log.Error("backend reported error", "message", ev.Text)
			return
		case backend.KindResponseDone, backend.KindSpeechStopped, backend.KindSessionCreated:
			// Lifecycle noise for the relay.
		}
	}
}

// lastUserTurn fetches the most recent caller turn for classification.
// Any failure means routing proceeds as if there were no usable history.
func (b *Bridge) lastUserTurn(ctx context.Context, identity string, hasRecord bool) string {
	if !hasRecord || b.history == nil {
		return ""
	}
	turns, err := b.history.RecentTurns(ctx, identity, 20)
	if err != nil {
		return ""
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Speaker == conversation.SpeakerUser {
			return turns[i].Text
		}
	}
	return ""
}

// Finisher returns the registry OnDestroy hook: it persists the conversation
// reference for the next contact and merges the call transcript into the
// cross-channel history. Failures are logged; teardown always completes.
func (b *Bridge) Finisher() func(*session.Session) {
	return func(s *session.Session) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if ref := s.ConversationRef(); ref != "" {
			b.store.Save(ctx, s.Identity, ref, s.Profile().Name)
		}
		if turns := s.Turns(); len(turns) > 0 && b.history != nil {
			if err := b.history.AppendTurns(ctx, s.Identity, turns); err != nil {
				b.log.Warn("transcript append failed", "call_id", s.CallID, "identity", s.Identity, "err", err)
			}
		}
	}
}
