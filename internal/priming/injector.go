package priming

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"voicebridge/internal/agent"
	"voicebridge/internal/backend"
	"voicebridge/internal/conversation"
)

// Injector prepares a fresh backend session before any caller audio is
// forwarded: it applies the routed agent's configuration, injects the
// caller's recent cross-channel turns as non-spoken context, and asks the
// backend to speak the greeting.
type Injector struct {
	history conversation.HistorySource
	voice   string
	limit   int
	log     *slog.Logger
}

func NewInjector(history conversation.HistorySource, voice string, limit int, log *slog.Logger) *Injector {
	if limit <= 0 {
		limit = 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &Injector{history: history, voice: voice, limit: limit, log: log}
}

// Prime runs the full pre-audio sequence. Configuration and context creation
// complete before the greeting request, so the first spoken response already
// reflects prior conversation. History failures degrade to an unprimed
// session; they never fail the call.
func (inj *Injector) Prime(ctx context.Context, stream backend.Stream, profile agent.Profile, identity string, rec conversation.Record, hasRecord bool) error {
	if err := stream.Configure(backend.SessionConfig{
		Instructions: profile.Instructions,
		Voice:        inj.voice,
	}); err != nil {
		return fmt.Errorf("configure session: %w", err)
	}

	if hasRecord && inj.history != nil {
		turns, err := inj.history.RecentTurns(ctx, identity, inj.limit)
		if err != nil {
			inj.log.Warn("history unavailable, priming without context", "identity", identity, "err", err)
		} else if block := FormatContextBlock(turns, rec.LastAgent); block != "" {
			if err := stream.InjectContext(block); err != nil {
				return fmt.Errorf("inject context: %w", err)
			}
		}
	}

	if err := stream.RequestResponse(); err != nil {
		return fmt.Errorf("request greeting: %w", err)
	}
	return nil
}

// FormatContextBlock renders prior turns as a labeled text block the model
// treats as background, not as something to read aloud.
func FormatContextBlock(turns []conversation.TranscriptTurn, lastAgent string) string {
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The caller has spoken with us before. ")
	if lastAgent != "" {
		fmt.Fprintf(&b, "Their last conversation was handled by the %s agent. ", lastAgent)
	}
	b.WriteString("Recent conversation, oldest first:\n")
	for _, t := range turns {
		label := "Caller"
		if t.Speaker == conversation.SpeakerAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, t.Text)
	}
	b.WriteString("Use this context naturally. Do not recite it back to the caller.")
	return b.String()
}
