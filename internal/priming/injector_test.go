package priming

import (
	"context"
	"errors"
	"strings"
	"testing"

	"voicebridge/internal/agent"
	"voicebridge/internal/backend"
	"voicebridge/internal/conversation"
)

// scriptedStream records the order of control operations.
type scriptedStream struct {
	ops      []string
	injected string
	failOn   string
}

func (s *scriptedStream) SessionID() string { return "sess_test" }

func (s *scriptedStream) op(name string) error {
	s.ops = append(s.ops, name)
	if s.failOn == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (s *scriptedStream) Configure(backend.SessionConfig) error { return s.op("configure") }
func (s *scriptedStream) InjectContext(text string) error {
	s.injected = text
	return s.op("inject")
}
func (s *scriptedStream) RequestResponse() error           { return s.op("respond") }
func (s *scriptedStream) AppendAudio(string) error         { return s.op("audio") }
func (s *scriptedStream) Events() <-chan backend.ServerEvent { return nil }
func (s *scriptedStream) Close() error                     { return nil }

func testProfile() agent.Profile {
	return agent.Profile{Name: "billing", Instructions: "You handle billing questions."}
}

func TestPrime_OrdersContextBeforeGreeting(t *testing.T) {
	h := conversation.NewMemoryHistory()
	h.AppendTurns(context.Background(), "+15550001111", []conversation.TranscriptTurn{
		{Speaker: conversation.SpeakerUser, Text: "I was double charged"},
		{Speaker: conversation.SpeakerAssistant, Text: "I see two charges on the 3rd"},
	})

	inj := NewInjector(h, "alloy", 20, nil)
	st := &scriptedStream{}
	rec := conversation.Record{Identity: "+15550001111", ConversationRef: "conv_1", LastAgent: "billing"}

	if err := inj.Prime(context.Background(), st, testProfile(), "+15550001111", rec, true); err != nil {
		t.Fatalf("prime: %v", err)
	}

	want := []string{"configure", "inject", "respond"}
	if len(st.ops) != len(want) {
		t.Fatalf("expected ops %v, got %v", want, st.ops)
	}
	for i := range want {
		if st.ops[i] != want[i] {
			t.Fatalf("expected ops %v, got %v", want, st.ops)
		}
	}
}

func TestPrime_ContextBlockCarriesTurnsAndAgent(t *testing.T) {
	h := conversation.NewMemoryHistory()
	h.AppendTurns(context.Background(), "+15550001111", []conversation.TranscriptTurn{
		{Speaker: conversation.SpeakerUser, Text: "I was double charged"},
	})

	inj := NewInjector(h, "alloy", 20, nil)
	st := &scriptedStream{}
	rec := conversation.Record{Identity: "+15550001111", ConversationRef: "conv_1", LastAgent: "billing"}

	if err := inj.Prime(context.Background(), st, testProfile(), "+15550001111", rec, true); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if !strings.Contains(st.injected, "I was double charged") {
		t.Fatalf("context block missing prior turn: %q", st.injected)
	}
	if !strings.Contains(st.injected, "billing") {
		t.Fatalf("context block missing last agent: %q", st.injected)
	}
}

func TestPrime_NewCallerSkipsInjection(t *testing.T) {
	inj := NewInjector(conversation.NewMemoryHistory(), "alloy", 20, nil)
	st := &scriptedStream{}

	if err := inj.Prime(context.Background(), st, testProfile(), "+15550009999", conversation.Record{}, false); err != nil {
		t.Fatalf("prime: %v", err)
	}
	for _, op := range st.ops {
		if op == "inject" {
			t.Fatalf("new caller must not receive context injection: %v", st.ops)
		}
	}
	if st.ops[len(st.ops)-1] != "respond" {
		t.Fatalf("greeting must still be requested: %v", st.ops)
	}
}

func TestPrime_HistoryFailureDegradesToUnprimed(t *testing.T) {
	h := conversation.NewMemoryHistory()
	h.FailAll = errors.New("redis down")

	inj := NewInjector(h, "alloy", 20, nil)
	st := &scriptedStream{}
	rec := conversation.Record{Identity: "+15550001111", ConversationRef: "conv_1"}

	if err := inj.Prime(context.Background(), st, testProfile(), "+15550001111", rec, true); err != nil {
		t.Fatalf("history failure must not fail the call: %v", err)
	}
	for _, op := range st.ops {
		if op == "inject" {
			t.Fatalf("failed history read must skip injection: %v", st.ops)
		}
	}
}

func TestPrime_ConfigureFailureAborts(t *testing.T) {
	inj := NewInjector(conversation.NewMemoryHistory(), "alloy", 20, nil)
	st := &scriptedStream{failOn: "configure"}

	if err := inj.Prime(context.Background(), st, testProfile(), "+15550001111", conversation.Record{}, false); err == nil {
		t.Fatalf("expected error when session configuration fails")
	}
}

func TestFormatContextBlock_EmptyTurns(t *testing.T) {
	if got := FormatContextBlock(nil, "billing"); got != "" {
		t.Fatalf("expected empty block for no turns, got %q", got)
	}
}
