package backend

import "testing"

func TestParseServerEvent_SessionCreated(t *testing.T) {
	ev := ParseServerEvent([]byte(`{"type":"session.created","session":{"id":"sess_123"}}`))
	if ev.Kind != KindSessionCreated {
		t.Fatalf("expected session created, got %q", ev.Kind)
	}
	if ev.SessionID != "sess_123" {
		t.Fatalf("expected session id, got %q", ev.SessionID)
	}
}

func TestParseServerEvent_AudioDelta(t *testing.T) {
	ev := ParseServerEvent([]byte(`{"type":"response.audio.delta","delta":"bXUtbGF3"}`))
	if ev.Kind != KindAudioDelta {
		t.Fatalf("expected audio delta, got %q", ev.Kind)
	}
	if ev.Audio != "bXUtbGF3" {
		t.Fatalf("payload must pass through verbatim, got %q", ev.Audio)
	}
}

func TestParseServerEvent_Transcripts(t *testing.T) {
	user := ParseServerEvent([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"hello"}`))
	if user.Kind != KindUserTranscript || user.Text != "hello" {
		t.Fatalf("unexpected user transcript event: %+v", user)
	}

	assistant := ParseServerEvent([]byte(`{"type":"response.audio_transcript.done","transcript":"hi there"}`))
	if assistant.Kind != KindAssistantText || assistant.Text != "hi there" {
		t.Fatalf("unexpected assistant transcript event: %+v", assistant)
	}
}

func TestParseServerEvent_SpeechBoundaries(t *testing.T) {
	if ev := ParseServerEvent([]byte(`{"type":"input_audio_buffer.speech_started"}`)); ev.Kind != KindSpeechStarted {
		t.Fatalf("expected speech started, got %q", ev.Kind)
	}
	if ev := ParseServerEvent([]byte(`{"type":"input_audio_buffer.speech_stopped"}`)); ev.Kind != KindSpeechStopped {
		t.Fatalf("expected speech stopped, got %q", ev.Kind)
	}
}

func TestParseServerEvent_Error(t *testing.T) {
	ev := ParseServerEvent([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad session"}}`))
	if ev.Kind != KindError {
		t.Fatalf("expected error kind, got %q", ev.Kind)
	}
	if ev.Text != "bad session" {
		t.Fatalf("expected error message, got %q", ev.Text)
	}
}

func TestParseServerEvent_UnknownTypeIsSkippable(t *testing.T) {
	ev := ParseServerEvent([]byte(`{"type":"rate_limits.updated","rate_limits":[]}`))
	if ev.Kind != KindUnknown {
		t.Fatalf("expected unknown kind, got %q", ev.Kind)
	}
	if ev.Type != "rate_limits.updated" {
		t.Fatalf("raw type must be preserved for logging, got %q", ev.Type)
	}
}

func TestParseServerEvent_MalformedJSON(t *testing.T) {
	if ev := ParseServerEvent([]byte(`{not json`)); ev.Kind != KindUnknown {
		t.Fatalf("malformed frames must map to unknown, got %q", ev.Kind)
	}
}
