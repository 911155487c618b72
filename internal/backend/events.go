package backend

import "encoding/json"

// EventKind classifies the server events the relay reacts to. Anything the
// bridge does not handle maps to KindUnknown and is skipped, so new backend
// event types never break an active call.
type EventKind string

const (
	KindSessionCreated EventKind = "session_created"
	KindSpeechStarted  EventKind = "speech_started"
	KindSpeechStopped  EventKind = "speech_stopped"
	KindAudioDelta     EventKind = "audio_delta"
	KindUserTranscript EventKind = "user_transcript"
	KindAssistantText  EventKind = "assistant_transcript"
	KindResponseDone   EventKind = "response_done"
	KindError          EventKind = "error"
	KindUnknown        EventKind = "unknown"
)

// ServerEvent is the decoded form of one backend message.
type ServerEvent struct {
	Kind EventKind
	// Type is the raw backend event type, kept for logging unknown events.
	Type string
	// SessionID is set on KindSessionCreated.
	SessionID string
	// Audio is the base64 payload on KindAudioDelta, forwarded verbatim.
	Audio string
	// Text carries transcripts on KindUserTranscript / KindAssistantText and
	// the message on KindError.
	Text string
}

// rawServerEvent matches the wire shape of the realtime API's server events.
// Only the fields the relay consumes are decoded.
type rawServerEvent struct {
	Type    string `json:"type"`
	Delta   string `json:"delta"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	Transcript string `json:"transcript"`
	Error      struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseServerEvent decodes one backend frame. Malformed JSON and unrecognized
// event types both come back as KindUnknown rather than an error so the read
// loop can keep going.
func ParseServerEvent(data []byte) ServerEvent {
	var raw rawServerEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return ServerEvent{Kind: KindUnknown}
	}

	ev := ServerEvent{Type: raw.Type}
	switch raw.Type {
	case "session.created":
		ev.Kind = KindSessionCreated
		ev.SessionID = raw.Session.ID
	case "input_audio_buffer.speech_started":
		ev.Kind = KindSpeechStarted
	case "input_audio_buffer.speech_stopped":
		ev.Kind = KindSpeechStopped
	case "response.audio.delta":
		ev.Kind = KindAudioDelta
		ev.Audio = raw.Delta
	case "conversation.item.input_audio_transcription.completed":
		ev.Kind = KindUserTranscript
		ev.Text = raw.Transcript
	case "response.audio_transcript.done":
		ev.Kind = KindAssistantText
		ev.Text = raw.Transcript
	case "response.done":
		ev.Kind = KindResponseDone
	case "error":
		ev.Kind = KindError
		ev.Text = raw.Error.Message
	default:
		ev.Kind = KindUnknown
	}
	return ev
}
