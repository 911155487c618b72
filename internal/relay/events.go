package relay

import "encoding/json"

// StreamEventKind classifies telephony media-stream messages. Unrecognized
// events map to StreamUnknown and are skipped, never treated as errors.
type StreamEventKind string

const (
	StreamStart   StreamEventKind = "start"
	StreamMedia   StreamEventKind = "media"
	StreamStop    StreamEventKind = "stop"
	StreamMark    StreamEventKind = "mark"
	StreamUnknown StreamEventKind = "unknown"
)

// StreamEvent is one decoded message from the telephony media stream.
type StreamEvent struct {
	Kind StreamEventKind
	// Event is the raw event name, kept for logging unknown messages.
	Event string
	// StreamSID identifies the media stream; set on start.
	StreamSID string
	// CallID and Identity come from the start event's custom parameters,
	// planted there by the inbound-call webhook.
	CallID   string
	Identity string
	// Payload is the base64 audio on media events, forwarded verbatim.
	Payload string
	// Mark is the mark name on mark events.
	Mark string
}

type rawStreamEvent struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Start     struct {
		StreamSID        string            `json:"streamSid"`
		CallSID          string            `json:"callSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
	Mark struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// ParseStreamEvent decodes one telephony frame. Malformed JSON and unknown
// event names both come back as StreamUnknown.
func ParseStreamEvent(data []byte) StreamEvent {
	var raw rawStreamEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return StreamEvent{Kind: StreamUnknown}
	}

	ev := StreamEvent{Event: raw.Event, StreamSID: raw.StreamSID}
	switch raw.Event {
	case "start":
		ev.Kind = StreamStart
		if raw.Start.StreamSID != "" {
			ev.StreamSID = raw.Start.StreamSID
		}
		ev.CallID = raw.Start.CustomParameters["callId"]
		ev.Identity = raw.Start.CustomParameters["identity"]
		if ev.CallID == "" {
			ev.CallID = raw.Start.CallSID
		}
	case "media":
		ev.Kind = StreamMedia
		ev.Payload = raw.Media.Payload
	case "stop":
		ev.Kind = StreamStop
	case "mark":
		ev.Kind = StreamMark
		ev.Mark = raw.Mark.Name
	default:
		ev.Kind = StreamUnknown
	}
	return ev
}
