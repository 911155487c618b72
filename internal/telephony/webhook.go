package telephony

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var ErrValidation = errors.New("telephony: invalid webhook payload")

// InboundCall is the parsed form body of the inbound-voice webhook.
type InboundCall struct {
	CallSID string
	From    string
	To      string
}

// ParseInboundCall validates the inbound-voice form. CallSid, From and To
// are all required; a missing field rejects the webhook before any session
// state is created.
func ParseInboundCall(form url.Values) (InboundCall, error) {
	call := InboundCall{
		CallSID: strings.TrimSpace(form.Get("CallSid")),
		From:    NormalizeIdentity(form.Get("From")),
		To:      strings.TrimSpace(form.Get("To")),
	}

	var missing []string
	if call.CallSID == "" {
		missing = append(missing, "CallSid")
	}
	if call.From == "" {
		missing = append(missing, "From")
	}
	if call.To == "" {
		missing = append(missing, "To")
	}
	if len(missing) > 0 {
		return InboundCall{}, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return call, nil
}

// StatusCallback is the parsed form body of the call-status webhook.
type StatusCallback struct {
	CallSID  string
	Status   string
	Duration int
}

func ParseStatusCallback(form url.Values) (StatusCallback, error) {
	cb := StatusCallback{
		CallSID: strings.TrimSpace(form.Get("CallSid")),
		Status:  strings.ToLower(strings.TrimSpace(form.Get("CallStatus"))),
	}
	if cb.CallSID == "" || cb.Status == "" {
		return StatusCallback{}, fmt.Errorf("%w: missing CallSid or CallStatus", ErrValidation)
	}
	if d := form.Get("CallDuration"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			cb.Duration = n
		}
	}
	return cb, nil
}

// Terminal reports whether the status means the call is over and its session
// should be torn down.
func (cb StatusCallback) Terminal() bool {
	switch cb.Status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}

// NormalizeIdentity canonicalizes a caller number into the identity key used
// across the voice and text paths: trimmed, no separators, E.164-style.
func NormalizeIdentity(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	// Non-numeric callers (e.g. client: addresses) keep their raw form.
	if b.Len() == 0 || (b.Len() == 1 && raw[0] == '+') {
		return raw
	}
	return b.String()
}
