package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type readResult struct {
	ev  StreamEvent
	err error
}

// serveConn upgrades one media-stream connection and reads up to reads
// events from it, reporting each result.
func serveConn(t *testing.T, startTimeout time.Duration, reads int) (*websocket.Conn, chan readResult) {
	t.Helper()
	results := make(chan readResult, reads)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewTelephonyConn(ws, startTimeout)
		defer conn.Close()
		for i := 0; i < reads; i++ {
			ev, err := conn.ReadEvent()
			results <- readResult{ev: ev, err: err}
			if err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, results
}

func TestTelephonyConn_SilentClientTimesOut(t *testing.T) {
	_, results := serveConn(t, 100*time.Millisecond, 1)

	select {
	case res := <-results:
		if res.err == nil {
			t.Fatalf("expected read error for a client that never sends start, got %+v", res.ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("silent client held the connection past the start deadline")
	}
}

func TestTelephonyConn_DeadlineClearedAfterStart(t *testing.T) {
	client, results := serveConn(t, 100*time.Millisecond, 2)

	err := client.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"start","start":{"streamSid":"MZ1","callSid":"CA1"}}`))
	if err != nil {
		t.Fatalf("write start: %v", err)
	}
	res := <-results
	if res.err != nil || res.ev.Kind != StreamStart {
		t.Fatalf("start read failed: %+v, %v", res.ev, res.err)
	}

	// Idle longer than the pre-start deadline; the bound stream must stay
	// readable.
	time.Sleep(300 * time.Millisecond)
	err = client.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"media","media":{"payload":"aGk="}}`))
	if err != nil {
		t.Fatalf("write media: %v", err)
	}
	res = <-results
	if res.err != nil || res.ev.Kind != StreamMedia {
		t.Fatalf("media read failed after start deadline window: %+v, %v", res.ev, res.err)
	}
}
