package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TelephonyConn is one telephony media-stream connection. The bridge reads
// events from it and writes audio and control frames back toward the caller.
type TelephonyConn interface {
	// ReadEvent blocks for the next decoded stream event.
	ReadEvent() (StreamEvent, error)
	// WriteMedia sends one base64 audio frame to the caller.
	WriteMedia(payload string) error
	// WriteClear flushes audio buffered on the telephony side, used when the
	// caller starts speaking over the assistant.
	WriteClear() error
	Close() error
}

const telephonyWriteTimeout = 5 * time.Second

// startEventTimeout bounds how long a fresh media-stream connection may sit
// silent before the start event binds it to a call.
const startEventTimeout = 10 * time.Second

// wsTelephonyConn adapts a gorilla websocket to TelephonyConn. Reads happen
// from a single goroutine (the bridge's loop); writes come from the backend
// pump and are serialized by a mutex.
type wsTelephonyConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	streamSID string

	closeOnce sync.Once
}

// NewTelephonyConn wraps an upgraded media-stream websocket. Until the start
// event binds the stream the read side carries a deadline so a silent client
// cannot hold the socket and its goroutine open; the deadline is cleared once
// the stream is bound. startTimeout <= 0 means the default.
func NewTelephonyConn(conn *websocket.Conn, startTimeout time.Duration) TelephonyConn {
	if startTimeout <= 0 {
		startTimeout = startEventTimeout
	}
	_ = conn.SetReadDeadline(time.Now().Add(startTimeout))
	return &wsTelephonyConn{conn: conn}
}

func (c *wsTelephonyConn) ReadEvent() (StreamEvent, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return StreamEvent{}, err
	}
	ev := ParseStreamEvent(data)
	if ev.Kind == StreamStart {
		_ = c.conn.SetReadDeadline(time.Time{})
		if ev.StreamSID != "" {
			c.writeMu.Lock()
			c.streamSID = ev.StreamSID
			c.writeMu.Unlock()
		}
	}
	return ev, nil
}

func (c *wsTelephonyConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(telephonyWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsTelephonyConn) WriteMedia(payload string) error {
	c.writeMu.Lock()
	sid := c.streamSID
	c.writeMu.Unlock()
	return c.writeJSON(map[string]any{
		"event":     "media",
		"streamSid": sid,
		"media":     map[string]string{"payload": payload},
	})
}

func (c *wsTelephonyConn) WriteClear() error {
	c.writeMu.Lock()
	sid := c.streamSID
	c.writeMu.Unlock()
	return c.writeJSON(map[string]any{
		"event":     "clear",
		"streamSid": sid,
	})
}

func (c *wsTelephonyConn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	return nil
}
