package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicebridge/internal/conversation"
	"voicebridge/internal/session"

	"github.com/gin-gonic/gin"
)

func newTestAPI(t *testing.T) (*gin.Engine, *session.Registry, *conversation.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := session.NewRegistry(nil)
	store := conversation.NewStore(conversation.NewMemoryRepo(), nil, nil)

	r := gin.New()
	NewOperatorHandlers(sessions, store).Register(r.Group("/v1"))
	return r, sessions, store
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestListCalls(t *testing.T) {
	r, sessions, _ := newTestAPI(t)
	sessions.Create("CA1", "+15550001111")

	w := do(r, http.MethodGet, "/v1/calls")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Calls []session.Info `json:"calls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Calls) != 1 || body.Calls[0].CallID != "CA1" {
		t.Fatalf("unexpected calls: %+v", body.Calls)
	}
}

func TestGetConversation(t *testing.T) {
	r, _, store := newTestAPI(t)

	if w := do(r, http.MethodGet, "/v1/conversations/+15550001111"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown identity, got %d", w.Code)
	}

	store.Save(context.Background(), "+15550001111", "conv_1", "billing")
	w := do(r, http.MethodGet, "/v1/conversations/+15550001111")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var rec conversation.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ConversationRef != "conv_1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestDeleteConversation(t *testing.T) {
	r, _, store := newTestAPI(t)
	ctx := context.Background()
	store.Save(ctx, "+15550001111", "conv_1", "billing")

	if w := do(r, http.MethodDelete, "/v1/conversations/+15550001111"); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if _, ok := store.Lookup(ctx, "+15550001111"); ok {
		t.Fatalf("record must be gone after delete")
	}
}
