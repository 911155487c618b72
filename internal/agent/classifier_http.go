package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClassifier calls an external classification endpoint:
//
//	POST <url>  {"text": "<last user turn>"}  →  {"agent": "<profile name>"}
//
// The endpoint is typically a thin wrapper around an LLM call owned by the
// text-messaging path.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Agent string `json:"agent"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, lastUserTurn string) (string, error) {
	body, err := json.Marshal(classifyRequest{Text: lastUserTurn})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little for the error message; the router only logs it.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("classifier status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("classifier decode: %w", err)
	}
	return strings.TrimSpace(out.Agent), nil
}
