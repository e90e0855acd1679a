package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionPayload(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "demo-model",
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
}

func errorPayload(message, errType string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
		},
	}
}

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	}, opts...)
	client, err := NewClient(Config{BaseURL: serverURL + "/v1", APIKey: "sk-test"}, opts...)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestClientChatReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		_ = json.NewEncoder(w).Encode(completionPayload("All clear."))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	content, err := client.Chat(context.Background(), "demo-model", "system", "user")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if content != "All clear." {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientChatRetriesOnRateLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(errorPayload("rate limited", "rate_limit_error"))
			return
		}
		_ = json.NewEncoder(w).Encode(completionPayload("recovered"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	content, err := client.Chat(context.Background(), "demo-model", "system", "user")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if content != "recovered" {
		t.Fatalf("unexpected content %q", content)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestClientChatDoesNotRetryAuthFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(errorPayload("invalid api key", "invalid_request_error"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Chat(context.Background(), "demo-model", "system", "user")
	if err == nil {
		t.Fatal("expected chat to fail")
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestClientChatRetriesEmptyChoices(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(completionPayload("third time lucky"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	content, err := client.Chat(context.Background(), "demo-model", "system", "user")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if content != "third time lucky" {
		t.Fatalf("unexpected content %q", content)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestClientChatExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errorPayload("backend exploded", "server_error"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithRetryMaxAttempts(2))
	_, err := client.Chat(context.Background(), "demo-model", "system", "user")
	if err == nil {
		t.Fatal("expected chat to fail")
	}
	if !strings.Contains(err.Error(), "failed after 2 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "http://localhost:9"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []any{map[string]any{"id": "demo-model", "object": "model"}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}
