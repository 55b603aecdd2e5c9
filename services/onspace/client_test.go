package onspace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func chatResponseBody(content string) string {
	resp := ChatResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  DefaultModel,
		Choices: []Choice{
			{Index: 0, Message: Message{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestEvaluateSuccess(t *testing.T) {
	var gotReq ChatRequest
	var gotAuth, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponseBody(`{"totalObtainedMarks": 5}`)))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	text, err := client.Evaluate(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if text != `{"totalObtainedMarks": 5}` {
		t.Errorf("unexpected response text: %q", text)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if gotReq.Model != DefaultModel {
		t.Errorf("unexpected model: %q", gotReq.Model)
	}
	if gotReq.Temperature != DefaultTemperature {
		t.Errorf("unexpected temperature: %v", gotReq.Temperature)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestEvaluateNotConfigured(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))
	defer server.Close()

	// Endpoint known but credential missing
	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.Evaluate(context.Background(), "s", "u")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Errorf("expected no network call, got %d", calls)
	}
}

func TestEvaluateClientErrorNotRetried(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, `{"error": "bad request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", MaxRetries: 3})

	_, err := client.Evaluate(context.Background(), "s", "u")

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", upstream.StatusCode)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Errorf("expected exactly 1 call for a 4xx, got %d", calls)
	}
}

func TestEvaluateServerErrorRetried(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(chatResponseBody("graded")))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", MaxRetries: 2})

	text, err := client.Evaluate(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if text != "graded" {
		t.Errorf("unexpected text: %q", text)
	}
	if atomic.LoadInt64(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestEvaluateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k"})

	_, err := client.Evaluate(context.Background(), "s", "u")

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !strings.Contains(upstream.Body, "no choices") {
		t.Errorf("unexpected error body: %q", upstream.Body)
	}
}

func TestEvaluateMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k"})

	_, err := client.Evaluate(context.Background(), "s", "u")

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !strings.Contains(upstream.Body, "malformed response") {
		t.Errorf("unexpected error body: %q", upstream.Body)
	}
}

func TestEvaluateContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", MaxRetries: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.Evaluate(ctx, "s", "u")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}
