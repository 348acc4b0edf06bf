package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

func TestCompleteSendsSystemPromptAndTemperature(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  {\"blurb\":\"x\"}  "}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", nil)
	got, err := client.Complete(context.Background(), "system rules", "user question", 0.2)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"blurb":"x"}` {
		t.Fatalf("expected trimmed response, got %q", got)
	}
	if payload["system"] != "system rules" || payload["prompt"] != "user question" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	opts, _ := payload["options"].(map[string]any)
	if opts == nil || opts["temperature"] != 0.2 {
		t.Fatalf("expected temperature option, got %v", payload["options"])
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", nil)
	embedder := NewEmbedder(client)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestCompleteWrapsRetryableStatusAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed", nil)
	_, err := client.Complete(context.Background(), "s", "u", 0.2)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}
