package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kalambet/engram/internal/content"
)

func TestCompleteReturnsAssistantText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  a summary  "}},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "test-model", srv.URL)
	got, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "a summary" {
		t.Errorf("Complete = %q, want trimmed text", got)
	}
}

func TestCompleteRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "m", srv.URL)
	got, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "q"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" {
		t.Errorf("Complete = %q", got)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestCompleteServerErrorIsModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "m", srv.URL)
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "q"}})
	if err == nil {
		t.Fatal("expected error")
	}
	var modelErr *ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("error is %T, want *ModelError", err)
	}
}

func TestPrompterTruncatesContent(t *testing.T) {
	p := NewPrompter(100)
	unit := &content.Unit{
		Title:      "Long",
		SourceKind: content.KindArticle,
		RawText:    strings.Repeat("x", 500),
	}

	msgs := p.Summary(unit, "")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !strings.Contains(msgs[1].Content, "[... truncated]") {
		t.Error("expected truncation marker in user message")
	}
	if strings.Contains(msgs[1].Content, strings.Repeat("x", 101)) {
		t.Error("content not truncated to budget")
	}
}

func TestPrompterSummaryCarriesInstruction(t *testing.T) {
	p := NewPrompter(0)
	unit := &content.Unit{Title: "T", SourceKind: content.KindYouTube, RawText: "body"}

	msgs := p.Summary(unit, "focus on tooling")
	if !strings.Contains(msgs[0].Content, "focus on tooling") {
		t.Error("instruction missing from system message")
	}
}

func TestPrompterConversationOrder(t *testing.T) {
	p := NewPrompter(0)
	unit := &content.Unit{Title: "T", SourceKind: content.KindArticle, RawText: "body"}
	history := []Message{
		{Role: "assistant", Content: "the summary"},
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
	}

	msgs := p.Conversation(unit, "the summary", history, "q2")
	if msgs[0].Role != "system" {
		t.Fatalf("first message role = %q", msgs[0].Role)
	}
	if got := len(msgs); got != 5 {
		t.Fatalf("got %d messages, want 5", got)
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Content != "q2" {
		t.Errorf("last message = %+v", last)
	}
}
