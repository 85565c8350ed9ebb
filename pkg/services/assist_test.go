package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chatline/models"
	"chatline/pkg/cache"
)

func msg(id, sender int64, content string) models.Message {
	return models.Message{ID: id, ConversationID: 1, SenderID: sender, Content: content, CreatedAt: models.Now()}
}

func localService() *AssistService {
	return &AssistService{
		enabled: false,
		cache:   cache.New(10),
		ttl:     time.Minute,
	}
}

func TestSuggestRepliesLocalMode(t *testing.T) {
	s := localService()
	recent := []models.Message{msg(1, 3, "are you coming?")}

	out, err := s.SuggestReplies(context.Background(), recent, 7)
	if err != nil {
		t.Fatalf("local suggestions failed: %v", err)
	}
	if len(out) == 0 || len(out) > 3 {
		t.Fatalf("expected 1-3 suggestions, got %v", out)
	}
}

func TestSuggestRepliesEmptyContext(t *testing.T) {
	s := localService()
	out, err := s.SuggestReplies(context.Background(), nil, 7)
	if err != nil || out != nil {
		t.Fatalf("expected nothing for empty context, got %v %v", out, err)
	}
}

func TestSummarizeLocalMode(t *testing.T) {
	s := localService()
	out, err := s.Summarize(context.Background(), []models.Message{msg(1, 3, "hi"), msg(2, 7, "hello")}, 7)
	if err != nil {
		t.Fatalf("local summary failed: %v", err)
	}
	if out == "" {
		t.Fatalf("expected non-empty summary")
	}
}

func TestSuggestRepliesCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Sure!\nSounds good.\nMaybe later."}]}}]}`))
	}))
	defer srv.Close()

	s := &AssistService{
		enabled: true,
		apiKey:  "test-key",
		model:   "test-model",
		cache:   cache.New(10),
		ttl:     time.Minute,
		baseURL: srv.URL,
	}
	recent := []models.Message{msg(1, 3, "dinner tonight?")}

	first, err := s.SuggestReplies(context.Background(), recent, 7)
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(first) != 3 || first[0] != "Sure!" {
		t.Fatalf("unexpected suggestions: %v", first)
	}

	second, err := s.SuggestReplies(context.Background(), recent, 7)
	if err != nil {
		t.Fatalf("cached suggest failed: %v", err)
	}
	if len(second) != 3 || calls.Load() != 1 {
		t.Fatalf("expected cache hit on second call, upstream calls=%d", calls.Load())
	}
}

func TestGenerateSurfacesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := &AssistService{
		enabled: true,
		apiKey:  "test-key",
		model:   "test-model",
		cache:   cache.New(10),
		ttl:     time.Minute,
		baseURL: srv.URL,
	}
	if _, err := s.Summarize(context.Background(), []models.Message{msg(1, 3, "hi")}, 7); err == nil {
		t.Fatalf("expected error when every model fails")
	}
}

func TestParseSuggestions(t *testing.T) {
	text := "1. \"Sounds great\"\n- Maybe tomorrow?\n\n* Thanks!\nfourth line ignored"
	out := parseSuggestions(text)
	if len(out) != 3 {
		t.Fatalf("expected 3 suggestions, got %v", out)
	}
	if out[0] != "Sounds great" || out[1] != "Maybe tomorrow?" || out[2] != "Thanks!" {
		t.Fatalf("bullets and numbering not stripped: %v", out)
	}
}

func TestRenderContextMarksSides(t *testing.T) {
	got := renderContext([]models.Message{msg(1, 3, "hi"), msg(2, 7, "hello")}, 7, 10)
	if !strings.Contains(got, "Them: hi") || !strings.Contains(got, "Me: hello") {
		t.Fatalf("unexpected context rendering:\n%s", got)
	}
}
