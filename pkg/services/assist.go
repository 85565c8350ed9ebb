package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"chatline/models"
	"chatline/pkg/cache"
	"chatline/pkg/config"
)

// AssistService produces reply suggestions and conversation summaries from
// the Gemini API. Results are cached per conversation tail so re-opening the
// suggestion panel does not re-bill the same context.
type AssistService struct {
	apiKey  string
	model   string
	enabled bool
	cache   *cache.Cache
	ttl     time.Duration
	baseURL string
}

func NewAssistService() *AssistService {
	return &AssistService{
		apiKey:  config.GeminiAPIKey,
		model:   config.GeminiModel,
		enabled: config.IsGeminiEnabled,
		cache:   cache.New(config.SuggestCacheMaxItems),
		ttl:     time.Duration(config.SuggestCacheTTLSeconds) * time.Second,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
	}
}

// SuggestReplies proposes up to three short replies to the recent context,
// from the viewing user's side of the conversation.
func (s *AssistService) SuggestReplies(ctx context.Context, recent []models.Message, selfID int64) ([]string, error) {
	if len(recent) == 0 {
		return nil, nil
	}
	key := cacheKey("suggest", recent)
	if v, ok := s.cache.Get(key); ok {
		return v.([]string), nil
	}

	if !s.enabled {
		out := suggestLocal(recent, selfID)
		s.cache.Set(key, out, s.ttl)
		return out, nil
	}
	if strings.TrimSpace(s.apiKey) == "" {
		log.Printf("[assist] GEMINI_API_KEY is not set")
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	prompt := fmt.Sprintf(
		"You are helping a user reply in a chat. Based on the conversation below, propose 3 short replies the user could send next. One reply per line, no numbering, no quotes, under 12 words each.\n\n%s",
		renderContext(recent, selfID, 10))

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	out := parseSuggestions(text)
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable suggestions in model output")
	}
	s.cache.Set(key, out, s.ttl)
	return out, nil
}

// Summarize condenses the conversation into a short paragraph.
func (s *AssistService) Summarize(ctx context.Context, msgs []models.Message, selfID int64) (string, error) {
	if len(msgs) == 0 {
		return "", fmt.Errorf("nothing to summarize")
	}
	key := cacheKey("summary", msgs)
	if v, ok := s.cache.Get(key); ok {
		return v.(string), nil
	}

	if !s.enabled {
		out := summarizeLocal(msgs)
		s.cache.Set(key, out, s.ttl)
		return out, nil
	}
	if strings.TrimSpace(s.apiKey) == "" {
		log.Printf("[assist] GEMINI_API_KEY is not set")
		return "", fmt.Errorf("GEMINI_API_KEY is not set")
	}

	prompt := fmt.Sprintf(
		"Summarize this chat conversation in at most 3 sentences. Mention decisions and open points. Plain prose, no preamble.\n\n%s",
		renderContext(msgs, selfID, 100))

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(text)
	if out == "" {
		return "", fmt.Errorf("empty summary from model")
	}
	s.cache.Set(key, out, s.ttl)
	return out, nil
}

// generate tries the configured model, then the known-good fallback, with one
// retry on transient failures.
func (s *AssistService) generate(ctx context.Context, prompt string) (string, error) {
	candidates := []string{s.model, "gemini-2.0-flash"}
	tried := make(map[string]error)

	for _, m := range candidates {
		if strings.TrimSpace(m) == "" {
			continue
		}
		text, err := s.callGenerateContent(ctx, m, prompt)
		if err != nil && isRetriable(err) {
			sleepWithContext(ctx, 2*time.Second)
			text, err = s.callGenerateContent(ctx, m, prompt)
		}
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
		if err != nil {
			tried[m] = err
			log.Printf("[assist] model %s failed: %v", m, err)
		}
	}

	var b strings.Builder
	b.WriteString("all assist models failed: ")
	first := true
	for m, e := range tried {
		if !first {
			b.WriteString("; ")
		}
		first = false
		fmt.Fprintf(&b, "%s -> %v", m, e)
	}
	return "", errors.New(b.String())
}

func (s *AssistService) callGenerateContent(ctx context.Context, model, prompt string) (string, error) {
	reqBody := map[string]any{
		"contents": []any{
			map[string]any{
				"role":  "user",
				"parts": []any{map[string]any{"text": prompt}},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     0.6,
			"maxOutputTokens": 512,
			"topK":            40,
			"topP":            0.9,
		},
	}
	bodyBytes, _ := json.Marshal(reqBody)

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("decode error: %w", err)
	}
	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text, nil
			}
		}
	}
	return "", fmt.Errorf("no text in model response")
}

// renderContext flattens the message tail into "Me:"/"Them:" lines.
func renderContext(msgs []models.Message, selfID int64, max int) string {
	if len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	var b strings.Builder
	for _, m := range msgs {
		who := "Them"
		if m.SenderID == selfID {
			who = "Me"
		}
		text := m.Content
		if len(text) > 300 {
			text = text[:300] + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", who, text)
	}
	return b.String()
}

// parseSuggestions splits model output into clean one-line replies.
func parseSuggestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func cacheKey(kind string, msgs []models.Message) string {
	tail := msgs
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	parts := make([]string, 0, len(tail)+1)
	parts = append(parts, kind)
	for _, m := range tail {
		parts = append(parts, fmt.Sprintf("%d:%d:%s", m.ConversationID, m.ID, m.Content))
	}
	return cache.Key(parts...)
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	e := strings.ToLower(err.Error())
	if strings.Contains(e, "status 503") || strings.Contains(e, "unavailable") {
		return true
	}
	if strings.Contains(e, "status 429") || strings.Contains(e, "resource_exhausted") || strings.Contains(e, "quota") {
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
