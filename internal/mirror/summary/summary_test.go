package summary

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"
)

// fakeMessages serves the Messages endpoint with a fixed text reply.
func fakeMessages(t *testing.T, reply string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			_ = json.Unmarshal(body, gotBody)
		}
		content := []map[string]any{}
		if reply != "" {
			content = append(content, map[string]any{"type": "text", "text": reply})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       DefaultModel,
			"content":     content,
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSummarizer(t *testing.T, srv *httptest.Server) *Anthropic {
	t.Helper()
	s, err := NewAnthropic(Config{
		APIKey:  "test-key",
		Options: []option.RequestOption{option.WithBaseURL(srv.URL), option.WithMaxRetries(0)},
	})
	require.NoError(t, err)
	return s
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	_, err := NewAnthropic(Config{})
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	var body map[string]any
	srv := fakeMessages(t, "  Shipped the watcher.  ", &body)
	s := newTestSummarizer(t, srv)

	got, err := s.Summarize(context.Background(), "2026-10-17", "- shipped the watcher")
	require.NoError(t, err)
	require.Equal(t, "Shipped the watcher.", got)

	require.Equal(t, DefaultModel, body["model"])
	require.EqualValues(t, DefaultMaxTokens, body["max_tokens"])
}

func TestSummarize_EmptyReply(t *testing.T) {
	srv := fakeMessages(t, "", nil)
	s := newTestSummarizer(t, srv)

	_, err := s.Summarize(context.Background(), "2026-10-17", "text")
	require.True(t, errors.Is(err, ErrEmptySummary), "error = %v", err)
}

func TestPrompt_Truncates(t *testing.T) {
	p := prompt("2026-01-01", strings.Repeat("a", maxPromptRunes+500))
	require.Less(t, len(p), maxPromptRunes+300)
	require.Contains(t, p, "2026-01-01")
}
