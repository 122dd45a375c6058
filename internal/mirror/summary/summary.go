// Package summary generates short summaries of daily notes.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Summarizer turns note content into a one or two sentence summary.
type Summarizer interface {
	Summarize(ctx context.Context, date, content string) (string, error)
}

// ErrEmptySummary is returned when the model answers without text.
var ErrEmptySummary = errors.New("model returned no summary text")

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 200

	// Notes longer than this are cut before being sent.
	maxPromptRunes = 12000
)

// Config configures the Anthropic summarizer.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int

	// Options are passed to the client; tests use them to point it at a
	// local server.
	Options []option.RequestOption
}

// Anthropic summarizes notes with the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic returns a summarizer. An empty API key is an error.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, cfg.Options...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Summarize implements Summarizer.
func (a *Anthropic) Summarize(ctx context.Context, date, content string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt(date, content))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize note %s: %w", date, err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return "", fmt.Errorf("note %s: %w", date, ErrEmptySummary)
	}
	return text, nil
}

func prompt(date, content string) string {
	if r := []rune(content); len(r) > maxPromptRunes {
		content = string(r[:maxPromptRunes])
	}
	return fmt.Sprintf(`Summarize this daily note from %s in one or two plain sentences.
Reply with the summary only, no preamble or markdown.

<note>
%s
</note>`, date, content)
}
