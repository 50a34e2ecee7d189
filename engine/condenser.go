package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// DefaultModel is the Claude model used when none is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// noContext is the reply Claude gives when no memory is relevant.
const noContext = "NONE"

// Condenser turns retrieved memories into a system-prompt context for a
// conversation.
type Condenser interface {
	Condense(ctx context.Context, conversation string, memories string) (string, error)
}

// ClaudeCondenser asks Claude to keep only the memories relevant to the
// conversation.
type ClaudeCondenser struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	prompt    string
}

// ClaudeOption configures a ClaudeCondenser.
type ClaudeOption func(*ClaudeCondenser)

// WithModel sets the Claude model.
func WithModel(model string) ClaudeOption {
	return func(c *ClaudeCondenser) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int64) ClaudeOption {
	return func(c *ClaudeCondenser) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithSystemPrompt replaces DefaultExtractionPrompt.
func WithSystemPrompt(prompt string) ClaudeOption {
	return func(c *ClaudeCondenser) {
		if prompt != "" {
			c.prompt = prompt
		}
	}
}

// NewClaudeCondenser creates a condenser with its own Anthropic client.
// Extra request options (base URL, retries) are passed to the client.
func NewClaudeCondenser(apiKey string, opts []ClaudeOption, clientOpts ...option.RequestOption) *ClaudeCondenser {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, clientOpts...)...)
	return NewClaudeCondenserWithClient(&client, opts...)
}

// NewClaudeCondenserWithClient creates a condenser around an existing client.
func NewClaudeCondenserWithClient(client *anthropic.Client, opts ...ClaudeOption) *ClaudeCondenser {
	c := &ClaudeCondenser{
		client:    client,
		model:     DefaultModel,
		maxTokens: 1024,
		prompt:    DefaultExtractionPrompt,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Condense returns the memory context for conversation, or "" when Claude
// finds nothing relevant.
func (c *ClaudeCondenser) Condense(ctx context.Context, conversation string, memories string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.prompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildCondenseMessage(conversation, memories))),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() == nil && unavailable(err) {
			return "", fmt.Errorf("%w: claude API error: %w", core.ErrEngineUnavailable, err)
		}
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := strings.TrimSpace(text.String())
	log.Printf("[ENGINE] Claude condensed %d chars of memories into %d chars (in=%d out=%d tokens)",
		len(memories), len(out), resp.Usage.InputTokens, resp.Usage.OutputTokens)

	if out == noContext {
		return "", nil
	}
	return out, nil
}

// unavailable reports whether err means Claude could not serve the request:
// a transport failure, rate limiting or a server-side error.
func unavailable(err error) bool {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
}

func buildCondenseMessage(conversation, memories string) string {
	var b strings.Builder
	b.WriteString("<memories>\n")
	b.WriteString(memories)
	b.WriteString("\n</memories>\n\n<conversation>\n")
	b.WriteString(conversation)
	b.WriteString("\n</conversation>")
	return b.String()
}
