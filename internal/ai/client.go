// Package ai wraps the OpenAI chat completion API for the /chat command.
package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

var ErrDisabled = errors.New("ai chat is not configured")

const systemPrompt = "You are a friendly Discord bot assistant. " +
	"Keep answers short and conversational; Discord messages cap at 2000 characters."

// Client is a thin chat-completion wrapper. A nil Client (no API key
// configured) fails every call with ErrDisabled so the command surface can
// report the feature as off.
type Client struct {
	api    *openai.Client
	model  string
	logger *slog.Logger
}

func NewClient(apiKey, model string, logger *slog.Logger) *Client {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// Complete sends one user prompt and returns the assistant's reply, trimmed
// to fit a Discord message.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 500,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}

	reply := truncateReply(strings.TrimSpace(resp.Choices[0].Message.Content), 2000)

	c.logger.Debug("chat completion",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return reply, nil
}

// truncateReply caps a reply at max bytes with a trailing ellipsis, backing
// up to a rune boundary so multi-byte characters are never split.
func truncateReply(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
