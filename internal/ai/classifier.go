// Package ai asks a chat-completion model to pick one of a user's category
// names for an expense description.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/logging"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// DefaultTimeout bounds a single classification call.
const DefaultTimeout = 4 * time.Second

// ErrDisabled is returned when no API key was configured.
var ErrDisabled = errors.New("ai classifier is disabled")

// ErrUnrecognized is returned when the model answers with anything other than
// exactly one of the supplied names.
var ErrUnrecognized = errors.New("model reply is not a supplied category")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// newChatClient is overridable for tests. The HTTP client carries the same
// timeout as the call context and the library never retries.
var newChatClient = func(apiKey string, timeout time.Duration) chatClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// Options configures the classifier.
type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Classifier resolves free text to a category name.
type Classifier struct {
	client  chatClient
	model   string
	timeout time.Duration
	logger  *logrus.Entry
}

// NewClassifier builds a classifier. Without an API key the classifier is
// still usable but every call returns ErrDisabled.
func NewClassifier(opts Options, logger *logrus.Entry) *Classifier {
	if logger == nil {
		logger = logging.Logger()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	c := &Classifier{
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  logger,
	}
	if strings.TrimSpace(opts.APIKey) != "" {
		c.client = newChatClient(opts.APIKey, opts.Timeout)
	}

	return c
}

// Enabled reports whether calls reach the model.
func (c *Classifier) Enabled() bool {
	return c != nil && c.client != nil
}

// Classify returns the one name from names that best fits description.
func (c *Classifier) Classify(ctx context.Context, description string, names []string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if len(names) == 0 {
		return "", errors.New("no categories to choose from")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   32,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(names)},
			{Role: openai.ChatMessageRoleUser, Content: description},
		},
	})
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":      "ai_classify_failed",
			"elapsed_ms": time.Since(started).Milliseconds(),
		}).WithError(err).Warn("category classification failed")
		return "", fmt.Errorf("classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classify: %w", ErrUnrecognized)
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	for _, name := range names {
		if reply == name {
			return name, nil
		}
	}

	c.logger.WithFields(logging.Fields{
		"event": "ai_classify_unrecognized",
		"reply": reply,
	}).Info("model reply did not match a category")
	return "", fmt.Errorf("classify: %w", ErrUnrecognized)
}

func systemPrompt(names []string) string {
	var b strings.Builder
	b.WriteString("You categorize personal expenses. Reply with exactly one category from the list below, ")
	b.WriteString("copied verbatim including any emoji, and nothing else.\nCategories:\n")
	for _, name := range names {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	return b.String()
}
