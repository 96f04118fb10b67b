package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/docrecall/internal/retry"
)

// Defaults for the OpenAI chat client
const (
	DefaultChatModel   = "gpt-4o-mini"
	DefaultChatBaseURL = "https://api.openai.com/v1"
)

// ErrEmptyReply is returned when the model answers with no content
var ErrEmptyReply = errors.New("empty model reply")

const defaultEnrichPrompt = `The user asked: %q

Rewrite it as an expanded search query that will find the relevant passages
in the user's own documents. Keep the meaning. Add the specific terms the
question implies (names, measurements, categories, related concepts).
Reply with the query only.`

const defaultKeywordPrompt = `Extract the core terms from the following text that best represent its
meaning and would help find it in a keyword search. Add up to 2 common
synonyms or broader related terms.

Do not include general language, administrative words, numbers or dates.
Return 5 to 7 terms total, in dictionary form, comma-separated, with no
explanations.

%q`

// ChatConfig configures the chat completions client
type ChatConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
	Retry       *retry.Config
}

// ChatClient calls an OpenAI-compatible /chat/completions endpoint
type ChatClient struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	retry       retry.Config
}

// NewChatClient builds a chat client. An API key is required.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat client: API key is required")
	}
	c := &ChatClient{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  cfg.HTTPClient,
		retry:       retry.Config{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 2},
	}
	if c.model == "" {
		c.model = DefaultChatModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultChatBaseURL
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 300
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Retry != nil {
		c.retry = *cfg.Retry
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the trimmed reply
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	return retry.Do(ctx, c.retry, func(ctx context.Context) (string, error) {
		return c.call(ctx, system, user)
	})
}

func (c *ChatClient) call(ctx context.Context, system, user string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", retry.Permanent(apiErr)
		}
		return "", apiErr
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", retry.Permanent(ErrEmptyReply)
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", retry.Permanent(ErrEmptyReply)
	}
	return reply, nil
}

// LLMEnricher rewrites questions with a chat model
type LLMEnricher struct {
	client *ChatClient
	prompt string
}

// NewLLMEnricher uses prompt (a format string with one %q verb) or the
// default when empty
func NewLLMEnricher(client *ChatClient, prompt string) *LLMEnricher {
	if prompt == "" {
		prompt = defaultEnrichPrompt
	}
	return &LLMEnricher{client: client, prompt: prompt}
}

func (e *LLMEnricher) Enrich(ctx context.Context, question string) (string, error) {
	reply, err := e.client.Complete(ctx, "", fmt.Sprintf(e.prompt, question))
	if err != nil {
		return "", fmt.Errorf("enrich query: %w", err)
	}
	return reply, nil
}

// LLMExtractor extracts keywords with a chat model
type LLMExtractor struct {
	client *ChatClient
	prompt string
}

// NewLLMExtractor uses prompt (a format string with one %q verb) or the
// default when empty
func NewLLMExtractor(client *ChatClient, prompt string) *LLMExtractor {
	if prompt == "" {
		prompt = defaultKeywordPrompt
	}
	return &LLMExtractor{client: client, prompt: prompt}
}

func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	reply, err := e.client.Complete(ctx, "You are a keyword extractor.", fmt.Sprintf(e.prompt, text))
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	return ParseKeywords(reply), nil
}
