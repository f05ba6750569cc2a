// Package llm provides the language-model client behind agent decisions,
// run summaries and between-run learning.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai" // any OpenAI-compatible chat completions endpoint

	anthropicURL     = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
	openAIURL        = "https://api.openai.com/v1"

	defaultAnthropicModel = "claude-haiku-4-5-20251001"
)

// ErrDisabled is returned by every call on a nil or keyless client.
var ErrDisabled = errors.New("LLM client not configured")

// Config selects and tunes the provider.
type Config struct {
	Provider     string        `yaml:"provider"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxPerMinute int           `yaml:"max_per_minute"`
}

// Client wraps a chat API. A nil *Client is valid and reports Enabled() == false.
type Client struct {
	provider   string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// Completion is one model response split into the answer and any
// reasoning trace the provider exposes.
type Completion struct {
	Text     string
	Thinking string
}

// NewClient creates a client for cfg. Returns nil if no API key is set
// (LLM features disabled).
func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderAnthropic
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	model := strings.TrimSpace(cfg.Model)
	switch provider {
	case ProviderOpenAI:
		if baseURL == "" {
			baseURL = openAIURL
		}
	default:
		provider = ProviderAnthropic
		if baseURL == "" {
			baseURL = anthropicURL
		}
		if model == "" {
			model = defaultAnthropicModel
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxPerMin := cfg.MaxPerMinute
	if maxPerMin <= 0 {
		maxPerMin = 60
	}

	return &Client{
		provider:   provider,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		maxPerMin:  maxPerMin,
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Provider returns the configured provider name.
func (c *Client) Provider() string {
	if c == nil {
		return ""
	}
	return c.provider
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends a prompt and returns the response text plus any reasoning trace.
func (c *Client) Complete(ctx context.Context, system, userPrompt string, maxTokens int) (*Completion, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if err := c.allow(); err != nil {
		return nil, err
	}

	if c.provider == ProviderOpenAI {
		return c.completeOpenAI(ctx, system, userPrompt, maxTokens)
	}
	return c.completeAnthropic(ctx, system, userPrompt, maxTokens)
}

func (c *Client) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}
	c.callCount++
	return nil
}

// anthropicRequest is the Messages API request body.
type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// anthropicResponse is the Messages API response body.
type anthropicResponse struct {
	Content []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *Client) completeAnthropic(ctx context.Context, system, userPrompt string, maxTokens int) (*Completion, error) {
	req := anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []Message{{Role: "user", Content: userPrompt}},
	}

	respBody, err := c.post(ctx, c.baseURL+"/messages", req, func(h http.Header) {
		h.Set("x-api-key", c.apiKey)
		h.Set("anthropic-version", anthropicVersion)
	})
	if err != nil {
		return nil, err
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	out := &Completion{}
	var text strings.Builder
	for _, block := range apiResp.Content {
		switch block.Type {
		case "thinking":
			out.Thinking += block.Thinking
		default:
			text.WriteString(block.Text)
		}
	}
	out.Text = text.String()
	if out.Text == "" {
		return nil, fmt.Errorf("empty response")
	}

	slog.Debug("llm call",
		"provider", c.provider,
		"input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens,
	)
	return out, nil
}

// openAIRequest is the chat completions request body. ReasoningSplit asks
// compatible providers (MiniMax) to return the reasoning trace separately.
type openAIRequest struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	MaxTokens      int       `json:"max_tokens,omitempty"`
	ReasoningSplit bool      `json:"reasoning_split,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ReasoningDetails []struct {
				Text string `json:"text"`
			} `json:"reasoning_details"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) completeOpenAI(ctx context.Context, system, userPrompt string, maxTokens int) (*Completion, error) {
	var messages []Message
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: userPrompt})

	req := openAIRequest{
		Model:          c.model,
		Messages:       messages,
		MaxTokens:      maxTokens,
		ReasoningSplit: true,
	}

	respBody, err := c.post(ctx, c.baseURL+"/chat/completions", req, func(h http.Header) {
		h.Set("Authorization", "Bearer "+c.apiKey)
	})
	if err != nil {
		return nil, err
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return nil, fmt.Errorf("API error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	msg := apiResp.Choices[0].Message
	out := &Completion{Text: msg.Content, Thinking: msg.ReasoningContent}
	if len(msg.ReasoningDetails) > 0 {
		out.Thinking = msg.ReasoningDetails[0].Text
	}

	slog.Debug("llm call",
		"provider", c.provider,
		"input_tokens", apiResp.Usage.PromptTokens,
		"output_tokens", apiResp.Usage.CompletionTokens,
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, auth func(http.Header)) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	auth(httpReq.Header)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

// extractJSONObject returns the JSON object embedded in a model response,
// preferring a fenced ```json block when present.
func extractJSONObject(response string) (string, error) {
	if i := strings.Index(response, "```json"); i >= 0 {
		rest := response[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			response = rest[:j]
		}
	} else if i := strings.Index(response, "```"); i >= 0 {
		rest := response[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			response = rest[:j]
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return response[start : end+1], nil
}
