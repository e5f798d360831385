package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ericksa/contractlens/internal/logger"
)

// Options configures a Client. Zero values fall back to the defaults below.
type Options struct {
	Endpoint       string
	Model          string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	Temperature    float64
	InitialBackoff time.Duration
	HTTPClient     *http.Client
	Logger         *logger.Logger
}

// Client talks to an OpenAI-compatible chat completions endpoint
// (OpenAI, LM Studio, Ollama, vLLM).
type Client struct {
	baseURL        string
	model          string
	apiKey         string
	timeout        time.Duration
	maxRetries     int
	temperature    float64
	initialBackoff time.Duration
	httpClient     *http.Client
	log            *logger.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.Endpoint, "/"),
		model:          opts.Model,
		apiKey:         opts.APIKey,
		timeout:        opts.Timeout,
		maxRetries:     opts.MaxRetries,
		temperature:    opts.Temperature,
		initialBackoff: opts.InitialBackoff,
		httpClient:     opts.HTTPClient,
		log:            opts.Logger,
	}
	if c.model == "" {
		c.model = "local-model"
	}
	if c.timeout <= 0 {
		c.timeout = 45 * time.Second
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = 500 * time.Millisecond
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	c.log = c.log.With("service", "LLMClient")
	return c
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// HTTPError is a non-2xx answer from the endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Call sends one system + user exchange and returns the assistant text.
// Each attempt is bounded by the client timeout; transient failures are retried
// with exponential backoff up to MaxRetries times.
func (c *Client) Call(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	req := ChatRequest{
		Model:       c.model,
		Temperature: c.temperature,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, ChatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialBackoff
	eb.MaxInterval = 10 * time.Second

	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		return c.once(ctx, body)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn("LLM request retrying",
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"sleep", wait.String(),
				"error", err.Error(),
			)
		}),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) once(ctx context.Context, body []byte) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The caller gave up; retrying cannot help.
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		if !httpErr.retryable() {
			return "", backoff.Permanent(httpErr)
		}
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 && secs <= 30 {
			return "", backoff.RetryAfter(secs)
		}
		return "", httpErr
	}

	var result ChatResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", backoff.Permanent(ErrEmptyResponse)
	}
	return result.Choices[0].Message.Content, nil
}

// IsHTTPStatus reports whether err carries the given endpoint status code.
func IsHTTPStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}
