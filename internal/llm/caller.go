package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

var (
	// ErrNoModel is returned when a stage has no model configured.
	ErrNoModel = errors.New("no language model configured")
	// ErrEmptyResponse is returned for a reply with no usable content.
	ErrEmptyResponse = errors.New("empty model response")
)

// Caller is the one operation the pipeline needs from a model backend.
type Caller interface {
	Call(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Attempt is the outcome of one model-backed try at a pipeline stage.
// Callers check OK and run their heuristic otherwise.
type Attempt[T any] struct {
	Value T
	Err   error
}

func (a Attempt[T]) OK() bool { return a.Err == nil }

func failed[T any](err error) Attempt[T] {
	return Attempt[T]{Err: err}
}

// TryJSON calls the model and decodes the reply into T. Network errors, empty
// replies, malformed JSON and validation failures all produce a failed Attempt.
func TryJSON[T any](ctx context.Context, c Caller, systemPrompt, prompt string, validate func(*T) error) Attempt[T] {
	if c == nil {
		return failed[T](ErrNoModel)
	}
	reply, err := c.Call(ctx, prompt, systemPrompt)
	if err != nil {
		return failed[T](err)
	}
	raw, err := ExtractJSON(reply)
	if err != nil {
		return failed[T](err)
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return failed[T](fmt.Errorf("malformed model JSON: %w", err))
	}
	if validate != nil {
		if err := validate(&v); err != nil {
			return failed[T](err)
		}
	}
	return Attempt[T]{Value: v}
}

// ExtractJSON pulls the first JSON object or array out of a model reply,
// tolerating markdown fences and surrounding prose.
func ExtractJSON(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	if s == "" {
		return "", ErrEmptyResponse
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON found in model reply")
	}
	open := s[start]
	closeCh := byte('}')
	if open == '[' {
		closeCh = ']'
	}
	end := strings.LastIndexByte(s, closeCh)
	if end < start {
		return "", fmt.Errorf("unterminated JSON in model reply")
	}
	return s[start : end+1], nil
}

// RateLimited gates every call on a token bucket shared by all pipeline stages.
type RateLimited struct {
	next    Caller
	limiter *rate.Limiter
}

func NewRateLimited(next Caller, perSecond float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Call(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Call(ctx, prompt, systemPrompt)
}

// Truncate clips text to at most n bytes without splitting a UTF-8 sequence.
func Truncate(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
