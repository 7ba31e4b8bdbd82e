// Package stage implements the document stages that feed the matcher:
// translation of the QA document, material extraction and supplier BOM
// parsing.
package stage

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/bom-matcher/internal/config"
	"github.com/sells-group/bom-matcher/internal/model"
	"github.com/sells-group/bom-matcher/internal/resilience"
	"github.com/sells-group/bom-matcher/pkg/anthropic"
)

// LLMObserver records LLM call outcomes.
type LLMObserver interface {
	ObserveLLMRequest(stage model.Stage, err error)
}

// LLM wraps an anthropic.Client with rate limiting, retries and cost logging.
// It is shared by the translation and extraction stages.
type LLM struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
	observer  LLMObserver
	log       *zap.Logger
}

// LLMOption configures an LLM.
type LLMOption func(*LLM)

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) LLMOption {
	return func(l *LLM) { l.retry = cfg }
}

// WithLLMObserver sets the metrics observer.
func WithLLMObserver(o LLMObserver) LLMOption {
	return func(l *LLM) {
		if o != nil {
			l.observer = o
		}
	}
}

// WithLLMLogger sets the logger.
func WithLLMLogger(log *zap.Logger) LLMOption {
	return func(l *LLM) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLLM creates an LLM caller. A non-positive RequestsPerSecond disables
// rate limiting.
func NewLLM(client anthropic.Client, cfg config.AnthropicConfig, opts ...LLMOption) *LLM {
	l := &LLM{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     resilience.WithAttempts(cfg.MaxAttempts),
		observer:  nopLLMObserver{},
		log:       zap.L(),
	}
	if l.maxTokens <= 0 {
		l.maxTokens = 4096
	}
	if rps := cfg.RequestsPerSecond; rps > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.retry.OnRetry == nil {
		l.retry.OnRetry = resilience.RetryLogger(l.log, "llm")
	}
	return l
}

// Complete sends a single-turn prompt and returns the response text.
func (l *LLM) Complete(ctx context.Context, stage model.Stage, system, prompt string) (string, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       l.model,
		MaxTokens:   l.maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "llm: rate limit wait")
			}
		}
		resp, err := l.client.CreateMessage(ctx, req)
		l.observer.ObserveLLMRequest(stage, err)
		return resp, classify(err)
	})
	if err != nil {
		return "", eris.Wrapf(err, "llm: %s", stage)
	}

	resp.Usage.LogCost(l.log, l.model, string(stage))
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.Errorf("llm: %s: empty response", stage)
	}
	return text, nil
}

// classify marks retryable API status codes as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyStatus(err, apiErr.StatusCode)
	}
	return err
}

// cleanJSON extracts a JSON value from text that may contain markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(text, closer); end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

type nopLLMObserver struct{}

func (nopLLMObserver) ObserveLLMRequest(model.Stage, error) {}
