// Package extract turns a chunk of document text into a schema-complete
// dataset record using a language model.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-updater/internal/llm"
	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/internal/resilience"
)

// Defaults for the extraction call.
const (
	DefaultMaxTokens = 5000
	DefaultTimeout   = 120 * time.Second
)

// Result is the outcome of one extraction. Record is always schema-complete;
// on failure every field holds the sentinel.
type Result struct {
	Record   model.Record
	Usage    model.TokenUsage
	Attempts int
}

// Extractor asks a Generator for the metadata of a chunk of text.
type Extractor struct {
	gen         llm.Generator
	retry       resilience.RetryConfig
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRetry sets the retry policy for service errors.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Extractor) { e.retry = cfg }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(e *Extractor) { e.temperature = t }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an Extractor.
func New(gen llm.Generator, opts ...Option) *Extractor {
	e := &Extractor{
		gen:       gen,
		retry:     resilience.DefaultRetryConfig(),
		maxTokens: DefaultMaxTokens,
		timeout:   DefaultTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	e.retry.ShouldRetry = llm.IsRetryable
	if e.retry.OnRetry == nil {
		e.retry.OnRetry = resilience.RetryLogger(gen.Name(), "extract")
	}
	return e
}

// Extract returns the record described by text. Service errors are retried
// per the retry policy; content that holds no JSON object is not. The error
// is informational: Result.Record is usable either way.
func (e *Extractor) Extract(ctx context.Context, text string) (Result, error) {
	res := Result{Record: model.NewRecord()}
	if strings.TrimSpace(text) == "" {
		return res, nil
	}

	req := llm.Request{
		System:      SystemPrompt,
		Prompt:      Prompt(text),
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*llm.Response, error) {
		res.Attempts++
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return e.gen.Generate(callCtx, req)
	})
	if err != nil {
		return res, eris.Wrapf(err, "extract: generate after %d attempt(s)", res.Attempts)
	}
	res.Usage = resp.Usage

	obj, err := Parse(resp.Text)
	if err != nil {
		zap.L().Debug("extract: unparseable response",
			zap.String("provider", e.gen.Name()),
			zap.Int("response_len", len(resp.Text)),
		)
		return res, eris.Wrap(err, "extract: parse response")
	}

	res.Record = Normalize(obj)
	return res, nil
}
