// Package llm adapts language-model providers to a single text generation
// interface used by query generation and extraction.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/model"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Request is a single-turn generation request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the generated text plus accounting.
type Response struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Generator produces text for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Options configures a provider client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// New builds the Generator for provider.
func New(provider string, opts Options) (Generator, error) {
	if opts.APIKey == "" {
		return nil, eris.Errorf("llm: %s api key is required", provider)
	}
	switch provider {
	case ProviderAnthropic, "":
		return NewAnthropic(opts), nil
	case ProviderOpenAI:
		return NewOpenAI(opts), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", provider)
	}
}

// ServiceError reports a failed call to a provider: transport failures,
// rate limiting, or an error status from the API.
type ServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Temporary reports whether a retry could succeed. Authentication and
// malformed-request statuses never recover.
func (e *ServiceError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusConflict,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a temporary ServiceError.
func IsRetryable(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Temporary()
}
