// Package cost estimates the spend of text-generation calls.
package cost

import "github.com/sells-group/catalog-updater/internal/model"

// Rates holds per-model pricing configuration.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates. Models missing
// from rates fall back to DefaultRates.
func NewCalculator(rates Rates) *Calculator {
	merged := DefaultRates()
	for name, r := range rates.Models {
		merged.Models[name] = r
	}
	return &Calculator{rates: merged}
}

// Tokens returns the cost of usage on modelName, or 0 for unpriced models.
func (c *Calculator) Tokens(modelName string, usage model.TokenUsage) float64 {
	rate, ok := c.rates.Models[modelName]
	if !ok {
		return 0
	}
	in := (float64(usage.InputTokens) / 1e6) * rate.Input
	out := (float64(usage.OutputTokens) / 1e6) * rate.Output
	return in + out
}

// Func binds c to modelName.
func (c *Calculator) Func(modelName string) func(model.TokenUsage) float64 {
	return func(u model.TokenUsage) float64 { return c.Tokens(modelName, u) }
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
			"gpt-4o":                     {Input: 2.50, Output: 10.00},
			"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
		},
	}
}
