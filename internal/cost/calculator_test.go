package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/catalog-updater/internal/model"
)

func TestTokens(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{Models: map[string]ModelRate{
		"local-llama": {Input: 0.10, Output: 0.20},
	}})

	tests := []struct {
		name  string
		model string
		usage model.TokenUsage
		want  float64
	}{
		{"sonnet default rate", "claude-sonnet-4-5-20250929", model.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000}, 4.50},
		{"override", "local-llama", model.TokenUsage{InputTokens: 2_000_000, OutputTokens: 1_000_000}, 0.40},
		{"mini", "gpt-4o-mini", model.TokenUsage{InputTokens: 1_000_000}, 0.15},
		{"unknown model", "mystery", model.TokenUsage{InputTokens: 1_000_000}, 0},
		{"no usage", "gpt-4o", model.TokenUsage{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.Tokens(tt.model, tt.usage), 1e-9)
		})
	}
}

func TestOverrideReplacesDefault(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{Models: map[string]ModelRate{
		"gpt-4o": {Input: 1, Output: 1},
	}})
	f := calc.Func("gpt-4o")
	assert.InDelta(t, 2.0, f(model.TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}), 1e-9)
}

func TestNewCalculatorDoesNotMutateDefaults(t *testing.T) {
	t.Parallel()
	NewCalculator(Rates{Models: map[string]ModelRate{"x": {Input: 9}}})
	_, ok := DefaultRates().Models["x"]
	assert.False(t, ok)
}
