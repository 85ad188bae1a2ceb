package model

import "time"

// RunStatus represents the current state of an update run.
type RunStatus string

const (
	RunStatusRunning    RunStatus = "running"
	RunStatusPersisting RunStatus = "persisting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one execution of the catalog update pipeline.
type Run struct {
	ID         string      `json:"id"`
	Status     RunStatus   `json:"status"`
	Categories []string    `json:"categories"`
	Summary    *RunSummary `json:"summary,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// RunSummary is the user-visible outcome of a run.
type RunSummary struct {
	RunID                 string          `json:"run_id"`
	Categories            int             `json:"categories"`
	Queries               int             `json:"queries"`
	URLsAttempted         int             `json:"urls_attempted"`
	URLsSkipped           int             `json:"urls_skipped"`
	ChunksExtracted       int             `json:"chunks_extracted"`
	ChunkFailures         int             `json:"chunk_failures"`
	RecordsExtracted      int             `json:"records_extracted"`
	RecordsWithoutID      int             `json:"records_without_identity"`
	DuplicatesRemoved     int             `json:"duplicates_removed"`
	SelfDuplicatesRemoved int             `json:"self_duplicates_removed"`
	RecordsPersisted      int             `json:"records_persisted"`
	Location              string          `json:"location,omitempty"`
	PerCategory           []CategoryStats `json:"per_category,omitempty"`
	Failures              []Failure       `json:"failures,omitempty"`
	TokenUsage            TokenUsage      `json:"token_usage"`
	EstimatedCostUSD      float64         `json:"estimated_cost_usd"`
	DurationMs            int64           `json:"duration_ms"`
}

// CategoryStats tallies the work done for one category.
type CategoryStats struct {
	Category string `json:"category"`
	Queries  int    `json:"queries"`
	URLs     int    `json:"urls"`
	Records  int    `json:"records"`
	Skipped  int    `json:"skipped"`
}

// Failure records a unit of work that was skipped so the run could
// continue.
type Failure struct {
	Stage  string `json:"stage"`
	Target string `json:"target"`
	Error  string `json:"error"`
	Kind   string `json:"kind"`
}

// TokenUsage tracks text-generation token consumption.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}
