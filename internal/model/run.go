package model

import "time"

// RunStatus represents the current state of a lead generation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Outcome tells the operator what to do next with a finished run.
type Outcome string

const (
	// OutcomeNoLeads means discovery returned nothing; try other keywords.
	OutcomeNoLeads Outcome = "no_leads"
	// OutcomeNoneEnriched means leads were found but no provider added data.
	OutcomeNoneEnriched Outcome = "none_enriched"
	// OutcomeEnriched means at least one lead gained fields from enrichment.
	OutcomeEnriched Outcome = "enriched"
)

// Query is the operator's search input.
type Query struct {
	Niche    string `json:"niche"`
	Location string `json:"location"`
	Limit    int    `json:"limit,omitempty"`
	Source   string `json:"source"`
}

// ProviderFailure records one non-fatal provider error for one lead.
type ProviderFailure struct {
	Lead     string `json:"lead"`
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// Run is a persisted lead generation run.
type Run struct {
	ID        string     `json:"id"`
	Query     Query      `json:"query"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the outcome of one pipeline pass. Repeated counts leads
// whose registration id was already in the previous completed run.
type RunResult struct {
	RunID      string            `json:"run_id"`
	Query      Query             `json:"query"`
	Status     RunStatus         `json:"status"`
	Outcome    Outcome           `json:"outcome"`
	Discovered int               `json:"discovered"`
	Malformed  int               `json:"malformed"`
	Processed  int               `json:"processed"`
	Enriched   int               `json:"enriched"`
	Duplicates int               `json:"duplicates"`
	Repeated   int               `json:"repeated"`
	Leads      []Lead            `json:"leads"`
	Failures   []ProviderFailure `json:"failures,omitempty"`
	TierCounts map[string]int    `json:"tier_counts,omitempty"`
	CostUSD    float64           `json:"cost_usd"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DurationMs int64             `json:"duration_ms"`
}
