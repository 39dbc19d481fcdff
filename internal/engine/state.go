package engine

import "github.com/edinburghfinds/lensfeed/internal/model"

// ConnectorMetric is the per-adapter execution record surfaced in the
// Report.
type ConnectorMetric struct {
	Executed          bool    `json:"executed"`
	ItemsReceived     int     `json:"items_received,omitempty"`
	CandidatesAdded   int     `json:"candidates_added,omitempty"`
	MappingFailures   int     `json:"mapping_failures,omitempty"`
	ExecutionTimeMS   int64   `json:"execution_time_ms"`
	CostUSD           float64 `json:"cost_usd"`
	Error             string  `json:"error,omitempty"`
	RateLimited       bool    `json:"rate_limited,omitempty"`
}

// RunError is one entry of state.errors: a non-fatal failure recorded
// during orchestration.
type RunError struct {
	Connector       string `json:"connector"`
	Error           string `json:"error"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	RateLimited     bool   `json:"rate_limited,omitempty"`
}

// OrchestratorState is the mutable container a single orchestrator owns for
// the duration of one request. It never escapes the request: the report is
// built from it and then it is discarded.
type OrchestratorState struct {
	Candidates         []model.Candidate
	AcceptedEntities   []model.Candidate
	AcceptedEntityKeys map[string]struct{}
	Evidence           map[string]interface{}
	Seeds              map[string]string
	BudgetSpentUSD     float64
	Confidence         float64
	Metrics            map[string]*ConnectorMetric
	Errors             []RunError
}

// NewOrchestratorState returns an OrchestratorState with every container
// initialised empty (never nil), matching the Python original's
// constructor.
func NewOrchestratorState() *OrchestratorState {
	return &OrchestratorState{
		Candidates:         []model.Candidate{},
		AcceptedEntities:   []model.Candidate{},
		AcceptedEntityKeys: map[string]struct{}{},
		Evidence:           map[string]interface{}{},
		Seeds:              map[string]string{},
		Metrics:            map[string]*ConnectorMetric{},
		Errors:             []RunError{},
	}
}
