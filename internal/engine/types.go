// Package engine carries the immutable ExecutionContext and the mutable
// OrchestratorState through a single ingestion run, plus the closed error
// taxonomy and Report shape that everything else reports against.
package engine

// IngestionMode selects how aggressively the orchestrator keeps running
// additional phases.
type IngestionMode string

const (
	// ModeResolveOne stops as soon as a single high-confidence entity has
	// been accepted.
	ModeResolveOne IngestionMode = "resolve_one"
	// ModeDiscoverMany keeps running until the target entity count (or
	// budget) is reached, favouring breadth.
	ModeDiscoverMany IngestionMode = "discover_many"
)

// GeoPoint is a single geographic coordinate.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// BoundingBox is a rectangular geographic area.
type BoundingBox struct {
	Southwest GeoPoint
	Northeast GeoPoint
}

// IngestRequest carries every parameter needed to orchestrate one ingestion
// run. Optional pointer fields are nil when unset, and the orchestrator
// then applies no limit for that field; the CLI sets them only from flags
// given a value above zero.
type IngestRequest struct {
	Mode              IngestionMode
	Query             string
	TargetEntityCount *int
	MinConfidence     *float64
	BudgetUSD         *float64
	Persist           bool
	LensID            string
	// Connector, when non-empty, bypasses the planner and runs a single
	// named adapter (the CLI's diagnostic path).
	Connector string
}
