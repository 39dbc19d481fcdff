// Package model holds the plain data records shared across the ingestion
// pipeline: adapters emit Candidates, the orchestrator accumulates them into
// AcceptedEntities, and persistence turns those into ExtractedEntity/Entity
// rows. None of these types carry behaviour beyond simple accessors - the
// business logic that operates on them lives in the owning packages
// (dedup, extract, lensapply, classifier, persistence).
package model

import "time"

// Candidate is the canonical in-memory form every adapter emits, one per
// raw result item from a single fetch.
type Candidate struct {
	Name    string                 `json:"name"`
	IDs     map[string]string      `json:"ids"`
	Lat     *float64               `json:"lat"`
	Lng     *float64               `json:"lng"`
	Address string                 `json:"address,omitempty"`
	Source  string                 `json:"source"`
	Raw     map[string]interface{} `json:"raw"`
}

// HasCoords reports whether the candidate carries both coordinates. A value
// of 0.0 on either axis still counts as present.
func (c Candidate) HasCoords() bool {
	return c.Lat != nil && c.Lng != nil
}

// HasStrongID reports whether the candidate carries at least one external
// system id.
func (c Candidate) HasStrongID() bool {
	return len(c.IDs) > 0
}

// RawIngestion is persisted once per unique (source, content hash) pair.
type RawIngestion struct {
	ID          string
	Source      string
	ContentHash string
	FilePath    string
	Status      string
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}

// ExtractedEntity is the per-source result of Phase 1 + Phase 2 extraction
// run against one RawIngestion row.
type ExtractedEntity struct {
	ID                  string
	Source              string
	EntityClass         string
	Attributes          map[string]interface{}
	DiscoveredAttributes map[string]interface{}
	ExternalIDs         map[string]string
	RawIngestionID      string
	CreatedAt           time.Time
}

// Entity is the merged, deduplicated, cross-source record written by the
// finalization step.
type Entity struct {
	ID                   string
	EntityName           string
	EntityClass          string
	Slug                 string
	CanonicalActivities  []string
	CanonicalRoles       []string
	CanonicalPlaceTypes  []string
	CanonicalAccess      []string
	Modules              map[string]interface{}
	Lat                  *float64
	Lng                  *float64
	Address              string
	Phone                string
	Website              string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
