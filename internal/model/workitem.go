package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a WorkItem.
type Status string

const (
	// StatusPending marks a query that has been discovered but not claimed.
	StatusPending Status = "pending"
	// StatusQueried marks a query that has been claimed for lookup.
	StatusQueried Status = "queried"
	// StatusFailed marks a query whose lookup produced nothing usable.
	// Failed items are claimable again on a later pass.
	StatusFailed Status = "failed"
)

// String returns the stored representation of the status.
func (s Status) String() string {
	return string(s)
}

// Claimable reports whether an item in this state may be handed out for lookup.
func (s Status) Claimable() bool {
	return s == StatusPending || s == StatusFailed
}

// ParseStatus converts a stored status string back into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusQueried, StatusFailed:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown work item status %q", s)
	}
}

// WorkItem is one node of a recursive crawl.
// Query is the natural key: at most one WorkItem exists per query string.
type WorkItem struct {
	// Query is the domain, address or CIDR to look up.
	Query string `json:"query"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Depth is the recursion distance from a seed. It never changes once assigned.
	Depth int `json:"depth"`

	// RecordedAt is when the item was first discovered.
	RecordedAt time.Time `json:"recorded_at"`
}
