package model

import (
	"time"
)

// Result is one passive DNS observation.
// A Result is treated as immutable once a provider has returned it.
// It carries no encoding tags: the renderers in internal/report own the
// output field names and write ResponseTime in seconds.
type Result struct {
	// Source is the display name of the provider that produced the record.
	// Some providers append the upstream sensor, e.g. "PassiveTotal/riskiq".
	Source string

	// ResponseTime is the wall time of the upstream round trip.
	ResponseTime time.Duration

	// Query is the name or address that was asked about.
	Query string

	// Answer is the resolved value.
	Answer string

	// RRType is the upper-case record type (A, AAAA, NS, CNAME, PTR, MX, ...).
	RRType string

	// TTL is the record TTL when the provider reports one.
	TTL *int

	// FirstSeen is the earliest observation in UTC.
	FirstSeen *time.Time

	// LastSeen is the latest observation in UTC.
	LastSeen *time.Time

	// Count is the number of times the provider observed the record.
	Count *int
}

// ResultFields lists the Result columns in the order used by text output
// and by the state database.
var ResultFields = []string{
	"source", "response_time", "query", "answer", "rrtype",
	"ttl", "firstseen", "lastseen", "count",
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// TimePtr returns a pointer to t converted to UTC.
// The zero time yields nil, which providers use for "not reported".
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// UnixTimePtr converts epoch seconds to a UTC time pointer.
// Zero or negative values yield nil.
func UnixTimePtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	return TimePtr(time.Unix(sec, 0))
}
