// Package statetest provides a behavioural test suite shared by every
// state.Queue backend.
package statetest

import (
	"testing"
	"time"

	"github.com/nao1215/passivedns/internal/model"
	"github.com/nao1215/passivedns/internal/state"
)

// Opener returns a fresh, empty queue. The suite closes it.
type Opener func(t *testing.T) state.Queue

// Run runs the suite against queues produced by open.
func Run(t *testing.T, open Opener) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, q state.Queue)
	}{
		{"AddQueryAt deduplicates", testDedup},
		{"MX weight is stripped before dedup", testMXWeight},
		{"empty queries are ignored", testEmptyQuery},
		{"AddQuery depth follows the claimed item", testDepthMonotonic},
		{"Pending respects max depth", testPendingMaxDepth},
		{"Pending claims once per traversal", testPendingClaimsOnce},
		{"Pending visits items added during traversal", testPendingSeesNewItems},
		{"Pending stops when the consumer stops", testPendingEarlyStop},
		{"failed items are claimed again later", testFailedReclaimed},
		{"AddResult logs every result", testAddResultLog},
		{"AddResult keeps optional fields", testAddResultFields},
		{"UpdateQuery ignores unknown queries", testUpdateUnknown},
		{"Level tracks the shallowest claimable item", testLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := open(t)
			t.Cleanup(func() {
				if err := q.Close(); err != nil {
					t.Errorf("Close() error: %v", err)
				}
			})
			tt.fn(t, q)
		})
	}
}

// Claim drains one Pending traversal and returns the claimed queries.
func Claim(t *testing.T, q state.Queue, maxDepth int) []string {
	t.Helper()

	var claimed []string
	for query, err := range q.Pending(t.Context(), maxDepth) {
		if err != nil {
			t.Fatalf("Pending() error: %v", err)
		}
		claimed = append(claimed, query)
	}
	return claimed
}

// Items returns the work items keyed by query.
func Items(t *testing.T, q state.Queue) map[string]model.WorkItem {
	t.Helper()

	items, err := q.WorkItems(t.Context())
	if err != nil {
		t.Fatalf("WorkItems() error: %v", err)
	}
	m := make(map[string]model.WorkItem, len(items))
	for _, it := range items {
		m[it.Query] = it
	}
	return m
}

// Results collects the result log.
func Results(t *testing.T, q state.Queue) []model.Result {
	t.Helper()

	var out []model.Result
	for r, err := range q.Results(t.Context()) {
		if err != nil {
			t.Fatalf("Results() error: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func mustAdd(t *testing.T, q state.Queue, query string, depth int) {
	t.Helper()

	added, err := q.AddQueryAt(t.Context(), query, model.StatusPending, depth)
	if err != nil {
		t.Fatalf("AddQueryAt(%q) error: %v", query, err)
	}
	if !added {
		t.Fatalf("AddQueryAt(%q) = false, want true", query)
	}
}

func testDedup(t *testing.T, q state.Queue) {
	ctx := t.Context()
	mustAdd(t, q, "example.org", 0)

	if err := q.UpdateQuery(ctx, "example.org", model.StatusQueried); err != nil {
		t.Fatalf("UpdateQuery() error: %v", err)
	}

	for _, depth := range []int{0, 3} {
		added, err := q.AddQueryAt(ctx, "example.org", model.StatusPending, depth)
		if err != nil {
			t.Fatalf("AddQueryAt() error: %v", err)
		}
		if added {
			t.Errorf("AddQueryAt(depth=%d) = true for an existing query", depth)
		}
	}
	added, err := q.AddQuery(ctx, " example.org ", model.StatusPending)
	if err != nil {
		t.Fatalf("AddQuery() error: %v", err)
	}
	if added {
		t.Error("AddQuery() = true for an existing query")
	}

	items := Items(t, q)
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	it := items["example.org"]
	if it.Status != model.StatusQueried || it.Depth != 0 {
		t.Errorf("item = %+v, want queried at depth 0", it)
	}
}

func testMXWeight(t *testing.T, q state.Queue) {
	mustAdd(t, q, "10 mx.example.org.", 0)

	added, err := q.AddQueryAt(t.Context(), "mx.example.org.", model.StatusPending, 0)
	if err != nil {
		t.Fatalf("AddQueryAt() error: %v", err)
	}
	if added {
		t.Error("weighted and bare MX host should be the same query")
	}
	if _, ok := Items(t, q)["mx.example.org."]; !ok {
		t.Errorf("items = %v, want mx.example.org.", Items(t, q))
	}
}

func testEmptyQuery(t *testing.T, q state.Queue) {
	added, err := q.AddQueryAt(t.Context(), "  ", model.StatusPending, 0)
	if err != nil {
		t.Fatalf("AddQueryAt() error: %v", err)
	}
	if added || len(Items(t, q)) != 0 {
		t.Error("blank query should not be added")
	}
}

func testDepthMonotonic(t *testing.T, q state.Queue) {
	ctx := t.Context()
	mustAdd(t, q, "seed.example", 0)

	for query, err := range q.Pending(ctx, 10) {
		if err != nil {
			t.Fatalf("Pending() error: %v", err)
		}
		switch query {
		case "seed.example":
			if _, err := q.AddQuery(ctx, "child.example", model.StatusPending); err != nil {
				t.Fatalf("AddQuery() error: %v", err)
			}
		case "child.example":
			if _, err := q.AddQuery(ctx, "grandchild.example", model.StatusPending); err != nil {
				t.Fatalf("AddQuery() error: %v", err)
			}
			// Rediscovering the seed must not move it deeper.
			if _, err := q.AddQuery(ctx, "seed.example", model.StatusPending); err != nil {
				t.Fatalf("AddQuery() error: %v", err)
			}
		}
	}

	items := Items(t, q)
	want := map[string]int{"seed.example": 0, "child.example": 1, "grandchild.example": 2}
	for query, depth := range want {
		if items[query].Depth != depth {
			t.Errorf("%s depth = %d, want %d", query, items[query].Depth, depth)
		}
	}
}

func testPendingMaxDepth(t *testing.T, q state.Queue) {
	mustAdd(t, q, "d0.example", 0)
	mustAdd(t, q, "d1.example", 1)
	mustAdd(t, q, "d2.example", 2)

	claimed := Claim(t, q, 2)
	if len(claimed) != 2 || claimed[0] != "d0.example" || claimed[1] != "d1.example" {
		t.Errorf("claimed = %v, want [d0.example d1.example]", claimed)
	}

	items := Items(t, q)
	if items["d2.example"].Status != model.StatusPending {
		t.Errorf("d2 status = %s, want pending", items["d2.example"].Status)
	}
	if items["d0.example"].Status != model.StatusQueried {
		t.Errorf("d0 status = %s, want queried", items["d0.example"].Status)
	}

	if claimed := Claim(t, q, 0); len(claimed) != 0 {
		t.Errorf("maxDepth 0 claimed %v", claimed)
	}
}

func testPendingClaimsOnce(t *testing.T, q state.Queue) {
	ctx := t.Context()
	mustAdd(t, q, "a.example", 0)
	mustAdd(t, q, "b.example", 0)

	seen := make(map[string]int)
	for query, err := range q.Pending(ctx, 1) {
		if err != nil {
			t.Fatalf("Pending() error: %v", err)
		}
		seen[query]++
		// Failing an item mid-traversal must not hand it out again.
		if err := q.UpdateQuery(ctx, query, model.StatusFailed); err != nil {
			t.Fatalf("UpdateQuery() error: %v", err)
		}
	}
	if seen["a.example"] != 1 || seen["b.example"] != 1 || len(seen) != 2 {
		t.Errorf("seen = %v, want each query once", seen)
	}
}

func testPendingSeesNewItems(t *testing.T, q state.Queue) {
	ctx := t.Context()
	mustAdd(t, q, "seed.example", 0)

	var claimed []string
	for query, err := range q.Pending(ctx, 2) {
		if err != nil {
			t.Fatalf("Pending() error: %v", err)
		}
		claimed = append(claimed, query)
		if query == "seed.example" {
			if _, err := q.AddQuery(ctx, "found.example", model.StatusPending); err != nil {
				t.Fatalf("AddQuery() error: %v", err)
			}
		}
	}
	if len(claimed) != 2 || claimed[1] != "found.example" {
		t.Errorf("claimed = %v, want [seed.example found.example]", claimed)
	}
}

func testPendingEarlyStop(t *testing.T, q state.Queue) {
	mustAdd(t, q, "a.example", 0)
	mustAdd(t, q, "b.example", 0)

	for range q.Pending(t.Context(), 1) {
		break
	}

	items := Items(t, q)
	if items["a.example"].Status != model.StatusQueried {
		t.Errorf("a status = %s, want queried", items["a.example"].Status)
	}
	if items["b.example"].Status != model.StatusPending {
		t.Errorf("b status = %s, want pending", items["b.example"].Status)
	}
}

func testFailedReclaimed(t *testing.T, q state.Queue) {
	ctx := t.Context()
	mustAdd(t, q, "flaky.example", 0)

	if got := Claim(t, q, 1); len(got) != 1 {
		t.Fatalf("first traversal claimed %v", got)
	}
	if err := q.UpdateQuery(ctx, "flaky.example", model.StatusFailed); err != nil {
		t.Fatalf("UpdateQuery() error: %v", err)
	}
	if got := Claim(t, q, 1); len(got) != 1 || got[0] != "flaky.example" {
		t.Errorf("second traversal claimed %v, want [flaky.example]", got)
	}
	if got := Claim(t, q, 1); len(got) != 0 {
		t.Errorf("third traversal claimed %v, want none", got)
	}
}

func testAddResultLog(t *testing.T, q state.Queue) {
	ctx := t.Context()
	mustAdd(t, q, "example.org", 0)
	Claim(t, q, 1)

	r := model.Result{Source: "test", Query: "example.org", Answer: "192.0.2.1", RRType: "A"}
	for range 2 {
		if err := q.AddResult(ctx, r); err != nil {
			t.Fatalf("AddResult() error: %v", err)
		}
	}

	if got := Results(t, q); len(got) != 2 {
		t.Errorf("len(results) = %d, want 2", len(got))
	}

	items, err := q.WorkItems(ctx)
	if err != nil {
		t.Fatalf("WorkItems() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[1].Query != "192.0.2.1" || items[1].Depth != 1 || items[1].Status != model.StatusPending {
		t.Errorf("answer item = %+v, want pending 192.0.2.1 at depth 1", items[1])
	}
}

func testAddResultFields(t *testing.T, q state.Queue) {
	first := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	last := first.Add(48 * time.Hour)
	in := model.Result{
		Source:       "DNSDB",
		ResponseTime: 1500 * time.Millisecond,
		Query:        "example.org",
		Answer:       "ns1.example.org",
		RRType:       "NS",
		TTL:          model.IntPtr(3600),
		FirstSeen:    &first,
		LastSeen:     &last,
		Count:        model.IntPtr(42),
	}
	bare := model.Result{Source: "BFK.de", Query: "example.org", Answer: "192.0.2.1", RRType: "A"}

	for _, r := range []model.Result{in, bare} {
		if err := q.AddResult(t.Context(), r); err != nil {
			t.Fatalf("AddResult() error: %v", err)
		}
	}

	got := Results(t, q)
	if len(got) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(got))
	}
	r := got[0]
	if r.Source != in.Source || r.Query != in.Query || r.Answer != in.Answer || r.RRType != in.RRType {
		t.Errorf("result = %+v", r)
	}
	if r.ResponseTime != in.ResponseTime {
		t.Errorf("response time = %v, want %v", r.ResponseTime, in.ResponseTime)
	}
	if r.TTL == nil || *r.TTL != 3600 || r.Count == nil || *r.Count != 42 {
		t.Errorf("ttl/count = %v/%v", r.TTL, r.Count)
	}
	if r.FirstSeen == nil || !r.FirstSeen.Equal(first) || r.LastSeen == nil || !r.LastSeen.Equal(last) {
		t.Errorf("first/last = %v/%v", r.FirstSeen, r.LastSeen)
	}
	if b := got[1]; b.TTL != nil || b.Count != nil || b.FirstSeen != nil || b.LastSeen != nil {
		t.Errorf("optional fields should stay nil: %+v", b)
	}
}

func testUpdateUnknown(t *testing.T, q state.Queue) {
	if err := q.UpdateQuery(t.Context(), "ghost.example", model.StatusFailed); err != nil {
		t.Fatalf("UpdateQuery() error: %v", err)
	}
	if len(Items(t, q)) != 0 {
		t.Error("UpdateQuery must not create items")
	}
}

func testLevel(t *testing.T, q state.Queue) {
	ctx := t.Context()
	level := func() int {
		t.Helper()
		l, err := q.Level(ctx)
		if err != nil {
			t.Fatalf("Level() error: %v", err)
		}
		return l
	}

	if got := level(); got != 0 {
		t.Errorf("empty Level() = %d, want 0", got)
	}

	mustAdd(t, q, "seed.example", 0)
	mustAdd(t, q, "deep.example", 1)
	if got := level(); got != 0 {
		t.Errorf("Level() = %d, want 0", got)
	}

	Claim(t, q, 1)
	if got := level(); got != 1 {
		t.Errorf("Level() after claiming depth 0 = %d, want 1", got)
	}

	if err := q.UpdateQuery(ctx, "seed.example", model.StatusFailed); err != nil {
		t.Fatalf("UpdateQuery() error: %v", err)
	}
	if got := level(); got != 0 {
		t.Errorf("Level() with failed seed = %d, want 0", got)
	}

	Claim(t, q, 2)
	if got := level(); got != 0 {
		t.Errorf("Level() with nothing claimable = %d, want 0", got)
	}
}

