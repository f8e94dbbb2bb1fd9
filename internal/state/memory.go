package state

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/nao1215/passivedns/internal/model"
)

// Memory is a Queue held entirely in process memory. Nothing survives the
// process; use the database backend to resume a crawl.
type Memory struct {
	mu      sync.Mutex
	items   []model.WorkItem
	index   map[string]int
	results []model.Result
	current int
	now     func() time.Time
}

var _ Queue = (*Memory)(nil)

// NewMemory returns an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{
		index: make(map[string]int),
		now:   time.Now,
	}
}

// AddQuery implements Queue.
func (m *Memory) AddQuery(ctx context.Context, query string, status model.Status) (bool, error) {
	m.mu.Lock()
	depth := m.current + 1
	m.mu.Unlock()
	return m.AddQueryAt(ctx, query, status, depth)
}

// AddQueryAt implements Queue.
func (m *Memory) AddQueryAt(_ context.Context, query string, status model.Status, depth int) (bool, error) {
	q, ok := Normalize(query)
	if !ok {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[q]; exists {
		return false, nil
	}
	m.index[q] = len(m.items)
	m.items = append(m.items, model.WorkItem{
		Query:      q,
		Status:     status,
		Depth:      depth,
		RecordedAt: m.now().UTC(),
	})
	return true, nil
}

// AddResult implements Queue.
func (m *Memory) AddResult(ctx context.Context, r model.Result) error {
	m.mu.Lock()
	m.results = append(m.results, r)
	m.mu.Unlock()

	if _, err := m.AddQuery(ctx, r.Answer, model.StatusPending); err != nil {
		return err
	}
	_, err := m.AddQuery(ctx, r.Query, model.StatusPending)
	return err
}

// Pending implements Queue. Items appended while the traversal is running
// are visited by the same traversal.
func (m *Memory) Pending(ctx context.Context, maxDepth int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for i := 0; ; i++ {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			q, ok, done := m.claim(i, maxDepth)
			if done {
				return
			}
			if !ok {
				continue
			}
			if !yield(q, nil) {
				return
			}
		}
	}
}

// claim marks item i as queried if it is claimable below maxDepth.
// done reports that i is past the end of the list.
func (m *Memory) claim(i, maxDepth int) (query string, ok, done bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i >= len(m.items) {
		return "", false, true
	}
	it := &m.items[i]
	if it.Depth >= maxDepth || !it.Status.Claimable() {
		return "", false, false
	}
	it.Status = model.StatusQueried
	m.current = it.Depth
	return it.Query, true, false
}

// UpdateQuery implements Queue.
func (m *Memory) UpdateQuery(_ context.Context, query string, status model.Status) error {
	q, ok := Normalize(query)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, exists := m.index[q]; exists {
		m.items[i].Status = status
	}
	return nil
}

// Level implements Queue.
func (m *Memory) Level(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	level, found := 0, false
	for _, it := range m.items {
		if !it.Status.Claimable() {
			continue
		}
		if !found || it.Depth < level {
			level, found = it.Depth, true
		}
	}
	return level, nil
}

// Results implements Queue.
func (m *Memory) Results(ctx context.Context) iter.Seq2[model.Result, error] {
	return func(yield func(model.Result, error) bool) {
		for i := 0; ; i++ {
			if err := ctx.Err(); err != nil {
				yield(model.Result{}, err)
				return
			}
			m.mu.Lock()
			if i >= len(m.results) {
				m.mu.Unlock()
				return
			}
			r := m.results[i]
			m.mu.Unlock()

			if !yield(r, nil) {
				return
			}
		}
	}
}

// WorkItems implements Queue.
func (m *Memory) WorkItems(_ context.Context) ([]model.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]model.WorkItem, len(m.items))
	copy(items, m.items)
	return items, nil
}

// Close implements Queue.
func (m *Memory) Close() error {
	return nil
}
