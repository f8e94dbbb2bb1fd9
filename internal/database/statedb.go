package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/passivedns/internal/model"
	"github.com/nao1215/passivedns/internal/state"
)

// resultsPageSize is how many results Results reads per round trip.
const resultsPageSize = 500

// StateDB is a state.Queue stored in a SQLite file. Every write is atomic,
// so a crawl interrupted at any point can be resumed by opening the same
// file again.
type StateDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// path is the SQLite file, empty when wrapping an existing handle.
	path string

	// current is the depth of the most recently claimed item.
	current int

	now func() time.Time
}

var _ state.Queue = (*StateDB)(nil)

// Options configures StateDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the state database at path.
// If CreateIfNotExists is false and the file doesn't exist, an error is returned.
func Open(ctx context.Context, path string, opts Options) (*StateDB, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("state database not found at %s: %w", path, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := path + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.path = path
	return s, nil
}

// New wraps an already opened database handle, creating the schema if
// needed. The crawl resumes at the shallowest unfinished depth.
func New(ctx context.Context, db *sql.DB) (*StateDB, error) {
	s := &StateDB{db: db, now: time.Now}
	if err := s.createTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	level, err := s.Level(ctx)
	if err != nil {
		return nil, err
	}
	s.current = level
	return s, nil
}

// Path returns the database file path.
func (s *StateDB) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *StateDB) createTables(ctx context.Context) error {
	schema := `
	-- Results is the append-only log of observations, in arrival order
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		query TEXT NOT NULL,
		answer TEXT NOT NULL,
		rrtype TEXT NOT NULL,
		ttl INTEGER,
		first_seen TEXT,
		last_seen TEXT,
		count INTEGER,
		response_time INTEGER NOT NULL DEFAULT 0,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_recorded_at ON results(recorded_at);

	-- Queue holds one row per unique query; rowid is discovery order
	CREATE TABLE IF NOT EXISTS queue (
		query TEXT NOT NULL UNIQUE,
		state TEXT NOT NULL,
		depth INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_queue_state ON queue(state);
	CREATE INDEX IF NOT EXISTS idx_queue_depth ON queue(depth);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertQuery = `
	INSERT INTO queue (query, state, depth, recorded_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(query) DO NOTHING
	`

func (s *StateDB) insertQuery(ctx context.Context, ex execer, query string, status model.Status, depth int) (bool, error) {
	q, ok := state.Normalize(query)
	if !ok {
		return false, nil
	}
	res, err := ex.ExecContext(ctx, insertQuery, q, status.String(), depth, formatTime(s.now()))
	if err != nil {
		return false, fmt.Errorf("failed to insert query %q: %w", q, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert query %q: %w", q, err)
	}
	return n > 0, nil
}

// AddQuery implements state.Queue.
func (s *StateDB) AddQuery(ctx context.Context, query string, status model.Status) (bool, error) {
	return s.insertQuery(ctx, s.db, query, status, s.current+1)
}

// AddQueryAt implements state.Queue.
func (s *StateDB) AddQueryAt(ctx context.Context, query string, status model.Status, depth int) (bool, error) {
	return s.insertQuery(ctx, s.db, query, status, depth)
}

// AddResult implements state.Queue. The result row and both queue rows are
// written in one transaction.
func (s *StateDB) AddResult(ctx context.Context, r model.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertResult = `
	INSERT INTO results (source, query, answer, rrtype, ttl, first_seen, last_seen, count, response_time, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err = tx.ExecContext(ctx, insertResult,
		r.Source,
		r.Query,
		r.Answer,
		r.RRType,
		nullInt(r.TTL),
		nullTime(r.FirstSeen),
		nullTime(r.LastSeen),
		nullInt(r.Count),
		int64(r.ResponseTime),
		formatTime(s.now()),
	); err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	depth := s.current + 1
	if _, err = s.insertQuery(ctx, tx, r.Answer, model.StatusPending, depth); err != nil {
		return err
	}
	if _, err = s.insertQuery(ctx, tx, r.Query, model.StatusPending, depth); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

// Pending implements state.Queue. Rows are claimed one at a time in
// (depth, rowid) order. The traversal resumes strictly after the last
// claimed row, so a row failed during the traversal is not claimed again
// until the next one.
func (s *StateDB) Pending(ctx context.Context, maxDepth int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		lastDepth, lastID := -1, int64(0)
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			id, query, depth, err := s.claimNext(ctx, maxDepth, lastDepth, lastID)
			if errors.Is(err, sql.ErrNoRows) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			lastDepth, lastID = depth, id
			if !yield(query, nil) {
				return
			}
		}
	}
}

func (s *StateDB) claimNext(ctx context.Context, maxDepth, lastDepth int, lastID int64) (int64, string, int, error) {
	const next = `
	SELECT rowid, query, depth FROM queue
	WHERE state IN (?, ?) AND depth < ?
		AND (depth > ? OR (depth = ? AND rowid > ?))
	ORDER BY depth, rowid
	LIMIT 1
	`

	var (
		id    int64
		query string
		depth int
	)
	err := s.db.QueryRowContext(ctx, next,
		model.StatusPending.String(),
		model.StatusFailed.String(),
		maxDepth,
		lastDepth,
		lastDepth,
		lastID,
	).Scan(&id, &query, &depth)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", 0, err
	}
	if err != nil {
		return 0, "", 0, fmt.Errorf("failed to select pending query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE queue SET state = ? WHERE rowid = ?`,
		model.StatusQueried.String(), id); err != nil {
		return 0, "", 0, fmt.Errorf("failed to claim query %q: %w", query, err)
	}
	s.current = depth
	return id, query, depth, nil
}

// UpdateQuery implements state.Queue.
func (s *StateDB) UpdateQuery(ctx context.Context, query string, status model.Status) error {
	q, ok := state.Normalize(query)
	if !ok {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE queue SET state = ? WHERE query = ?`, status.String(), q); err != nil {
		return fmt.Errorf("failed to update query %q: %w", q, err)
	}
	return nil
}

// Level implements state.Queue.
func (s *StateDB) Level(ctx context.Context) (int, error) {
	const query = `SELECT COALESCE(MIN(depth), 0) FROM queue WHERE state IN (?, ?)`

	var level int
	if err := s.db.QueryRowContext(ctx, query,
		model.StatusPending.String(),
		model.StatusFailed.String(),
	).Scan(&level); err != nil {
		return 0, fmt.Errorf("failed to compute crawl level: %w", err)
	}
	return level, nil
}

// Results implements state.Queue. Rows are read a page at a time so the
// single connection is free while the caller handles each result.
func (s *StateDB) Results(ctx context.Context) iter.Seq2[model.Result, error] {
	return func(yield func(model.Result, error) bool) {
		var lastID int64
		for {
			page, err := s.resultsAfter(ctx, lastID)
			if err != nil {
				yield(model.Result{}, err)
				return
			}
			for _, row := range page {
				if !yield(row.result, nil) {
					return
				}
				lastID = row.id
			}
			if len(page) < resultsPageSize {
				return
			}
		}
	}
}

type resultRow struct {
	id     int64
	result model.Result
}

func (s *StateDB) resultsAfter(ctx context.Context, lastID int64) ([]resultRow, error) {
	const query = `
	SELECT id, source, query, answer, rrtype, ttl, first_seen, last_seen, count, response_time
	FROM results
	WHERE id > ?
	ORDER BY id
	LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, lastID, resultsPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var page []resultRow
	for rows.Next() {
		var (
			row                 resultRow
			ttl, count          sql.NullInt64
			firstSeen, lastSeen sql.NullString
			responseTime        int64
		)
		if err := rows.Scan(
			&row.id,
			&row.result.Source,
			&row.result.Query,
			&row.result.Answer,
			&row.result.RRType,
			&ttl,
			&firstSeen,
			&lastSeen,
			&count,
			&responseTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		row.result.ResponseTime = time.Duration(responseTime)
		row.result.TTL = intFromNull(ttl)
		row.result.Count = intFromNull(count)
		row.result.FirstSeen = timeFromNull(firstSeen)
		row.result.LastSeen = timeFromNull(lastSeen)
		page = append(page, row)
	}
	return page, rows.Err()
}

// WorkItems implements state.Queue.
func (s *StateDB) WorkItems(ctx context.Context) ([]model.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT query, state, depth, recorded_at FROM queue ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query work items: %w", err)
	}
	defer rows.Close()

	var items []model.WorkItem
	for rows.Next() {
		var (
			it         model.WorkItem
			status     string
			recordedAt string
		)
		if err := rows.Scan(&it.Query, &status, &it.Depth, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		if it.Status, err = model.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("failed to read work item %q: %w", it.Query, err)
		}
		it.RecordedAt = parseTimestamp(recordedAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return model.IntPtr(int(v.Int64))
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timeFromNull(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	return model.TimePtr(parseTimestamp(v.String))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
