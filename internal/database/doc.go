// Package database provides the SQLite-backed crawl state for pdnstool.
//
// StateDB implements state.Queue on a single file holding two tables:
//   - results, the append-only log of passive DNS observations
//   - queue, one row per unique query with its status and depth
//
// We use SQLite (via modernc.org/sqlite) because the state is a single
// portable file, the driver needs no cgo, and WAL mode keeps the file
// consistent when a crawl is interrupted. Reopening a file resumes the
// crawl at the shallowest depth that still has unfinished work.
package database
