// Package database provides SQLite-based storage for replywatch.
//
// This package implements the MonitorDB, which stores:
//   - Monitor states: the latest reply snapshot per monitored tweet
//   - Check reports: the append-only history of check results
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of a
// plain JSON state file because:
//  1. No external dependencies - the database is a single file
//  2. CGO-free implementation allows easy cross-compilation
//  3. Writes are atomic, so a crash mid-save cannot leave a half-written
//     state that every later check would misread
//  4. History queries (per-tweet, newest-first, limited) stay cheap as
//     the report log grows
//
// Corrupt state rows are reported through ErrStateCorrupt rather than
// failing the check: the caller degrades to first-check semantics, which
// at worst re-reports known replies and never loses a new one.
package database
