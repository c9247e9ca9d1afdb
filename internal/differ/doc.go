// Package differ computes which replies under a monitored tweet are
// new since the previous check.
//
// The differ compares a freshly scraped snapshot against the state
// persisted for the tweet, reports the replies whose identity was not
// seen before, and stores the full snapshot as the new state. Identity
// is content based (author plus normalized text), so volatile fields
// like the like count never resurface a known reply.
//
// Design decision: the differ persists the new state before returning.
// If the process dies after the caller has acted on the result, the
// next check re-reports at most the same replies; it can never skip
// one. Duplicated notifications are recoverable, silently dropped
// replies are not.
//
// Design decision: an unreadable prior state is not an error. The
// differ falls back to first-check semantics, flags the result as
// degraded, and overwrites the bad state with a good one, so a single
// corrupt row heals itself on the following check.
//
// Persistence is abstracted behind the StateStore interface so tests
// can run against an in-memory fake instead of SQLite.
package differ
