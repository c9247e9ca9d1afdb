// Package model defines the core data structures used throughout replywatch.
//
// This package contains the following main types:
//   - TweetRef: Immutable reference to a monitored tweet (username + status ID)
//   - Reply / Snapshot: One observed reply and the ordered set from one check
//   - MonitorState: The persisted per-tweet record (last snapshot + timestamp)
//   - Check: The working aggregate one pipeline run fills in
//   - CheckReport: The final, immutable check result handed to writers
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (scraper, differ, pipeline, report) need to
// use these types, so centralizing them prevents import cycles.
//
// Reply identity lives here (Reply.Identity) because it is a property of the
// value, not of any one consumer: the differ, the store round-trip tests, and
// future tooling must all derive the same key for the same content.
package model
