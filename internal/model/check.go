package model

import (
	"time"
)

// Check is the working aggregate that one pipeline run mutates in place.
// Steps fill it progressively: fetch sets Snapshot, diff sets NewReplies
// and the state diagnostics, classify sets Classified, and the report
// step sets Report. Only Report leaves the process; the rest is working
// state and diagnostics.
type Check struct {
	// Ref identifies the monitored tweet.
	Ref TweetRef

	// CheckedAt is when the run started (UTC). It becomes both the
	// report timestamp and the persisted last-checked time.
	CheckedAt time.Time

	// Instance is the mirror instance the snapshot was fetched from.
	Instance string

	// Snapshot holds the parsed replies once the fetch step completes.
	// The diff step drops malformed entries in place, so later steps
	// see exactly what was persisted.
	Snapshot Snapshot

	// NewReplies holds the diff result in source order.
	NewReplies []Reply

	// Classified pairs each new reply with its question flag.
	Classified []ClassifiedReply

	// SnapshotClassified pairs every snapshot reply with its question
	// flag; the report's question list derives from it.
	SnapshotClassified []ClassifiedReply

	// FirstCheck is set when no prior state existed for Ref.
	FirstCheck bool

	// StateDegraded is set when prior state existed but was unreadable,
	// so the run fell back to first-check semantics. Distinguishes a
	// recovery from a true first check in diagnostics.
	StateDegraded bool

	// SkippedReplies counts malformed replies dropped before diffing.
	SkippedReplies int

	// Report is the final artifact, set by the report step.
	Report *CheckReport
}

// NewCheck creates the aggregate for one check run.
func NewCheck(ref TweetRef, checkedAt time.Time) *Check {
	return &Check{
		Ref:       ref,
		CheckedAt: checkedAt,
	}
}
