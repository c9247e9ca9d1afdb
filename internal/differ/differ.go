package differ

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/replywatch/internal/model"
)

// StateStore is the persistence surface the differ needs: load the
// prior state for a tweet and save the updated one. *database.MonitorDB
// satisfies it; tests substitute an in-memory fake.
type StateStore interface {
	// LoadState returns the stored state for ref, or (nil, nil) when no
	// state has ever been saved. A non-nil error means state exists but
	// could not be read.
	LoadState(ctx context.Context, ref model.TweetRef) (*model.MonitorState, error)

	// SaveState persists state for ref, replacing any prior state.
	SaveState(ctx context.Context, ref model.TweetRef, state *model.MonitorState) error
}

// Result is the outcome of one diff against stored state.
type Result struct {
	// NewReplies holds the replies whose identity was not present in the
	// prior snapshot, in the order they appear in the new snapshot.
	NewReplies []model.Reply

	// State is the updated monitor state that was persisted: the full
	// latest snapshot plus the check timestamp.
	State *model.MonitorState

	// FirstCheck is true when no prior state existed for the tweet.
	FirstCheck bool

	// StateDegraded is true when prior state existed but was unreadable,
	// and the diff fell back to first-check semantics.
	StateDegraded bool

	// SkippedReplies counts malformed replies dropped from the snapshot
	// before diffing.
	SkippedReplies int
}

// Differ computes which replies in a snapshot are new relative to the
// persisted state for a tweet, and persists the snapshot as the new
// state.
type Differ struct {
	// store loads and saves monitor state.
	store StateStore

	// logger records skipped replies and state degradation.
	logger *slog.Logger
}

// Option is a function that configures a Differ.
type Option func(*Differ)

// WithLogger sets a custom logger for the differ.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Differ) {
		d.logger = logger
	}
}

// New creates a new Differ backed by the given store.
func New(store StateStore, opts ...Option) *Differ {
	d := &Differ{
		store: store,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	return d
}

// Diff computes the replies in snapshot that were not present in the
// stored state for ref, then persists the full snapshot as the new
// state before returning. The returned Result always carries the
// computed new replies and state, even when persisting failed.
//
// Semantics:
//   - No prior state: every reply is new, duplicates included. This is
//     a normal condition, not an error.
//   - Unreadable prior state: same as no prior state, but flagged as
//     degraded and logged at warn level. Re-reporting known replies is
//     acceptable; silently losing new ones is not.
//   - Membership is by content identity (author plus text), so edits to
//     like counts never make a reply new again.
//   - Replies present in prior state but absent from snapshot are
//     dropped from the new state without being reported.
//   - Persisting happens before returning. A crash after a caller acts
//     on the result cannot lose replies; at worst the same replies are
//     reported again on the next check.
//
// A save failure returns a non-nil error alongside the Result so the
// caller can decide whether to surface the computed replies anyway.
func (d *Differ) Diff(ctx context.Context, ref model.TweetRef, snapshot model.Snapshot, now time.Time) (*Result, error) {
	result := &Result{}

	// Malformed replies never enter state. A reply without an author is
	// a parse artifact, not a reply.
	kept := make(model.Snapshot, 0, len(snapshot))
	for _, reply := range snapshot {
		if !reply.IsValid() {
			result.SkippedReplies++
			d.logger.Warn("skipping malformed reply without author",
				"tweet", ref.String(),
				"text", truncate(reply.Text, 80),
			)
			continue
		}
		kept = append(kept, reply)
	}

	prior, err := d.store.LoadState(ctx, ref)
	switch {
	case err != nil:
		result.StateDegraded = true
		d.logger.Warn("prior state unreadable, treating all replies as new",
			"tweet", ref.String(),
			"error", err,
		)
	case prior == nil:
		result.FirstCheck = true
		d.logger.Debug("no prior state found, first check",
			"tweet", ref.String(),
		)
	}

	var priorIdentities map[string]bool
	if prior != nil {
		priorIdentities = prior.Replies.Identities()
	}

	result.NewReplies = make([]model.Reply, 0, len(kept))
	for _, reply := range kept {
		if !priorIdentities[reply.Identity()] {
			result.NewReplies = append(result.NewReplies, reply)
		}
	}

	result.State = model.NewMonitorState(kept, now)

	if err := d.store.SaveState(ctx, ref, result.State); err != nil {
		return result, fmt.Errorf("failed to persist monitor state for %s: %w", ref.String(), err)
	}

	return result, nil
}

// truncate shortens s to at most max runes for log output.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
