package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// Reply is a single entry observed in a tweet's reply thread.
// A Reply is immutable once captured. The rendering path exposes no
// reliable native reply ID, so identity is derived from content via
// Identity rather than assigned by the platform.
type Reply struct {
	// Author is the reply author's handle, including the leading "@".
	Author string `json:"author"`

	// Text is the reply text as rendered by the mirror. May be empty.
	Text string `json:"text"`

	// Likes is the like count observed at capture time.
	Likes int `json:"likes"`
}

// Identity returns a stable key for recognizing the same reply across
// checks of the same tweet.
//
// Design decision: the key is a SHA3-256 digest of the normalized
// author and text rather than the raw "author:text" concatenation:
//  1. Re-rendering introduces Unicode and whitespace variation, so both
//     fields are NFC-normalized and whitespace runs collapse to single
//     spaces before hashing.
//  2. The fields are joined with a newline, which cannot survive
//     normalization, so distinct (author, text) pairs never collide by
//     concatenation.
//  3. A fixed-size digest keeps identity sets cheap regardless of text
//     length.
//
// Two genuinely different replies whose normalized author and text
// coincide map to the same identity. That is a documented limitation:
// content is the only stable signal the rendering path exposes.
func (r Reply) Identity() string {
	author := normalizeSpace(r.Author)
	text := normalizeSpace(r.Text)
	sum := sha3.Sum256([]byte(author + "\n" + text))
	return hex.EncodeToString(sum[:])
}

// IsValid reports whether the reply carries the minimum fields the
// differ requires. Replies without an author are skipped by callers.
func (r Reply) IsValid() bool {
	return strings.TrimSpace(r.Author) != ""
}

// normalizeSpace applies Unicode NFC normalization, trims surrounding
// whitespace, and collapses internal whitespace runs to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Snapshot is the ordered list of replies observed during one check of
// one tweet. Order is the order the source page presented them in; the
// mirror may order by relevance rather than time, so no chronology is
// implied. Duplicate identities within a snapshot are legal and must be
// counted individually.
type Snapshot []Reply

// Identities returns the set of reply identities present in the snapshot.
func (s Snapshot) Identities() map[string]bool {
	ids := make(map[string]bool, len(s))
	for _, r := range s {
		ids[r.Identity()] = true
	}
	return ids
}

// MonitorState is the persisted record for one monitored tweet: the last
// snapshot seen and when it was taken. One record exists per tweet
// reference; it is created on the first check and replaced wholesale on
// every later check (latest snapshot replaces prior, never a merge).
type MonitorState struct {
	// Replies is the full snapshot from the most recent check.
	Replies Snapshot `json:"replies"`

	// LastChecked is when that snapshot was taken (UTC).
	LastChecked time.Time `json:"last_checked"`
}

// NewMonitorState creates a MonitorState for a snapshot taken at the
// given time.
func NewMonitorState(replies Snapshot, checkedAt time.Time) *MonitorState {
	return &MonitorState{
		Replies:     replies,
		LastChecked: checkedAt,
	}
}
