package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TweetRef errors.
var (
	// ErrInvalidTweetURL is returned when a URL does not point at a tweet status page.
	ErrInvalidTweetURL = errors.New("cannot parse tweet URL")
	// ErrEmptyUsername is returned when the username is empty.
	ErrEmptyUsername = errors.New("username cannot be empty")
	// ErrInvalidUsername is returned when the username contains invalid characters.
	ErrInvalidUsername = errors.New("username must contain only word characters")
	// ErrInvalidTweetID is returned when the tweet ID is not a decimal number.
	ErrInvalidTweetID = errors.New("tweet ID must be a decimal number")
)

// tweetURLPattern matches status URLs on either canonical domain.
// Capture groups: username, tweet ID.
var tweetURLPattern = regexp.MustCompile(`(?:x\.com|twitter\.com)/(\w+)/status/(\d+)`)

var (
	usernamePattern = regexp.MustCompile(`^\w+$`)
	tweetIDPattern  = regexp.MustCompile(`^\d+$`)
)

// TweetRef is an immutable value object identifying a monitored tweet.
// It pairs the author's handle with the numeric status ID; together they
// locate the reply thread on x.com, twitter.com, or any mirror instance.
type TweetRef struct {
	username string
	id       string
}

// NewTweetRef creates a TweetRef from a username and a numeric tweet ID.
// The username is accepted with or without the leading "@".
func NewTweetRef(username, id string) (TweetRef, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return TweetRef{}, ErrEmptyUsername
	}
	if !usernamePattern.MatchString(username) {
		return TweetRef{}, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if !tweetIDPattern.MatchString(id) {
		return TweetRef{}, fmt.Errorf("%w: %q", ErrInvalidTweetID, id)
	}
	return TweetRef{username: username, id: id}, nil
}

// MustNewTweetRef creates a TweetRef or panics if invalid.
// Use only for known-valid values in tests or initialization.
func MustNewTweetRef(username, id string) TweetRef {
	ref, err := NewTweetRef(username, id)
	if err != nil {
		panic(err)
	}
	return ref
}

// ParseTweetURL extracts a TweetRef from an X/Twitter status URL.
// The match is a substring search, so surrounding query strings and
// fragments are tolerated.
func ParseTweetURL(rawURL string) (TweetRef, error) {
	m := tweetURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return TweetRef{}, fmt.Errorf("%w: %q", ErrInvalidTweetURL, rawURL)
	}
	return NewTweetRef(m[1], m[2])
}

// Username returns the tweet author's handle without the "@" prefix.
func (t TweetRef) Username() string {
	return t.username
}

// ID returns the numeric status ID as a string.
func (t TweetRef) ID() string {
	return t.id
}

// String returns a compact human-readable form used in logs.
func (t TweetRef) String() string {
	return "@" + t.username + "/" + t.id
}

// URL returns the canonical x.com URL for the tweet.
func (t TweetRef) URL() string {
	return "https://x.com/" + t.username + "/status/" + t.id
}

// MirrorURL returns the status URL on the given mirror instance.
// A bare hostname such as "nitter.net" is served over HTTPS; an
// instance with an explicit scheme, as self-hosted mirrors on a LAN
// use, is taken verbatim.
func (t TweetRef) MirrorURL(instance string) string {
	base := instance
	if !strings.Contains(instance, "://") {
		base = "https://" + instance
	}
	return strings.TrimSuffix(base, "/") + "/" + t.username + "/status/" + t.id
}

// StateKey returns the key under which per-tweet state is stored.
func (t TweetRef) StateKey() string {
	return "tweet_" + t.id
}

// IsZero returns true if this is a zero value (empty) TweetRef.
func (t TweetRef) IsZero() bool {
	return t.username == "" && t.id == ""
}

// Equals returns true if two TweetRef values identify the same tweet.
func (t TweetRef) Equals(other TweetRef) bool {
	return t.username == other.username && t.id == other.id
}
