package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoTweetURL is returned when no tweet URL is configured.
	// This error occurs when neither --url nor the config file names a
	// status to monitor.
	ErrNoTweetURL = errors.New("no tweet URL specified: use --url or set tweet_url in the config file")

	// ErrInvalidWatchInterval is returned when the watch interval is not
	// positive. A zero interval would spin checks back to back.
	ErrInvalidWatchInterval = errors.New("invalid watch interval: must be positive")

	// ErrInvalidFetchTimeout is returned when the fetch timeout is not
	// positive. A zero timeout would fail every mirror fetch immediately.
	ErrInvalidFetchTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrNoCamofoxHost is returned when the Camofox host is empty.
	ErrNoCamofoxHost = errors.New("no camofox host specified")

	// ErrInvalidCamofoxPort is returned when the Camofox port is outside
	// the valid TCP port range.
	ErrInvalidCamofoxPort = errors.New("invalid camofox port: must be between 1 and 65535")

	// ErrNoNitterInstances is returned when the mirror instance list is
	// empty. With no instance there is nothing to fetch the thread from.
	ErrNoNitterInstances = errors.New("no nitter instances specified")

	// ErrInvalidFormat is returned when the report format is not one of
	// "simple", "json" or "markdown".
	ErrInvalidFormat = errors.New("invalid report format: must be simple, json or markdown")

	// ErrInvalidShortTextLimit is returned when the classifier's short
	// text limit is negative. Zero means the built-in limit.
	ErrInvalidShortTextLimit = errors.New("invalid short text limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
