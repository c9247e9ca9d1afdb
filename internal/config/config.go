package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. These mirror the behavior of a bare
// invocation: a local Camofox on its standard port, the main public
// Nitter instance, and a one-minute watch cadence.
const (
	// DefaultCamofoxHost is the host where the Camofox control API is
	// expected. The browser runs next to the monitor in every supported
	// setup, so localhost is the only sensible default.
	DefaultCamofoxHost = "localhost"

	// DefaultCamofoxPort is Camofox's standard control API port.
	DefaultCamofoxPort = 9377

	// DefaultRenderWait is how long a page is left to render in the
	// browser before the accessibility snapshot is taken. Nitter pages
	// assemble their reply list client-side; eight seconds covers slow
	// instances without stretching every check unreasonably.
	DefaultRenderWait = 8 * time.Second

	// DefaultNitterInstance is the mirror used when no instances are
	// configured. nitter.net is the longest-lived public instance.
	DefaultNitterInstance = "nitter.net"

	// DefaultFetchTimeout bounds one direct mirror page fetch. Public
	// mirrors rate-limit aggressively and respond slowly under load, so
	// this is generous; the mirror race keeps slow instances from
	// serializing.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultWatchInterval is the delay between checks in watch mode.
	// Sixty seconds is frequent enough to catch a conversation as it
	// happens without hammering the mirror.
	DefaultWatchInterval = 60 * time.Second

	// DefaultMaxBodySize limits how much of a mirror response is read.
	// Status pages with full reply threads stay well under 5MB; anything
	// larger is not the page we asked for.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "replywatch"
)

// Report output formats accepted by Config.Format.
const (
	// FormatSimple is the human-readable terminal summary.
	FormatSimple = "simple"

	// FormatJSON is machine-readable JSON output.
	FormatJSON = "json"

	// FormatMarkdown is a GitHub Flavored Markdown report.
	FormatMarkdown = "markdown"
)

// Config holds all configuration options for replywatch. It is
// populated from the optional YAML config file and then from CLI
// flags, and passed through the application by value rather than
// global state.
//
// Design decision: a single flat struct instead of nested sub-structs.
// The option count is manageable, flag-to-field mapping stays obvious,
// and the YAML file reads as a plain key list.
type Config struct {
	// TweetURL is the X/Twitter status URL to monitor. Usually set via
	// the --url flag; a config file can pin it for a standing watch.
	TweetURL string `yaml:"tweet_url"`

	// Watch repeats the check on WatchInterval until interrupted
	// instead of running once.
	Watch bool `yaml:"watch"`

	// WatchInterval is the delay between checks in watch mode.
	// Duration strings like "90s" or "5m" work in the config file.
	WatchInterval time.Duration `yaml:"watch_interval"`

	// CamofoxHost is the host of the Camofox browser control API.
	CamofoxHost string `yaml:"camofox_host"`

	// CamofoxPort is the port of the Camofox browser control API.
	// When Camofox is unreachable the check falls back to fetching
	// the mirror page directly.
	CamofoxPort int `yaml:"camofox_port"`

	// RenderWait is how long a rendered page is given before its
	// accessibility snapshot is taken.
	RenderWait time.Duration `yaml:"render_wait"`

	// NitterInstances lists mirror hosts in preference order. The
	// rendered fetch uses the first; the direct fallback races all of
	// them. A bare host gets https; a full URL is used as written.
	NitterInstances []string `yaml:"nitter_instances"`

	// FetchTimeout bounds one direct mirror page fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form for
	// direct mirror fetches. Empty means a direct connection.
	ProxyAddress string `yaml:"proxy_address"`

	// UserAgent overrides the User-Agent header on direct mirror
	// fetches. Empty keeps the built-in browser-like default, which
	// mirrors are least likely to block.
	UserAgent string `yaml:"user_agent"`

	// MaxBodySize is the maximum mirror response size in bytes to
	// read. Zero keeps the built-in default.
	MaxBodySize int64 `yaml:"max_body_size"`

	// Format selects the report output format: "simple", "json" or
	// "markdown".
	Format string `yaml:"format"`

	// Pretty indents JSON output for human reading. Ignored by the
	// other formats.
	Pretty bool `yaml:"pretty"`

	// ReportFile writes the report to this path instead of stdout.
	// Parent directories are created as needed.
	ReportFile string `yaml:"report_file"`

	// DBDir is the directory holding the SQLite database with monitor
	// state and report history. Defaults to the XDG data directory.
	DBDir string `yaml:"db_dir"`

	// Interrogatives replaces the question classifier's opening-word
	// set. Nil keeps the built-in set; an explicit empty list disables
	// the opening-word rule.
	Interrogatives []string `yaml:"interrogatives"`

	// TriggerTokens replaces the question classifier's technical
	// trigger set. Nil keeps the built-in set; an explicit empty list
	// disables the trigger rule.
	TriggerTokens []string `yaml:"trigger_tokens"`

	// ShortTextLimit is the rune count at or under which a trigger
	// token alone flags a reply as a question. Zero keeps the built-in
	// limit.
	ShortTextLimit int `yaml:"short_text_limit"`

	// UpdateCheck controls the once-a-day lookup for a newer release.
	// The REPLYWATCH_NO_UPDATE_CHECK environment variable also
	// disables it.
	UpdateCheck bool `yaml:"update_check"`

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool `yaml:"verbose"`

	// ConfigFilePath is where this configuration was loaded from.
	// Empty when no config file was found. Not itself a file setting.
	ConfigFilePath string `yaml:"-"`
}

// NewConfig creates a new Config with default values. All fields are
// set to safe defaults that work against public infrastructure, so
// overriding is opt-in.
//
// Design decision: a constructor instead of zero values because most
// defaults are non-zero (ports, intervals, instance lists), and the
// constructor doubles as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		WatchInterval:   DefaultWatchInterval,
		CamofoxHost:     DefaultCamofoxHost,
		CamofoxPort:     DefaultCamofoxPort,
		RenderWait:      DefaultRenderWait,
		NitterInstances: []string{DefaultNitterInstance},
		FetchTimeout:    DefaultFetchTimeout,
		MaxBodySize:     DefaultMaxBodySize,
		Format:          FormatSimple,
		DBDir:           XDGDataDir(),
		UpdateCheck:     true,
	}
}

// XDGDataDir returns the XDG data directory for replywatch, where the
// monitor database lives.
// On Linux: ~/.local/share/replywatch
// On macOS: ~/Library/Application Support/replywatch
// On Windows: %LOCALAPPDATA%\replywatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for replywatch.
// On Linux: ~/.config/replywatch
// On macOS: ~/Library/Application Support/replywatch
// On Windows: %APPDATA%\replywatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for replywatch, used by
// the update check.
// On Linux: ~/.cache/replywatch
// On macOS: ~/Library/Caches/replywatch
// On Windows: %LOCALAPPDATA%\replywatch\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns a specific
// error describing the first problem found.
//
// Design decision: validation happens once here, after the config file
// and CLI flags are merged, rather than at each point of use. Fixing
// one error often changes the others, so only the first is reported.
func (c *Config) Validate() error {
	if c.TweetURL == "" {
		return ErrNoTweetURL
	}

	if c.WatchInterval <= 0 {
		return ErrInvalidWatchInterval
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}

	if c.CamofoxHost == "" {
		return ErrNoCamofoxHost
	}

	if c.CamofoxPort < 1 || c.CamofoxPort > 65535 {
		return ErrInvalidCamofoxPort
	}

	if len(c.NitterInstances) == 0 {
		return ErrNoNitterInstances
	}

	switch c.Format {
	case FormatSimple, FormatJSON, FormatMarkdown:
	default:
		return ErrInvalidFormat
	}

	if c.ShortTextLimit < 0 {
		return ErrInvalidShortTextLimit
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
