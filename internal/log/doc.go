// Package log provides logging with automatic masking of sensitive
// information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic masking of sensitive values (cookies, tokens, session keys)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Masking
//
// The MaskingHandler automatically masks sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, X-Api-Key)
//   - Browser session keys, both as attributes and inside URL query strings
//   - Secret values detected by pattern matching (JWT, bearer and basic auth)
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	// Create a masking logger
//	logger := log.NewMaskingLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("tab opened",
//	    "session_key", "abc123",            // Will be masked
//	    "url", "https://nitter.net/golang", // Left as is
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
