// Package main provides the entry point for the replywatch CLI.
//
// replywatch monitors the reply thread of an X/Twitter post through
// Nitter mirrors. It reports which replies are new since the last
// check and flags replies that read as technical questions.
//
// Usage:
//
//	replywatch check --url <tweet-url>
//	replywatch check --url <tweet-url> --watch
//
// See --help for all available options.
package main

// main is the entry point for replywatch.
func main() {
	Execute()
}
