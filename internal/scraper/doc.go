// Package scraper turns a tweet's reply thread into structured reply
// data.
//
// Two parsers cover the two ways a thread page reaches us. The
// SnapshotParser reads the line-oriented accessibility snapshot that
// the rendering browser produces, anchoring each reply on its
// "Replying to" line and scanning bounded windows for the author, the
// body, and the engagement row. The HTMLParser reads a mirror status
// page directly and walks the markup for the same three fields; it is
// the fallback when no rendering browser is available.
//
// The Client fetches mirror pages for the HTML path, optionally
// through a SOCKS5 proxy for callers that do not want their address
// associated with the lookups.
//
// Both parsers are heuristic. They drop anything that does not yield
// an author and a body rather than guessing, because a dropped reply
// is re-reported on the next successful parse while an invented one
// poisons the stored state.
package scraper
