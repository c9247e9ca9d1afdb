// Package browser talks to a locally running headless browser through
// its HTTP control API.
//
// The monitored page is rendered in a real browser session because
// mirror instances assemble the reply list with scripts and rate-limit
// plain HTTP clients aggressively. The control API exposes a small tab
// lifecycle: create a tab on a URL, read the rendered page's
// accessibility snapshot as text, delete the tab. This package wraps
// that lifecycle and adds the render wait between navigation and
// snapshot.
//
// Design decision: tab closing never fails a check. The browser
// expires idle sessions on its own, so a leaked tab costs a little
// memory for a while, whereas failing a check over cleanup would trade
// a harmless leak for a missed reply.
package browser
