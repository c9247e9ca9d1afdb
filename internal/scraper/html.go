package scraper

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/replywatch/internal/model"
)

// CSS class names in mirror status pages. The reply list sits in a
// "replies" container; each reply is a "timeline-item" carrying a
// "username" link, a "tweet-content" body, and a "tweet-stats" row
// where the like count follows the "icon-heart" span.
const (
	classReplies      = "replies"
	classTimelineItem = "timeline-item"
	classUsername     = "username"
	classTweetContent = "tweet-content"
	classIconHeart    = "icon-heart"
	classIconContain  = "icon-container"
)

// HTMLParser extracts replies from a mirror status page when the
// rendered snapshot path is unavailable.
//
// Design decision: we parse with golang.org/x/net/html rather than
// regex because mirror markup varies between instances and versions,
// and a tolerant DOM walk survives attribute reordering and extra
// wrapper elements that would break any pattern match.
type HTMLParser struct {
	// originalAuthor is the monitored tweet's author handle without the
	// "@" prefix. Self-replies by the author continue the thread and are
	// not treated as replies.
	originalAuthor string
}

// NewHTMLParser creates a parser for replies under a tweet by the
// given author. A leading "@" on the handle is accepted and stripped.
func NewHTMLParser(originalAuthor string) *HTMLParser {
	return &HTMLParser{
		originalAuthor: strings.TrimPrefix(originalAuthor, "@"),
	}
}

// Parse extracts the replies from a mirror status page in page order.
// Malformed HTML is handled by the tolerant parser; items missing an
// author or body are dropped.
func (p *HTMLParser) Parse(content io.Reader) (model.Snapshot, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	replies := make(model.Snapshot, 0)

	// Walk the DOM tree. Reply items outside the replies container are
	// the main tweet and the author's own thread continuation.
	var walk func(n *html.Node, inReplies bool)
	walk = func(n *html.Node, inReplies bool) {
		if n.Type == html.ElementNode {
			if inReplies && hasClass(n, classTimelineItem) {
				if reply, ok := p.parseItem(n); ok {
					if !containsReply(replies, reply) {
						replies = append(replies, reply)
					}
				}
				return
			}
			if hasClass(n, classReplies) {
				inReplies = true
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inReplies)
		}
	}

	walk(doc, false)

	return replies, nil
}

// parseItem extracts one reply from a timeline item node.
func (p *HTMLParser) parseItem(item *html.Node) (model.Reply, bool) {
	author := findTextByClass(item, classUsername)
	text := findTextByClass(item, classTweetContent)
	likes := findLikeCount(item)

	author = strings.TrimSpace(author)
	text = strings.TrimSpace(text)

	if author == "" || text == "" {
		return model.Reply{}, false
	}
	if !strings.HasPrefix(author, "@") {
		author = "@" + author
	}
	if strings.TrimPrefix(author, "@") == p.originalAuthor {
		return model.Reply{}, false
	}

	return model.Reply{
		Author: author,
		Text:   text,
		Likes:  likes,
	}, true
}

// findTextByClass returns the collected text of the first element
// under n carrying the given class, or "" when none exists.
func findTextByClass(n *html.Node, class string) string {
	var found *html.Node

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, class) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	if found == nil {
		return ""
	}
	return collectText(found)
}

// findLikeCount locates the stat container holding the heart icon and
// parses the number rendered next to it. Mirror pages render counts
// with thousands separators, which are stripped before parsing.
func findLikeCount(item *html.Node) int {
	var likes int

	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, classIconContain) && containsClass(n, classIconHeart) {
			raw := strings.TrimSpace(collectText(n))
			raw = strings.ReplaceAll(raw, ",", "")
			if raw == "" {
				return true
			}
			if parsed, err := strconv.Atoi(raw); err == nil {
				likes = parsed
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(item)

	return likes
}

// containsClass reports whether any element under n carries the given
// class.
func containsClass(n *html.Node, class string) bool {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsClass(c, class) {
			return true
		}
	}
	return false
}

// collectText concatenates all text nodes under n.
func collectText(n *html.Node) string {
	var sb strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return sb.String()
}

// hasClass reports whether the node's class attribute contains the
// given class name.
func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}
