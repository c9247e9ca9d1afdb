package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nao1215/replywatch/internal/model"
)

// Search windows around a "Replying to" anchor, in lines.
// Rendered reply blocks put the author shortly before the anchor and
// the body text and engagement row shortly after it.
const (
	authorSearchWindow     = 10
	textSearchWindow       = 10
	engagementSearchWindow = 15
)

// replyTextPrefix marks the line carrying the reply body in a snapshot.
const replyTextPrefix = "- text:"

var (
	// handlePattern matches an @handle mention.
	handlePattern = regexp.MustCompile(`@(\w+)`)

	// numberPattern matches runs of digits in an engagement row.
	numberPattern = regexp.MustCompile(`\d+`)
)

// SnapshotParser extracts replies from a rendered-page accessibility
// snapshot. The snapshot is a line-oriented text dump of the page, so
// parsing works on positional heuristics rather than markup.
//
// Design decision: each reply block is anchored on its "Replying to"
// line because that is the one string the page renders for every reply
// and never for the tweet itself. Author, body, and engagement counts
// are then located by bounded scans around the anchor, which tolerates
// the small layout shifts between page versions.
type SnapshotParser struct {
	// originalAuthor is the monitored tweet's author handle without the
	// "@" prefix. Mentions of this handle near an anchor belong to the
	// "Replying to @author" line itself, not to the reply author.
	originalAuthor string
}

// NewSnapshotParser creates a parser for replies under a tweet by the
// given author. A leading "@" on the handle is accepted and stripped.
func NewSnapshotParser(originalAuthor string) *SnapshotParser {
	return &SnapshotParser{
		originalAuthor: strings.TrimPrefix(originalAuthor, "@"),
	}
}

// Parse extracts the replies from a snapshot in page order.
//
// A block only yields a reply when both an author and a body were
// found; partial blocks are dropped. Exact author plus text duplicates
// are collapsed because the same block can carry more than one
// "Replying to" line.
func (p *SnapshotParser) Parse(snapshot string) model.Snapshot {
	replies := make(model.Snapshot, 0)
	lines := strings.Split(snapshot, "\n")

	for i := range lines {
		if !strings.Contains(strings.TrimSpace(lines[i]), "Replying to") {
			continue
		}

		author := p.findAuthorBefore(lines, i)
		text := findReplyTextAfter(lines, i)
		likes := findLikesAfter(lines, i)

		if author == "" || text == "" {
			continue
		}

		reply := model.Reply{
			Author: author,
			Text:   text,
			Likes:  likes,
		}
		if containsReply(replies, reply) {
			continue
		}
		replies = append(replies, reply)
	}

	return replies
}

// findAuthorBefore scans the window above the anchor for an @handle
// that is not the monitored tweet's author. The last such handle wins:
// the line nearest the anchor names the reply author, while earlier
// lines may still belong to the previous reply block.
func (p *SnapshotParser) findAuthorBefore(lines []string, anchor int) string {
	author := ""
	start := anchor - authorSearchWindow
	if start < 0 {
		start = 0
	}
	for j := start; j < anchor; j++ {
		match := handlePattern.FindStringSubmatch(lines[j])
		if match != nil && match[1] != p.originalAuthor {
			author = "@" + match[1]
		}
	}
	return author
}

// findReplyTextAfter scans the window below the anchor for the first
// usable "- text:" line. Candidates that are empty or contain a nested
// "Replying to" belong to the anchor line itself and are skipped.
func findReplyTextAfter(lines []string, anchor int) string {
	end := anchor + textSearchWindow
	if end > len(lines) {
		end = len(lines)
	}
	for j := anchor + 1; j < end; j++ {
		content := strings.TrimSpace(lines[j])
		if !strings.HasPrefix(content, replyTextPrefix) {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(content, replyTextPrefix))
		if text != "" && !strings.Contains(text, "Replying to") {
			return text
		}
	}
	return ""
}

// findLikesAfter scans the window below the anchor for the engagement
// row: a line with at least three numbers that is not an attribute
// line. The search stops at the first such row whether or not its
// leading number parses, so a malformed row yields zero likes rather
// than a number from an unrelated later line.
func findLikesAfter(lines []string, anchor int) int {
	end := anchor + engagementSearchWindow
	if end > len(lines) {
		end = len(lines)
	}
	for j := anchor + 1; j < end; j++ {
		row := strings.TrimSpace(lines[j])
		if strings.HasPrefix(row, "- ") {
			continue
		}
		nums := numberPattern.FindAllString(row, -1)
		if len(nums) < 3 {
			continue
		}
		likes, err := strconv.Atoi(nums[0])
		if err != nil {
			return 0
		}
		return likes
	}
	return 0
}

// containsReply reports whether an identical author plus text pair is
// already present.
func containsReply(replies model.Snapshot, reply model.Reply) bool {
	for _, r := range replies {
		if r.Author == reply.Author && r.Text == reply.Text {
			return true
		}
	}
	return false
}
