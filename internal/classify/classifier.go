package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nao1215/replywatch/internal/model"
)

// Default classifier configuration. These are tuning knobs surfaced
// through the configuration layer, not fixed business rules.
var (
	// DefaultInterrogatives are the words that mark a reply as a
	// question when one of them opens the text.
	DefaultInterrogatives = []string{
		"how", "what", "why", "can", "could", "does", "is",
		"where", "when", "anyone", "help",
	}

	// DefaultTriggerTokens are technical words that flag a short reply
	// as a candidate question even without interrogative structure.
	DefaultTriggerTokens = []string{
		"error", "bug", "crash", "install", "config",
		"fails", "broken", "exception",
	}
)

// DefaultShortTextLimit is the rune count at or under which a trigger
// token alone flags a reply (rule 3). Longer texts that mention a
// trigger word are usually narrative, not requests for help.
const DefaultShortTextLimit = 100

// rule is one predicate over lowercased text. Rules are independent;
// the classifier evaluates them in order and stops at the first match.
type rule func(text string) bool

// Classifier decides whether reply text reads as a technical question.
//
// The decision is an ordered list of lexical rules with short-circuit
// semantics:
//  1. the text contains a question mark (ASCII or fullwidth);
//  2. the first word is an interrogative from a configurable set;
//  3. the text contains a technical trigger token (substring match) and
//     is short enough to read as a plea rather than a story.
//
// This is deliberately imprecise. It looks at characters and words, not
// meaning, so false positives and false negatives both occur and are
// accepted; the result is a surfacing hint for a human, not a verdict.
type Classifier struct {
	// interrogatives is the lowercased rule-2 opener set.
	interrogatives map[string]bool

	// triggerTokens is the lowercased rule-3 token set.
	triggerTokens map[string]bool

	// shortTextLimit is the rule-3 rune threshold.
	shortTextLimit int

	// rules is the ordered predicate list built by New.
	rules []rule
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithInterrogatives replaces the interrogative opener set for rule 2.
func WithInterrogatives(words []string) Option {
	return func(c *Classifier) {
		c.interrogatives = toLowerSet(words)
	}
}

// WithTriggerTokens replaces the technical trigger token set for rule 3.
func WithTriggerTokens(tokens []string) Option {
	return func(c *Classifier) {
		c.triggerTokens = toLowerSet(tokens)
	}
}

// WithShortTextLimit sets the rune count at or under which a trigger
// token alone flags a reply. Values below 1 disable rule 3.
func WithShortTextLimit(limit int) Option {
	return func(c *Classifier) {
		c.shortTextLimit = limit
	}
}

// New creates a Classifier with the default rule configuration.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		interrogatives: toLowerSet(DefaultInterrogatives),
		triggerTokens:  toLowerSet(DefaultTriggerTokens),
		shortTextLimit: DefaultShortTextLimit,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.rules = []rule{
		c.containsQuestionMark,
		c.opensWithInterrogative,
		c.hasShortTechnicalTrigger,
	}

	return c
}

// Classify reports whether the text reads as a technical question.
// Pure and total: it never fails and never blocks, and empty or
// unparseable text is simply not a question.
func (c *Classifier) Classify(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}

	for _, r := range c.rules {
		if r(text) {
			return true
		}
	}
	return false
}

// ClassifyReplies pairs each reply with its classification result,
// preserving order.
func (c *Classifier) ClassifyReplies(replies []model.Reply) []model.ClassifiedReply {
	classified := make([]model.ClassifiedReply, 0, len(replies))
	for _, r := range replies {
		classified = append(classified, model.ClassifiedReply{
			Reply:      r,
			IsQuestion: c.Classify(r.Text),
		})
	}
	return classified
}

// containsQuestionMark is rule 1. The fullwidth mark covers threads in
// CJK locales, which the mirror renders verbatim.
func (c *Classifier) containsQuestionMark(text string) bool {
	return strings.ContainsAny(text, "?？")
}

// opensWithInterrogative is rule 2: the first word of the text is an
// interrogative. Apostrophe forms ("how's", "can't") count as their
// base word.
func (c *Classifier) opensWithInterrogative(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}

	first := trimWordPunct(fields[0])
	if c.interrogatives[first] {
		return true
	}
	if i := strings.IndexByte(first, '\''); i > 0 && c.interrogatives[first[:i]] {
		return true
	}
	return false
}

// hasShortTechnicalTrigger is rule 3: a trigger token occurs anywhere in
// the text and the text is at or under the short-text limit. Containment
// is a substring check, so embedded forms ("debugging" for "bug") match;
// that imprecision is accepted, and it is what lets unsegmented CJK text
// match at all.
func (c *Classifier) hasShortTechnicalTrigger(text string) bool {
	if c.shortTextLimit < 1 || utf8.RuneCountInString(text) > c.shortTextLimit {
		return false
	}

	for token := range c.triggerTokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

// trimWordPunct strips leading and trailing punctuation from a word,
// leaving interior characters (apostrophes, hyphens) alone.
func trimWordPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// toLowerSet builds a lowercase membership set from a word list.
func toLowerSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = true
		}
	}
	return set
}
