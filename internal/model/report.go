package model

import (
	"time"
)

// ClassifiedReply pairs a reply with its question-classification result.
type ClassifiedReply struct {
	Reply

	// IsQuestion marks replies that read as technical questions.
	IsQuestion bool `json:"is_question"`
}

// CheckReport is the outcome of one reply-thread check, the artifact the
// writers serialize for the user. It is built fresh per check by
// NewCheckReport and never mutated afterwards; everything in it is
// derived from the check inputs, nothing is loaded or stored here.
type CheckReport struct {
	// TweetURL is the canonical URL of the monitored tweet.
	TweetURL string `json:"tweet_url"`

	// Username is the tweet author's handle without "@".
	Username string `json:"username"`

	// TweetID is the numeric status ID.
	TweetID string `json:"tweet_id"`

	// CheckedAt is when the check ran (UTC).
	CheckedAt time.Time `json:"checked_at"`

	// TotalReplies is the number of replies in the full snapshot,
	// including replies already seen in prior checks.
	TotalReplies int `json:"total_replies"`

	// NewReplies lists replies not present in the prior snapshot, in the
	// order the source page presented them.
	NewReplies []ClassifiedReply `json:"new_replies"`

	// NewCount is len(NewReplies).
	NewCount int `json:"new_count"`

	// Questions lists every reply in the snapshot flagged as a technical
	// question, new or not, in snapshot order. A question stays visible
	// here until it leaves the thread, even when it is no longer new.
	Questions []ClassifiedReply `json:"questions"`

	// QuestionCount is len(Questions).
	QuestionCount int `json:"question_count"`
}

// NewCheckReport assembles an immutable report from the results of one
// check. Pure transformation: no I/O, no clock reads; every count is
// derived from the arguments. allReplies is the full classified
// snapshot, newReplies the classified subset the differ reported as
// new.
func NewCheckReport(ref TweetRef, checkedAt time.Time, allReplies, newReplies []ClassifiedReply) *CheckReport {
	questions := make([]ClassifiedReply, 0)
	for _, r := range allReplies {
		if r.IsQuestion {
			questions = append(questions, r)
		}
	}
	if newReplies == nil {
		newReplies = make([]ClassifiedReply, 0)
	}
	return &CheckReport{
		TweetURL:      ref.URL(),
		Username:      ref.Username(),
		TweetID:       ref.ID(),
		CheckedAt:     checkedAt,
		TotalReplies:  len(allReplies),
		NewReplies:    newReplies,
		NewCount:      len(newReplies),
		Questions:     questions,
		QuestionCount: len(questions),
	}
}
