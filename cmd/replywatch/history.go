package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/replywatch/internal/config"
	"github.com/nao1215/replywatch/internal/database"
	"github.com/nao1215/replywatch/internal/model"
)

// NewHistoryCmd creates the history command.
// This command inspects check records stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [tweet-url]",
		Short: "Show recorded check history for a monitored tweet",
		Long: `History displays the check records stored in the local database.

With a tweet URL it lists that tweet's checks: when each check ran, how
many replies the thread had, and how many were new or flagged as
questions. Without a URL it lists every tweet the database holds state
for.

Examples:
  # List every monitored tweet in the database
  replywatch history

  # Show check history for one tweet
  replywatch history https://x.com/golang/status/1234567890

  # Show only the five most recent checks
  replywatch history --limit 5 https://x.com/golang/status/1234567890

  # Output check history in JSON format
  replywatch history --json https://x.com/golang/status/1234567890`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", 0,
		"Maximum number of checks to show (0 shows all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output check history in JSON format")
	cmd.Flags().String("db-dir", "",
		"Directory of the monitor database (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Validate the URL before opening the database
	// This prevents database lock issues when validation fails
	var ref model.TweetRef
	haveRef := len(args) > 0
	if haveRef {
		var err error
		ref, err = model.ParseTweetURL(args[0])
		if err != nil {
			return fmt.Errorf("invalid tweet URL %q: %w", args[0], err)
		}
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Open database
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Without a URL, list what the database knows about
	if !haveRef {
		return listMonitoredTweets(ctx, db)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputHistoryJSON(ctx, db, ref, limit)
	}
	return listCheckHistory(ctx, db, ref, limit)
}

// listMonitoredTweets lists every tweet with stored monitor state.
func listMonitoredTweets(ctx context.Context, db *database.MonitorDB) error {
	keys, err := db.ListMonitoredTweets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list monitored tweets: %w", err)
	}

	if len(keys) == 0 {
		fmt.Println("No monitored tweets found in the database.")
		fmt.Println("\nUse 'replywatch check --url <tweet-url>' to start monitoring a tweet.")
		return nil
	}

	fmt.Printf("Monitored tweets (%d):\n\n", len(keys))
	for _, key := range keys {
		// State keys carry the status ID; the author handle is not part
		// of the key.
		fmt.Printf("  • status %s\n", strings.TrimPrefix(key, "tweet_"))
	}
	fmt.Println("\nUse 'replywatch history https://x.com/i/status/<id>' to see check history for a tweet.")

	return nil
}

// listCheckHistory lists the stored check records for one tweet.
func listCheckHistory(ctx context.Context, db *database.MonitorDB, ref model.TweetRef, limit int) error {
	records, err := db.GetHistoryMetadata(ctx, ref, limit)
	if err != nil {
		return fmt.Errorf("failed to get check history: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("No check history found for %s\n", ref.String())
		fmt.Println("\nUse 'replywatch check' to check this tweet.")
		return nil
	}

	fmt.Printf("Check history for %s (%d checks):\n\n", ref.String(), len(records))
	fmt.Printf("  %-6s  %-20s  %8s  %5s  %9s\n", "ID", "Date", "Replies", "New", "Questions")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, meta := range records {
		fmt.Printf("  %-6d  %-20s  %8d  %5d  %9d\n",
			meta.ID,
			meta.CheckedAt.Format("2006-01-02 15:04:05"),
			meta.TotalReplies,
			meta.NewCount,
			meta.QuestionCount,
		)
	}

	fmt.Println("\nUse 'replywatch check --url <tweet-url>' to record another check.")

	return nil
}

// CheckRecord is one check history row in JSON output.
type CheckRecord struct {
	// ID is the database identifier of the stored check.
	ID int64 `json:"id"`

	// TweetID is the monitored tweet's status ID.
	TweetID string `json:"tweet_id"`

	// CheckedAt is when the check ran.
	CheckedAt time.Time `json:"checked_at"`

	// TotalReplies is the snapshot size at check time.
	TotalReplies int `json:"total_replies"`

	// NewCount is how many replies were newly detected.
	NewCount int `json:"new_count"`

	// QuestionCount is how many new replies were flagged as questions.
	QuestionCount int `json:"question_count"`
}

// outputHistoryJSON outputs the stored check records in JSON format.
func outputHistoryJSON(ctx context.Context, db *database.MonitorDB, ref model.TweetRef, limit int) error {
	records, err := db.GetHistoryMetadata(ctx, ref, limit)
	if err != nil {
		return fmt.Errorf("failed to get check history: %w", err)
	}

	out := make([]CheckRecord, 0, len(records))
	for _, meta := range records {
		out = append(out, CheckRecord{
			ID:            meta.ID,
			TweetID:       meta.TweetID,
			CheckedAt:     meta.CheckedAt,
			TotalReplies:  meta.TotalReplies,
			NewCount:      meta.NewCount,
			QuestionCount: meta.QuestionCount,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
