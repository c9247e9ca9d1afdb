package main

import (
	"context"
	"testing"
	"time"

	"github.com/nao1215/replywatch/internal/database"
	"github.com/nao1215/replywatch/internal/model"
)

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "history [tweet-url]" {
			t.Errorf("expected use 'history [tweet-url]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has limit flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("limit")
		if flag == nil {
			t.Fatal("expected limit flag")
		}
		if flag.Shorthand != "l" {
			t.Errorf("expected shorthand 'l', got %q", flag.Shorthand)
		}
	})

	t.Run("has json flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("json")
		if flag == nil {
			t.Fatal("expected json flag")
		}
		if flag.Shorthand != "j" {
			t.Errorf("expected shorthand 'j', got %q", flag.Shorthand)
		}
	})

	t.Run("has db-dir flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("db-dir") == nil {
			t.Error("expected db-dir flag")
		}
	})

	t.Run("accepts at most one argument", func(t *testing.T) {
		t.Parallel()
		if cmd.Args == nil {
			t.Fatal("expected Args validator")
		}
		if err := cmd.Args(cmd, []string{"a", "b"}); err == nil {
			t.Error("expected error for two arguments")
		}
	})
}

// TestRunHistoryCmdInvalidURL tests that an unparseable tweet URL fails
// before the database is opened.
func TestRunHistoryCmdInvalidURL(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	cmd.SetArgs([]string{"https://example.com/not-a-tweet"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for invalid tweet URL")
	}
}

// seedHistoryDB opens a database in a temp dir and stores monitor state
// plus two check reports for one tweet.
func seedHistoryDB(t *testing.T) (string, model.TweetRef) {
	t.Helper()

	dbDir := t.TempDir()
	ref := model.MustNewTweetRef("golang", "123")

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	snapshot := model.Snapshot{{Author: "@a", Text: "hi", Likes: 1}}
	if err := db.SaveState(ctx, ref, model.NewMonitorState(snapshot, time.Now().UTC())); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	classified := []model.ClassifiedReply{
		{Reply: model.Reply{Author: "@a", Text: "hi", Likes: 1}},
	}
	older := model.NewCheckReport(ref, time.Now().UTC().Add(-time.Hour), classified, classified)
	newer := model.NewCheckReport(ref, time.Now().UTC(), classified, nil)
	if err := db.SaveReport(ctx, older); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}
	if err := db.SaveReport(ctx, newer); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}

	return dbDir, ref
}

// TestRunHistoryCmdListsTweets tests the no-argument listing path.
func TestRunHistoryCmdListsTweets(t *testing.T) {
	t.Parallel()

	dbDir, _ := seedHistoryDB(t)

	cmd := NewHistoryCmd()
	cmd.SetArgs([]string{"--db-dir", dbDir})
	if err := cmd.Execute(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestRunHistoryCmdListsChecks tests the per-tweet history path.
func TestRunHistoryCmdListsChecks(t *testing.T) {
	t.Parallel()

	dbDir, ref := seedHistoryDB(t)

	t.Run("text output", func(t *testing.T) {
		t.Parallel()
		cmd := NewHistoryCmd()
		cmd.SetArgs([]string{"--db-dir", dbDir, ref.URL()})
		if err := cmd.Execute(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()
		cmd := NewHistoryCmd()
		cmd.SetArgs([]string{"--db-dir", dbDir, "--json", ref.URL()})
		if err := cmd.Execute(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("limit restricts rows", func(t *testing.T) {
		t.Parallel()
		cmd := NewHistoryCmd()
		cmd.SetArgs([]string{"--db-dir", dbDir, "--limit", "1", ref.URL()})
		if err := cmd.Execute(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("no history for an unknown tweet", func(t *testing.T) {
		t.Parallel()
		cmd := NewHistoryCmd()
		cmd.SetArgs([]string{"--db-dir", dbDir, "https://x.com/golang/status/999"})
		if err := cmd.Execute(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// TestHistoryMetadataOrdering tests that stored checks come back newest
// first with the counts the report carried.
func TestHistoryMetadataOrdering(t *testing.T) {
	t.Parallel()

	dbDir, ref := seedHistoryDB(t)

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	records, err := db.GetHistoryMetadata(context.Background(), ref, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].NewCount != 0 {
		t.Errorf("expected newest record first with 0 new replies, got %d", records[0].NewCount)
	}
	if records[1].NewCount != 1 {
		t.Errorf("expected older record with 1 new reply, got %d", records[1].NewCount)
	}
	if !records[0].CheckedAt.After(records[1].CheckedAt) {
		t.Error("expected records ordered newest first")
	}
}
