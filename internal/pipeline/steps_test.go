package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/nao1215/replywatch/internal/browser"
	"github.com/nao1215/replywatch/internal/classify"
	"github.com/nao1215/replywatch/internal/differ"
	"github.com/nao1215/replywatch/internal/model"
	"github.com/nao1215/replywatch/internal/scraper"
)

// fakeStateStore is an in-memory differ.StateStore for step tests.
type fakeStateStore struct {
	states  map[string]*model.MonitorState
	saveErr error
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]*model.MonitorState)}
}

func (f *fakeStateStore) LoadState(_ context.Context, ref model.TweetRef) (*model.MonitorState, error) {
	return f.states[ref.StateKey()], nil
}

func (f *fakeStateStore) SaveState(_ context.Context, ref model.TweetRef, state *model.MonitorState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.states[ref.StateKey()] = state
	return nil
}

// mirrorPage is a minimal mirror status page with two replies.
const mirrorPage = `<html><body>
<div class="main-tweet">
  <div class="timeline-item">
    <a class="username">@golang</a>
    <div class="tweet-content">Announcing the new release</div>
  </div>
</div>
<div class="replies">
  <div class="timeline-item">
    <a class="username">@alice</a>
    <div class="tweet-content">how do I install this?</div>
  </div>
  <div class="timeline-item">
    <a class="username">@bob</a>
    <div class="tweet-content">Nice release!</div>
  </div>
</div>
</body></html>`

// newMirrorServer serves the given mirror page for any path.
func newMirrorServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(page)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// newBrowserServer fakes the rendered-browser control API, returning
// the given accessibility snapshot for every tab.
func newBrowserServer(t *testing.T, snapshot string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tabs", func(w http.ResponseWriter, _ *http.Request) {
		if err := json.NewEncoder(w).Encode(map[string]string{"tabId": "tab-1"}); err != nil {
			t.Errorf("failed to encode tab response: %v", err)
		}
	})
	mux.HandleFunc("GET /tabs/{id}/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		if err := json.NewEncoder(w).Encode(map[string]string{"snapshot": snapshot}); err != nil {
			t.Errorf("failed to encode snapshot response: %v", err)
		}
	})
	mux.HandleFunc("DELETE /tabs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// browserClientFor points a browser client at a test server with a
// render wait short enough for tests.
func browserClientFor(t *testing.T, server *httptest.Server) *browser.Client {
	t.Helper()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("failed to parse test server port: %v", err)
	}
	return browser.NewClient(u.Hostname(), port, browser.WithRenderWait(time.Millisecond))
}

func newScraperClient(t *testing.T) *scraper.Client {
	t.Helper()
	client, err := scraper.NewClient(scraper.WithFetchTimeout(5 * time.Second))
	if err != nil {
		t.Fatalf("failed to create scraper client: %v", err)
	}
	return client
}

func TestFetchStepDo(t *testing.T) {
	t.Parallel()

	t.Run("fails without configured instances", func(t *testing.T) {
		t.Parallel()

		step := NewFetchStep(newScraperClient(t), WithFetchInstances(nil))

		err := step.Do(context.Background(), newTestCheck(t))
		if !errors.Is(err, ErrNoMirrorInstances) {
			t.Errorf("expected ErrNoMirrorInstances, got %v", err)
		}
	})

	t.Run("parses replies from a direct mirror fetch", func(t *testing.T) {
		t.Parallel()

		server := newMirrorServer(t, mirrorPage)
		step := NewFetchStep(newScraperClient(t), WithFetchInstances([]string{server.URL}))

		check := newTestCheck(t)
		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(check.Snapshot) != 2 {
			t.Fatalf("expected 2 replies, got %d", len(check.Snapshot))
		}
		if check.Snapshot[0].Author != "@alice" || check.Snapshot[1].Author != "@bob" {
			t.Errorf("unexpected authors: %q, %q", check.Snapshot[0].Author, check.Snapshot[1].Author)
		}
		if check.Instance != server.URL {
			t.Errorf("expected instance %q, got %q", server.URL, check.Instance)
		}
	})

	t.Run("race falls through dead instances to a live one", func(t *testing.T) {
		t.Parallel()

		dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
		}))
		t.Cleanup(dead.Close)
		live := newMirrorServer(t, mirrorPage)

		step := NewFetchStep(newScraperClient(t), WithFetchInstances([]string{dead.URL, live.URL}))

		check := newTestCheck(t)
		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if check.Instance != live.URL {
			t.Errorf("expected the live instance to win, got %q", check.Instance)
		}
		if len(check.Snapshot) != 2 {
			t.Errorf("expected 2 replies, got %d", len(check.Snapshot))
		}
	})

	t.Run("fails when every instance fails", func(t *testing.T) {
		t.Parallel()

		dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusGone)
		}))
		t.Cleanup(dead.Close)

		step := NewFetchStep(newScraperClient(t), WithFetchInstances([]string{dead.URL}))

		if err := step.Do(context.Background(), newTestCheck(t)); err == nil {
			t.Error("expected an error when every instance fails")
		}
	})

	t.Run("prefers the rendered snapshot when a browser is configured", func(t *testing.T) {
		t.Parallel()

		snapshot := `- link "Alice @alice 1h":
- text: Replying to @golang
- text: rendered reply body`
		browserServer := newBrowserServer(t, snapshot)
		mirror := newMirrorServer(t, mirrorPage)

		step := NewFetchStep(newScraperClient(t),
			WithFetchInstances([]string{mirror.URL}),
			WithFetchBrowser(browserClientFor(t, browserServer)),
		)

		check := newTestCheck(t)
		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(check.Snapshot) != 1 {
			t.Fatalf("expected 1 rendered reply, got %d", len(check.Snapshot))
		}
		if check.Snapshot[0].Text != "rendered reply body" {
			t.Errorf("expected the rendered snapshot to win, got %q", check.Snapshot[0].Text)
		}
	})

	t.Run("falls back to a direct fetch when the browser is down", func(t *testing.T) {
		t.Parallel()

		browserServer := newBrowserServer(t, "")
		mirror := newMirrorServer(t, mirrorPage)

		step := NewFetchStep(newScraperClient(t),
			WithFetchInstances([]string{mirror.URL}),
			WithFetchBrowser(browserClientFor(t, browserServer)),
		)
		browserServer.Close()

		check := newTestCheck(t)
		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(check.Snapshot) != 2 {
			t.Errorf("expected 2 replies from the mirror fallback, got %d", len(check.Snapshot))
		}
	})
}

func TestDiffStepDo(t *testing.T) {
	t.Parallel()

	t.Run("fills diff results into the check", func(t *testing.T) {
		t.Parallel()

		step := NewDiffStep(differ.New(newFakeStateStore()))

		check := newTestCheck(t)
		check.Snapshot = model.Snapshot{
			{Author: "@alice", Text: "hello", Likes: 1},
			{Author: "", Text: "broken parse", Likes: 0},
		}

		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !check.FirstCheck {
			t.Error("expected FirstCheck to be set")
		}
		if len(check.NewReplies) != 1 {
			t.Errorf("expected 1 new reply, got %d", len(check.NewReplies))
		}
		if check.SkippedReplies != 1 {
			t.Errorf("expected 1 skipped reply, got %d", check.SkippedReplies)
		}
		if len(check.Snapshot) != 1 {
			t.Errorf("expected the snapshot narrowed to kept replies, got %d", len(check.Snapshot))
		}
	})

	t.Run("save failure fails the step", func(t *testing.T) {
		t.Parallel()

		store := newFakeStateStore()
		saveErr := errors.New("disk full")
		store.saveErr = saveErr
		step := NewDiffStep(differ.New(store))

		check := newTestCheck(t)
		check.Snapshot = model.Snapshot{{Author: "@alice", Text: "hello", Likes: 1}}

		err := step.Do(context.Background(), check)
		if !errors.Is(err, saveErr) {
			t.Errorf("expected the save error to propagate, got %v", err)
		}
	})
}

func TestClassifyStepDo(t *testing.T) {
	t.Parallel()

	t.Run("classifies both the snapshot and the new replies", func(t *testing.T) {
		t.Parallel()

		step := NewClassifyStep(classify.New())

		check := newTestCheck(t)
		check.Snapshot = model.Snapshot{
			{Author: "@old", Text: "why is this broken?", Likes: 0},
			{Author: "@alice", Text: "congrats on shipping", Likes: 2},
		}
		check.NewReplies = []model.Reply{check.Snapshot[1]}

		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(check.SnapshotClassified) != 2 {
			t.Fatalf("expected 2 classified snapshot replies, got %d", len(check.SnapshotClassified))
		}
		if !check.SnapshotClassified[0].IsQuestion {
			t.Error("expected the question reply to be flagged")
		}
		if len(check.Classified) != 1 {
			t.Fatalf("expected 1 classified new reply, got %d", len(check.Classified))
		}
		if check.Classified[0].IsQuestion {
			t.Error("expected the congratulation not to be flagged")
		}
	})
}

// recordingSaver records saved reports and can be told to fail.
type recordingSaver struct {
	saved []*model.CheckReport
	err   error
}

func (r *recordingSaver) SaveReport(_ context.Context, report *model.CheckReport) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, report)
	return nil
}

// classifiedPair builds a two-reply classified list with one question.
func classifiedPair() []model.ClassifiedReply {
	return []model.ClassifiedReply{
		{Reply: model.Reply{Author: "@old", Text: "statement", Likes: 0}, IsQuestion: false},
		{Reply: model.Reply{Author: "@alice", Text: "why is this broken?", Likes: 3}, IsQuestion: true},
	}
}

func TestReportStepDo(t *testing.T) {
	t.Parallel()

	t.Run("builds the report from classified replies", func(t *testing.T) {
		t.Parallel()

		step := NewReportStep()

		check := newTestCheck(t)
		check.SnapshotClassified = classifiedPair()
		check.Classified = check.SnapshotClassified[1:]

		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if check.Report == nil {
			t.Fatal("expected the report to be built")
		}
		if check.Report.TotalReplies != 2 {
			t.Errorf("expected total 2, got %d", check.Report.TotalReplies)
		}
		if check.Report.NewCount != 1 {
			t.Errorf("expected new count 1, got %d", check.Report.NewCount)
		}
		if check.Report.QuestionCount != 1 {
			t.Errorf("expected question count 1, got %d", check.Report.QuestionCount)
		}
	})

	t.Run("records the report through the saver", func(t *testing.T) {
		t.Parallel()

		saver := &recordingSaver{}
		step := NewReportStep(WithReportSaver(saver))

		check := newTestCheck(t)
		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(saver.saved) != 1 {
			t.Errorf("expected 1 saved report, got %d", len(saver.saved))
		}
	})

	t.Run("saver failure does not fail the check", func(t *testing.T) {
		t.Parallel()

		saver := &recordingSaver{err: errors.New("history table locked")}
		step := NewReportStep(WithReportSaver(saver))

		check := newTestCheck(t)
		if err := step.Do(context.Background(), check); err != nil {
			t.Fatalf("expected no error from a history failure, got %v", err)
		}
		if check.Report == nil {
			t.Error("expected the report to be built despite the saver failure")
		}
	})
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("assembles the standard steps in order", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(newScraperClient(t), newFakeStateStore(), nil)

		got := p.StepNames()
		expected := []string{"fetch", "diff", "classify", "report"}
		if len(got) != len(expected) {
			t.Fatalf("expected %d steps, got %d", len(expected), len(got))
		}
		for i, name := range expected {
			if got[i] != name {
				t.Errorf("step %d: got %q, expected %q", i, got[i], name)
			}
		}
	})

	t.Run("runs a full check against a mirror", func(t *testing.T) {
		t.Parallel()

		server := newMirrorServer(t, mirrorPage)
		store := newFakeStateStore()
		saver := &recordingSaver{}

		p := DefaultPipeline(newScraperClient(t), store, nil,
			WithPipelineInstances([]string{server.URL}),
			WithPipelineReportSaver(saver),
		)

		// First check: both replies are new, one is a question.
		first := newTestCheck(t)
		if err := p.Execute(context.Background(), first); err != nil {
			t.Fatalf("unexpected error on first run: %v", err)
		}
		if first.Report == nil {
			t.Fatal("expected a report")
		}
		if first.Report.TotalReplies != 2 {
			t.Errorf("expected total 2, got %d", first.Report.TotalReplies)
		}
		if first.Report.NewCount != 2 {
			t.Errorf("expected 2 new replies, got %d", first.Report.NewCount)
		}
		if first.Report.QuestionCount != 1 {
			t.Errorf("expected 1 question, got %d", first.Report.QuestionCount)
		}

		// Second check over the unchanged page reports nothing new.
		second := newTestCheck(t)
		if err := p.Execute(context.Background(), second); err != nil {
			t.Fatalf("unexpected error on second run: %v", err)
		}
		if second.Report.NewCount != 0 {
			t.Errorf("expected no new replies on the second run, got %d", second.Report.NewCount)
		}
		if second.Report.TotalReplies != 2 {
			t.Errorf("expected total 2 on the second run, got %d", second.Report.TotalReplies)
		}

		if len(saver.saved) != 2 {
			t.Errorf("expected 2 reports in history, got %d", len(saver.saved))
		}
	})
}
