package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/replywatch/internal/browser"
	"github.com/nao1215/replywatch/internal/classify"
	"github.com/nao1215/replywatch/internal/config"
	"github.com/nao1215/replywatch/internal/differ"
	"github.com/nao1215/replywatch/internal/model"
	"github.com/nao1215/replywatch/internal/scraper"
)

// ErrNoMirrorInstances is returned when a fetch step has no mirror
// instances to fetch from.
var ErrNoMirrorInstances = errors.New("no mirror instances configured")

// maxConcurrentFetches bounds how many mirror instances are tried at
// once when racing the direct fetch.
const maxConcurrentFetches = 4

// errFetchDone stops the fetch race once one instance has delivered.
var errFetchDone = errors.New("fetch done")

// FetchStep obtains the current reply snapshot for the monitored
// tweet. It prefers the rendered-browser path and falls back to
// fetching a mirror page directly, racing the configured instances.
//
// Design decision: the rendered path goes first because mirror
// instances assemble reply lists with scripts and rate-limit plain
// HTTP clients; the direct fetch exists so a check still succeeds when
// no browser is running.
type FetchStep struct {
	// browser renders the page when configured. Nil disables the
	// rendered path entirely.
	browser *browser.Client

	// client fetches mirror pages directly for the fallback path.
	client *scraper.Client

	// instances lists mirror hosts in preference order. The rendered
	// path uses the first; the direct fallback races all of them.
	instances []string

	// logger for structured logging.
	logger *slog.Logger
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithFetchBrowser enables the rendered-browser path.
func WithFetchBrowser(b *browser.Client) FetchStepOption {
	return func(s *FetchStep) {
		s.browser = b
	}
}

// WithFetchInstances sets the mirror instances to fetch from.
func WithFetchInstances(instances []string) FetchStepOption {
	return func(s *FetchStep) {
		s.instances = instances
	}
}

// WithFetchLogger sets a custom logger for the fetch step.
func WithFetchLogger(logger *slog.Logger) FetchStepOption {
	return func(s *FetchStep) {
		s.logger = logger
	}
}

// NewFetchStep creates a new fetch step using the given mirror client.
func NewFetchStep(client *scraper.Client, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		client:    client,
		instances: []string{config.DefaultNitterInstance},
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch step. On success check.Snapshot holds the
// parsed replies and check.Instance the mirror that served them.
func (s *FetchStep) Do(ctx context.Context, check *model.Check) error {
	if len(s.instances) == 0 {
		return ErrNoMirrorInstances
	}

	if s.browser != nil {
		instance := s.instances[0]
		pageURL := check.Ref.MirrorURL(instance)

		snapshot, err := s.browser.FetchSnapshot(ctx, check.Ref, pageURL)
		if err == nil {
			check.Snapshot = scraper.NewSnapshotParser(check.Ref.Username()).Parse(snapshot)
			check.Instance = instance
			s.logger.Debug("fetched rendered snapshot",
				"tweet", check.Ref.String(),
				"instance", instance,
				"replies", len(check.Snapshot),
			)
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		s.logger.Warn("rendered fetch failed, trying direct mirror fetch",
			"tweet", check.Ref.String(),
			"instance", instance,
			"error", err,
		)
	}

	replies, instance, err := s.fetchDirect(ctx, check.Ref)
	if err != nil {
		return err
	}

	check.Snapshot = replies
	check.Instance = instance
	s.logger.Debug("fetched mirror page directly",
		"tweet", check.Ref.String(),
		"instance", instance,
		"replies", len(replies),
	)
	return nil
}

// fetchDirect races the configured mirror instances and returns the
// first successfully fetched and parsed reply list.
//
// Design decision: instances race rather than fail over in order
// because public mirrors go down and rate-limit unpredictably; waiting
// out a full timeout on each one in turn can stretch a check past the
// point of usefulness. The first success cancels the rest.
func (s *FetchStep) fetchDirect(ctx context.Context, ref model.TweetRef) (model.Snapshot, string, error) {
	parser := scraper.NewHTMLParser(ref.Username())

	type fetched struct {
		replies  model.Snapshot
		instance string
	}
	resultCh := make(chan fetched, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for _, instance := range s.instances {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			body, err := s.client.FetchStatusPage(gctx, ref.MirrorURL(instance))
			if err != nil {
				s.logger.Debug("mirror fetch failed",
					"instance", instance,
					"error", err,
				)
				return nil
			}

			replies, err := parser.Parse(bytes.NewReader(body))
			if err != nil {
				s.logger.Debug("mirror page unparseable",
					"instance", instance,
					"error", err,
				)
				return nil
			}

			select {
			case resultCh <- fetched{replies: replies, instance: instance}:
				return errFetchDone
			default:
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errFetchDone) {
		return nil, "", err
	}

	select {
	case result := <-resultCh:
		return result.replies, result.instance, nil
	default:
		return nil, "", fmt.Errorf("all %d mirror instances failed for %s", len(s.instances), ref.String())
	}
}

// DiffStep computes which replies are new relative to stored state and
// persists the snapshot as the new state.
type DiffStep struct {
	// differ performs the comparison and owns state persistence.
	differ *differ.Differ
}

// NewDiffStep creates a new diff step around the given differ.
func NewDiffStep(d *differ.Differ) *DiffStep {
	return &DiffStep{differ: d}
}

// Name returns the step name.
func (s *DiffStep) Name() string {
	return "diff"
}

// Do executes the diff step. The diff drops malformed replies, so
// check.Snapshot is replaced with the kept snapshot: later steps and
// the report must agree with what was persisted.
//
// A state save failure fails the whole check. Reporting replies whose
// state was not persisted would re-report them forever.
func (s *DiffStep) Do(ctx context.Context, check *model.Check) error {
	result, err := s.differ.Diff(ctx, check.Ref, check.Snapshot, check.CheckedAt)
	if result != nil {
		check.NewReplies = result.NewReplies
		check.FirstCheck = result.FirstCheck
		check.StateDegraded = result.StateDegraded
		check.SkippedReplies = result.SkippedReplies
		if result.State != nil {
			check.Snapshot = result.State.Replies
		}
	}
	return err
}

// ClassifyStep tags replies with the question heuristic.
type ClassifyStep struct {
	// classifier applies the question rules.
	classifier *classify.Classifier
}

// NewClassifyStep creates a new classify step.
func NewClassifyStep(classifier *classify.Classifier) *ClassifyStep {
	return &ClassifyStep{classifier: classifier}
}

// Name returns the step name.
func (s *ClassifyStep) Name() string {
	return "classify"
}

// Do executes the classify step. The full snapshot is classified for
// the report's question list; the new replies are classified for the
// per-reply flags.
func (s *ClassifyStep) Do(_ context.Context, check *model.Check) error {
	check.SnapshotClassified = s.classifier.ClassifyReplies(check.Snapshot)
	check.Classified = s.classifier.ClassifyReplies(check.NewReplies)
	return nil
}

// ReportSaver persists finished reports for later history queries.
// *database.MonitorDB satisfies it.
type ReportSaver interface {
	SaveReport(ctx context.Context, report *model.CheckReport) error
}

// ReportStep assembles the check report and optionally records it in
// the report history.
//
// Design decision: a history save failure does not fail the check. The
// monitor state was already persisted by the diff step and the report
// is handed to the caller either way; history is a convenience view.
type ReportStep struct {
	// saver records reports for the history command. Nil disables
	// history recording.
	saver ReportSaver

	// logger for structured logging.
	logger *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportSaver enables history recording through the given saver.
func WithReportSaver(saver ReportSaver) ReportStepOption {
	return func(s *ReportStep) {
		s.saver = saver
	}
}

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// NewReportStep creates a new report step.
func NewReportStep(opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do executes the report step.
func (s *ReportStep) Do(ctx context.Context, check *model.Check) error {
	check.Report = model.NewCheckReport(check.Ref, check.CheckedAt, check.SnapshotClassified, check.Classified)

	if s.saver != nil {
		if err := s.saver.SaveReport(ctx, check.Report); err != nil {
			s.logger.Warn("failed to record report history",
				"tweet", check.Ref.String(),
				"error", err,
			)
		}
	}

	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Browser enables the rendered-browser fetch path when non-nil.
	Browser *browser.Client

	// Instances lists mirror hosts in preference order.
	Instances []string

	// Classifier applies the question heuristic. Defaults to the
	// standard rule set.
	Classifier *classify.Classifier

	// Saver records report history when non-nil.
	Saver ReportSaver

	// Logger is handed to every step.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineBrowser enables the rendered-browser fetch path.
func WithPipelineBrowser(b *browser.Client) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Browser = b
	}
}

// WithPipelineInstances sets the mirror instances to fetch from.
func WithPipelineInstances(instances []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		if len(instances) > 0 {
			c.Instances = instances
		}
	}
}

// WithPipelineClassifier sets a custom question classifier.
func WithPipelineClassifier(classifier *classify.Classifier) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Classifier = classifier
	}
}

// WithPipelineReportSaver enables report history recording.
func WithPipelineReportSaver(saver ReportSaver) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Saver = saver
	}
}

// WithPipelineLogger sets the logger handed to every step.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates a pipeline with the standard steps in order:
// fetch, diff, classify, report.
//
// Design decision: We provide a default pipeline because:
// 1. Most callers want the whole chain
// 2. Reduces boilerplate in the CLI
// 3. Ensures consistent ordering
//
// The first variadic parameter accepts pipeline options (WithLogger).
// The second accepts config options (WithPipelineBrowser, etc).
func DefaultPipeline(client *scraper.Client, store differ.StateStore, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Instances:  []string{config.DefaultNitterInstance},
		Classifier: classify.New(),
		Logger:     slog.Default(),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	fetchOpts := []FetchStepOption{
		WithFetchInstances(cfg.Instances),
		WithFetchLogger(cfg.Logger),
	}
	if cfg.Browser != nil {
		fetchOpts = append(fetchOpts, WithFetchBrowser(cfg.Browser))
	}

	reportOpts := []ReportStepOption{
		WithReportLogger(cfg.Logger),
	}
	if cfg.Saver != nil {
		reportOpts = append(reportOpts, WithReportSaver(cfg.Saver))
	}

	p.AddSteps(
		NewFetchStep(client, fetchOpts...),
		NewDiffStep(differ.New(store, differ.WithLogger(cfg.Logger))),
		NewClassifyStep(cfg.Classifier),
		NewReportStep(reportOpts...),
	)

	return p
}
