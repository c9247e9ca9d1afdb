package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/nao1215/replywatch/internal/browser"
	"github.com/nao1215/replywatch/internal/classify"
	"github.com/nao1215/replywatch/internal/config"
	"github.com/nao1215/replywatch/internal/database"
	"github.com/nao1215/replywatch/internal/log"
	"github.com/nao1215/replywatch/internal/model"
	"github.com/nao1215/replywatch/internal/pipeline"
	"github.com/nao1215/replywatch/internal/report"
	"github.com/nao1215/replywatch/internal/scraper"
	"github.com/nao1215/replywatch/internal/update"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a tweet's replies for new activity and open questions",
		Long: `Check fetches the current reply thread of a tweet through a Nitter
mirror, compares it against the state recorded by earlier checks, and
reports which replies are new and which read as technical questions.

The first check of a tweet reports every reply as new. State lives in a
local SQLite database, so later checks only surface what changed.

Examples:
  # Check a tweet once and print a terminal summary
  replywatch check --url https://x.com/golang/status/1234567890

  # Keep checking every five minutes until interrupted
  replywatch check --url https://x.com/golang/status/1234567890 --watch --interval 5m

  # Write a Markdown report to a file
  replywatch check --url https://x.com/golang/status/1234567890 --format markdown --output report.md

  # Use a custom configuration file
  replywatch check -c myconfig.yml

Configuration file (.replywatch.yml) example:
  tweet_url: https://x.com/golang/status/1234567890
  nitter_instances:
    - nitter.net
    - nitter.poast.org
  watch_interval: 5m
  format: markdown`,
		RunE: runCheckCmd,
	}

	// Target and cadence flags
	cmd.Flags().StringP("url", "u", "",
		"X/Twitter status URL to check (required unless set in the config file)")
	cmd.Flags().BoolP("watch", "w", false,
		"Repeat the check on an interval until interrupted")
	cmd.Flags().DurationP("interval", "i", config.DefaultWatchInterval,
		"Delay between checks in watch mode")

	// Fetch flags
	cmd.Flags().StringSliceP("nitter", "n", []string{config.DefaultNitterInstance},
		"Nitter mirror instance(s) in preference order (repeatable)")
	cmd.Flags().Int("camofox-port", config.DefaultCamofoxPort,
		"Port of the Camofox browser control API")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address for direct mirror fetches (e.g., 127.0.0.1:9050)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .replywatch.yml in current or home directory)")

	// Report flags
	cmd.Flags().StringP("format", "f", config.FormatSimple,
		"Report format: simple, json or markdown")
	cmd.Flags().BoolP("pretty", "p", false,
		"Indent JSON output for human reading")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Storage
	cmd.Flags().String("db-dir", "",
		"Directory for the monitor database (default: XDG data directory)")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	// Build config from the config file and flags
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	verbose := cfg.Verbose || getVerboseFlag(cmd)
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	// Day-cached release lookup. Failures and up-to-date runs print
	// nothing.
	if cfg.UpdateCheck && os.Getenv("REPLYWATCH_NO_UPDATE_CHECK") == "" {
		update.NewChecker("nao1215/replywatch", getVersion()).Notify(ctx)
	}

	return runCheck(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the config file and cobra flags.
// Precedence is flag over file over default: the config file is loaded
// over the defaults first, then flags the user actually set override it.
// An untouched flag carries the default value, so applying it blindly
// would silently undo a config file setting.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults if no file found.
	explicitConfigPath := configPath != ""
	foundPath := config.FindConfigFile(configPath)

	var cfg *config.Config
	switch {
	case foundPath != "":
		cfg, err = config.LoadConfigFile(foundPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", foundPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	default:
		cfg = config.NewConfig()
	}

	if cmd.Flags().Changed("url") {
		if cfg.TweetURL, err = cmd.Flags().GetString("url"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("watch") {
		if cfg.Watch, err = cmd.Flags().GetBool("watch"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("interval") {
		if cfg.WatchInterval, err = cmd.Flags().GetDuration("interval"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("nitter") {
		if cfg.NitterInstances, err = cmd.Flags().GetStringSlice("nitter"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("camofox-port") {
		if cfg.CamofoxPort, err = cmd.Flags().GetInt("camofox-port"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("proxy") {
		if cfg.ProxyAddress, err = cmd.Flags().GetString("proxy"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("format") {
		if cfg.Format, err = cmd.Flags().GetString("format"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("pretty") {
		if cfg.Pretty, err = cmd.Flags().GetBool("pretty"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("output") {
		if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("db-dir") {
		if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// Every record passes through the masking handler, so header values,
// session keys, and sensitive URL query parameters never reach the
// terminal.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewMaskingLogger(os.Stderr, verbose)
}

// runCheck executes the check, once or on a watch schedule.
func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ref, err := model.ParseTweetURL(cfg.TweetURL)
	if err != nil {
		return fmt.Errorf("invalid tweet URL %q: %w", cfg.TweetURL, err)
	}

	logger.Info("starting reply check",
		"tweet", ref.String(),
		"instances", cfg.NitterInstances,
		"watch", cfg.Watch,
	)

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "dir", cfg.DBDir)

	pipe, err := buildPipeline(cfg, db, logger)
	if err != nil {
		return err
	}

	if cfg.Watch {
		return runWatch(ctx, cfg, pipe, ref, logger)
	}
	return runSingleCheck(ctx, cfg, pipe, ref, logger)
}

// buildPipeline wires the fetch, diff, classify, and report steps from
// the configuration. The database serves as both the monitor state
// store and the report history sink.
func buildPipeline(cfg *config.Config, db *database.MonitorDB, logger *slog.Logger) (*pipeline.Pipeline, error) {
	clientOpts := []scraper.ClientOption{
		scraper.WithFetchTimeout(cfg.FetchTimeout),
	}
	if cfg.ProxyAddress != "" {
		clientOpts = append(clientOpts, scraper.WithProxyAddress(cfg.ProxyAddress))
	}
	if cfg.UserAgent != "" {
		clientOpts = append(clientOpts, scraper.WithUserAgent(cfg.UserAgent))
	}
	if cfg.MaxBodySize > 0 {
		clientOpts = append(clientOpts, scraper.WithMaxBodySize(cfg.MaxBodySize))
	}

	client, err := scraper.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror client: %w", err)
	}

	browserClient := browser.NewClient(cfg.CamofoxHost, cfg.CamofoxPort,
		browser.WithRenderWait(cfg.RenderWait),
		browser.WithLogger(logger),
	)

	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineBrowser(browserClient),
		pipeline.WithPipelineInstances(cfg.NitterInstances),
		pipeline.WithPipelineClassifier(buildClassifier(cfg)),
		pipeline.WithPipelineReportSaver(db),
		pipeline.WithPipelineLogger(logger),
	}

	return pipeline.DefaultPipeline(client, db,
		[]pipeline.Option{pipeline.WithLogger(logger)}, configOpts...), nil
}

// buildClassifier creates the question classifier from the config.
// Nil word lists keep the built-in sets; explicit empty lists disable
// the corresponding rule.
func buildClassifier(cfg *config.Config) *classify.Classifier {
	var opts []classify.Option
	if cfg.Interrogatives != nil {
		opts = append(opts, classify.WithInterrogatives(cfg.Interrogatives))
	}
	if cfg.TriggerTokens != nil {
		opts = append(opts, classify.WithTriggerTokens(cfg.TriggerTokens))
	}
	if cfg.ShortTextLimit > 0 {
		opts = append(opts, classify.WithShortTextLimit(cfg.ShortTextLimit))
	}
	return classify.New(opts...)
}

// runSingleCheck executes one check run and writes the report.
func runSingleCheck(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, ref model.TweetRef, logger *slog.Logger) error {
	check := model.NewCheck(ref, time.Now().UTC())

	start := time.Now()
	if err := pipe.Execute(ctx, check); err != nil {
		return fmt.Errorf("check failed for %s: %w", ref.String(), err)
	}

	logger.Info("check completed",
		"tweet", ref.String(),
		"durationMs", time.Since(start).Milliseconds(),
		"replies", check.Report.TotalReplies,
		"new", check.Report.NewCount,
		"questions", check.Report.QuestionCount,
	)

	if check.StateDegraded {
		fmt.Fprintln(os.Stderr, "Warning: stored state was unreadable; every reply is reported as new.")
	}

	return outputReport(cfg, check.Report)
}

// runWatch repeats the check on the configured interval until the
// context is cancelled. One check runs immediately so watch mode gives
// feedback before the first interval elapses.
//
// A failed check does not stop the watch; public mirrors come and go.
func runWatch(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, ref model.TweetRef, logger *slog.Logger) error {
	fmt.Fprintf(os.Stderr, "Watching %s (every %s, press Ctrl+C to stop)\n",
		ref.URL(), cfg.WatchInterval)

	if err := runSingleCheck(ctx, cfg, pipe, ref, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Check error for %s: %v\n", ref.String(), err)
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.WatchInterval), func() {
		if err := runSingleCheck(ctx, cfg, pipe, ref, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Check error for %s: %v\n", ref.String(), err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule watch: %w", err)
	}

	scheduler.Start()
	<-ctx.Done()

	// Stop schedules no further checks; the returned context completes
	// once a check already in flight has finished.
	<-scheduler.Stop().Done()

	logger.Info("watch stopped", "tweet", ref.String())
	return nil
}

// outputReport writes the check report in the requested format.
func outputReport(cfg *config.Config, checkReport *model.CheckReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file. In watch mode the file always
		// holds the latest report.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch cfg.Format {
	case config.FormatJSON:
		var jsonOpts []report.JSONWriterOption
		if cfg.Pretty {
			jsonOpts = append(jsonOpts, report.WithPrettyPrint())
		}
		writer = report.NewJSONWriter(output, jsonOpts...)
	case config.FormatMarkdown:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	_, err := writer.Write(checkReport)
	return err
}
