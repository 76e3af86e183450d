package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/screwyprof/beaconincome/cmd/beaconincome/config"
	"github.com/screwyprof/beaconincome/collector"
	"github.com/screwyprof/beaconincome/collector/store/filestore"
	"github.com/screwyprof/beaconincome/pkg/beaconchain"
	"github.com/screwyprof/beaconincome/pkg/logger"
	"github.com/screwyprof/beaconincome/pkg/ratelimit"
	"github.com/screwyprof/beaconincome/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	// Prepare context with signal handling
	ctx, stop := interruptContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// HTTP client & beaconchain client
	httpClient := &http.Client{
		Timeout:   cfg.HttpClientTimeout,
		Transport: logger.NewTransport(log, nil),
	}
	client := beaconchain.NewClient(httpClient, cfg.APIURL, cfg.APIKey)

	opts := []collector.Option{
		collector.WithPacer(ratelimit.New(cfg.LimiterConfig())),
	}
	if cfg.Checkpoint != "" {
		opts = append(opts, collector.WithStore(filestore.New(cfg.Checkpoint)))
	}

	engineCfg := cfg.EngineConfig()
	engine := collector.NewEngine(
		engineCfg,
		collector.NewPageFetcher(client, engineCfg.Duration, engineCfg.PerPage),
		client,
		opts...,
	)

	log.InfoContext(ctx, "Starting income collection",
		slog.String("duration", engineCfg.Duration.String()),
		slog.String("mode", engineCfg.Mode.String()),
		slog.Int("perPage", engineCfg.PerPage),
		slog.String("checkpoint", cfg.Checkpoint),
	)
	events, result := engine.Start(ctx)

	// Subscribe to events for logging
	subCloser := setupEventLogging(ctx, events, log)
	subCloser()
	res := <-result

	if err := writeResult(cfg, res); err != nil {
		log.ErrorContext(ctx, "Failed to write result", slog.Any("error", err))
		return 1
	}

	if res.Reason == collector.Failed {
		return 1
	}
	return 0
}

// writeResult prints or saves the summary and the optional raw dump
func writeResult(cfg config.Config, res collector.Result) error {
	if cfg.Dump != "" {
		if err := report.SaveSamples(cfg.Dump, res.Samples); err != nil {
			return err
		}
		slog.Info("Raw samples saved", slog.String("path", cfg.Dump), slog.Int("samples", len(res.Samples)))
	}

	if cfg.Output == "" {
		return report.Write(os.Stdout, cfg.ReportFormat(), res)
	}
	if err := report.SaveFile(cfg.Output, cfg.ReportFormat(), res); err != nil {
		return err
	}
	fmt.Printf("Results saved to %s\n", cfg.Output)
	return nil
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan collector.Event, log *slog.Logger) func() {
	return collector.NewSubscriber(events,
		collector.OnRunStarted(func(event collector.RunStarted) {
			log.InfoContext(ctx, "Collection started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.String("mode", event.Effective.String()),
				slog.Int64("population", event.Population),
				slog.Int("units", event.Units),
				slog.Bool("resumed", event.Resumed),
			)
			if event.Effective != event.Mode {
				log.WarnContext(ctx, "Sample covers the whole population, sweeping all pages instead",
					slog.String("requested", event.Mode.String()),
				)
			}
		}),
		collector.OnUnitCompleted(func(event collector.UnitCompleted) {
			log.InfoContext(ctx, "Unit processed",
				slog.String("unit", event.Unit.String()),
				slog.Int("records", event.Records),
				slog.Int("folded", event.Folded),
				slog.Int("processed", event.Processed),
				slog.Int("remaining", event.Remaining),
			)
		}),
		collector.OnUnitRetrying(func(event collector.UnitRetrying) {
			log.WarnContext(ctx, "Unit will be retried",
				slog.String("unit", event.Unit.String()),
				slog.Int("attempt", event.Attempt),
				slog.Duration("backoff", event.Delay),
				slog.Any("error", event.Err),
			)
		}),
		collector.OnUnitSkipped(func(event collector.UnitSkipped) {
			log.ErrorContext(ctx, "Unit skipped",
				slog.String("unit", event.Unit.String()),
				slog.Bool("retriesExhausted", event.Exhausted),
				slog.Any("error", event.Err),
			)
		}),
		collector.OnSweepEnded(func(event collector.SweepEnded) {
			log.InfoContext(ctx, "Leaderboard exhausted, ending sweep",
				slog.Uint64("page", event.Page),
				slog.Int("dropped", event.Dropped),
			)
		}),
		collector.OnCheckpointSaved(func(event collector.CheckpointSaved) {
			log.DebugContext(ctx, "Checkpoint saved",
				slog.Int("processed", event.Processed),
				slog.Int("remaining", event.Remaining),
			)
		}),
		collector.OnCheckpointError(func(event collector.CheckpointError) {
			log.ErrorContext(ctx, "Checkpoint failed", slog.Any("error", event.Err))
		}),
		collector.OnRunFinished(func(event collector.RunFinished) {
			res := event.Result
			attrs := []any{
				slog.String("reason", res.Reason.String()),
				slog.Int64("validators", res.Summary.Count),
				slog.Int("processed", res.Processed),
				slog.Int("remaining", res.Remaining),
				slog.Int("skipped", res.Skipped),
				slog.Int("exhausted", res.Exhausted),
				slog.Duration("elapsed", res.Elapsed),
			}
			switch res.Reason {
			case collector.Failed:
				log.ErrorContext(ctx, "Collection failed", append(attrs, slog.Any("error", res.Err))...)
			case collector.Interrupted:
				log.InfoContext(ctx, "Interrupted by user, returning partial results", attrs...)
			default:
				log.InfoContext(ctx, "Collection completed", attrs...)
			}
		}),
	)
}

// interruptContext is cancelled by the first of the given signals. The
// handler is released right after, so a second signal gets the default
// behaviour and kills a run stuck in shutdown.
func interruptContext(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, signals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
