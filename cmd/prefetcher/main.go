package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/JOSM/changeset-viewer/internal/bootstrap"
	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/pkg/config"
	"github.com/JOSM/changeset-viewer/internal/pkg/logging"
	"github.com/JOSM/changeset-viewer/internal/workflows"
)

type Options struct {
	Start    string `long:"start"    env:"PREFETCH_BBOX"     description:"Start one prefetch of min_lon,min_lat,max_lon,max_lat and exit"`
	Platform string `long:"platform" env:"PREFETCH_PLATFORM" description:"Platform to prefetch (default from config)"`
	User     string `long:"user"     env:"PREFETCH_USER"     description:"Only changesets by this display name"`
	Limit    int    `long:"limit"    env:"PREFETCH_LIMIT"    description:"Changesets to warm" default:"50"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load("changeset-viewer-prefetcher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if opts.Start != "" {
		if err := start(c, cfg, opts); err != nil {
			log.Fatalf("start prefetch: %v", err)
		}
		return
	}

	// Diffs are warmed into the cache; events stay off so prefetches do not
	// show up as viewer loads.
	svc := bootstrap.New(cfg, bootstrap.Options{NoEvents: true})
	defer svc.Close()
	if svc.Cache == nil {
		slog.Warn("no diff cache configured, prefetching has no lasting effect")
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.PrefetchWorkflow)
	activities := &workflows.PrefetchActivities{
		Platforms:   cfg,
		Listing:     svc.Listing,
		Acquisition: svc.Acquisition,
	}
	if svc.Cache != nil {
		activities.Cache = svc.Cache
	}
	w.RegisterActivity(activities)

	slog.Info("prefetch worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// start triggers one workflow run and waits for its result.
func start(c client.Client, cfg *config.Config, opts Options) error {
	bounds, err := domain.ParseAPIBounds(opts.Start)
	if err != nil {
		return err
	}
	platform, err := cfg.Platform(opts.Platform)
	if err != nil {
		return err
	}

	input := workflows.PrefetchInput{
		Platform: platform.Name,
		Bounds:   bounds,
		User:     opts.User,
		Limit:    opts.Limit,
	}
	run, err := c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
		ID:        fmt.Sprintf("prefetch-%s-%s", platform.Name, bounds.APIString()),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.PrefetchWorkflow, input)
	if err != nil {
		return err
	}
	slog.Info("prefetch started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res workflows.PrefetchResult
	if err := run.Get(context.Background(), &res); err != nil {
		return err
	}
	slog.Info("prefetch done", "listed", res.Listed, "warmed", res.Warmed, "evicted", len(res.Evicted), "failed", len(res.Failed))
	return nil
}
