package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/JOSM/changeset-viewer/internal/adapters/geojson"
	"github.com/JOSM/changeset-viewer/internal/adiff"
	"github.com/JOSM/changeset-viewer/internal/bootstrap"
	"github.com/JOSM/changeset-viewer/internal/core/domain"
	"github.com/JOSM/changeset-viewer/internal/core/usecases"
	"github.com/JOSM/changeset-viewer/internal/pkg/config"
	"github.com/JOSM/changeset-viewer/internal/pkg/logging"
)

type Options struct {
	Platform    string `short:"p" long:"platform"     env:"ADIFF_PLATFORM"  description:"Platform name (default from config)"`
	Output      string `short:"o" long:"output"       env:"ADIFF_OUTPUT"    description:"Output file, - for stdout" default:"-"`
	Format      string `short:"f" long:"format"       env:"ADIFF_FORMAT"    description:"Output format" choice:"geojson" choice:"summary" default:"geojson"`
	File        string `long:"file"                   description:"Parse a local diff file instead of downloading"`
	InputFormat string `long:"input-format"           description:"Format of --file" choice:"xml" choice:"json" default:"xml"`
	NoCache     bool   `long:"no-cache"               env:"ADIFF_NO_CACHE"  description:"Bypass the diff cache"`
	LogLevel    string `short:"l" long:"log-level"    env:"ADIFF_LOG_LEVEL" description:"Log level" default:"warn"`

	Args struct {
		ID string `positional-arg-name:"CHANGESET" description:"Changeset id (ignored with --file)"`
	} `positional-args:"yes"`
}

// exitEmpty signals an empty but successful result.
const exitEmpty = 2

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code. Deferred
// cleanups finish before main exits.
func run(args []string, stdout, stderr io.Writer) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}

	// stdout carries the result
	logging.SetupWriter(stderr, opts.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, bd, err := load(ctx, opts)
	if err != nil {
		fmt.Fprintf(stderr, "adiff: %v\n", err)
		return 1
	}
	if bd.Empty() {
		fmt.Fprintf(stderr, "adiff: changeset %d has not been processed yet or has no drawable changes\n", summary.ChangesetID)
		return exitEmpty
	}

	if err := write(opts, stdout, summary, bd); err != nil {
		fmt.Fprintf(stderr, "adiff: %v\n", err)
		return 1
	}
	return 0
}

func load(ctx context.Context, opts Options) (domain.LoadSummary, domain.BoundedDataset, error) {
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return domain.LoadSummary{}, domain.BoundedDataset{}, err
		}
		format := domain.DiffFormat(opts.InputFormat)
		bd, err := adiff.Parse(format, data)
		if err != nil {
			return domain.LoadSummary{}, domain.BoundedDataset{}, err
		}
		return domain.Summarize("", 0, "", format, bd), bd, nil
	}

	id, err := strconv.ParseInt(opts.Args.ID, 10, 64)
	if err != nil || id <= 0 {
		return domain.LoadSummary{}, domain.BoundedDataset{}, errors.New("a positive changeset id is required")
	}

	cfg, err := config.Load("changeset-viewer-adiff")
	if err != nil {
		return domain.LoadSummary{}, domain.BoundedDataset{}, fmt.Errorf("load config: %w", err)
	}
	platform, err := cfg.Platform(opts.Platform)
	if err != nil {
		return domain.LoadSummary{}, domain.BoundedDataset{}, err
	}

	svc := bootstrap.New(cfg, bootstrap.Options{NoCache: opts.NoCache, NoEvents: true})
	defer svc.Close()

	loader := usecases.NewLoader(svc.Acquisition)
	defer loader.Close()

	slog.Info("acquiring changeset", "platform", platform.Name, "changeset", id)
	acq, err := loader.Load(ctx, platform, id).Wait(ctx)
	if err != nil {
		return domain.LoadSummary{}, domain.BoundedDataset{}, err
	}
	slog.Info("acquired changeset", "source", acq.Source, "primitives", acq.Dataset.Len())
	return acq.Summary(), acq.BoundedDataset, nil
}

func write(opts Options, stdout io.Writer, summary domain.LoadSummary, bd domain.BoundedDataset) (err error) {
	out := stdout
	if opts.Output != "-" {
		f, ferr := os.Create(opts.Output)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if opts.Format == "summary" {
		return enc.Encode(summary)
	}
	return enc.Encode(geojson.Encode(bd))
}
