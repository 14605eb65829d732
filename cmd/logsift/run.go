package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/logsift/logsift/internal/cli"
	"github.com/logsift/logsift/pkg/assemble"
	"github.com/logsift/logsift/pkg/classify"
	"github.com/logsift/logsift/pkg/config"
	"github.com/logsift/logsift/pkg/format"
	"github.com/logsift/logsift/pkg/ledger"
	"github.com/logsift/logsift/pkg/lifecycle"
	"github.com/logsift/logsift/pkg/pipeline"
	"github.com/logsift/logsift/pkg/sink"
	"github.com/logsift/logsift/pkg/storage/s3"
	"github.com/logsift/logsift/pkg/telemetry"
	"github.com/logsift/logsift/pkg/timestamp"
)

var (
	runWorkdir     string
	runLineFmts    string
	runStampFmts   string
	runWorkers     int
	runFetch       bool
	runSinkDriver  string
	runSinkPath    string
	runSinkTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass over the work directory",
	Long: `Run one ingestion pass: optionally fetch remote files into
unprocessed/, then assemble every file into structured records and move
it to processed/ or error/.

Examples:
  # Process everything currently in <workdir>/unprocessed
  logsift run --workdir /var/log/intake

  # Pull the configured manifest from object storage first
  logsift run --fetch

  # Persist records into DuckDB with four parallel workers
  logsift run --sink duckdb --sink-path logs.db --workers 4`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runWorkdir, "workdir", "", "work directory root (default from config)")
	runCmd.Flags().StringVar(&runLineFmts, "line-formats", "", "YAML file with line format patterns")
	runCmd.Flags().StringVar(&runStampFmts, "timestamp-formats", "", "YAML file with timestamp layouts")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "parallel files (0=config, 1=sequential)")
	runCmd.Flags().BoolVar(&runFetch, "fetch", false, "download the configured manifest before processing")
	runCmd.Flags().StringVar(&runSinkDriver, "sink", "", "record sink: counter, duckdb")
	runCmd.Flags().StringVar(&runSinkPath, "sink-path", "", "DuckDB database file")
	runCmd.Flags().DurationVar(&runSinkTimeout, "sink-timeout", 0, "per-file processing bound (0=none)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	mgr := config.NewManager()
	if err := mgr.Load(); err != nil {
		return err
	}
	cfg := mgr.Get()
	applyRunFlags(cfg)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			Endpoint:       cfg.Telemetry.Endpoint,
			ServiceName:    "logsift",
			ServiceVersion: version,
			InsecureTLS:    true,
			BatchTimeout:   5 * time.Second,
			ExportTimeout:  30 * time.Second,
			SamplingRatio:  1.0,
		})
		if err != nil {
			logger.Warn("telemetry init failed, continuing without traces", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				shutdown(sctx)
			}()
		}
	}

	catalog, err := format.LoadCatalog(cfg.Formats.LineFormats, cfg.Formats.TimestampFormats)
	if err != nil {
		return err
	}

	snk, closeSink, err := buildSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	assembler := assemble.New(classify.New(catalog), timestamp.NewResolver(catalog.Layouts()), logger)
	manager := lifecycle.NewManager(lifecycle.DefaultDirs(cfg.Workdir.Root), assembler, snk, logger)
	manager.SinkTimeout = cfg.Pipeline.SinkTimeout

	var fetcher pipeline.Fetcher
	if cfg.Storage.Bucket != "" {
		client, err := s3.NewClient(ctx, s3.Config{
			Region:           cfg.Storage.Region,
			Bucket:           cfg.Storage.Bucket,
			Endpoint:         cfg.Storage.Endpoint,
			UsePathStyle:     cfg.Storage.PathStyle,
			KeyPrefix:        cfg.Storage.KeyPrefix,
			AccessKeyID:      cfg.Storage.AccessKey,
			SecretAccessKey:  cfg.Storage.SecretKey,
			OperationTimeout: 30 * time.Second,
			TransferTimeout:  5 * time.Minute,
		}, logger)
		if err != nil {
			logger.Warn("object storage unavailable, processing local files only", "error", err)
		} else {
			fetcher = client
		}
	}

	var ldg ledger.Ledger
	if cfg.Ledger.Enabled {
		rcfg := ledger.DefaultRedisConfig(cfg.Ledger.Address)
		rcfg.Password = cfg.Ledger.Password
		rcfg.Database = cfg.Ledger.Database
		if cfg.Ledger.TTL > 0 {
			rcfg.TTL = cfg.Ledger.TTL
		}
		rl, err := ledger.NewRedisLedger(rcfg)
		if err != nil {
			logger.Warn("ledger unavailable, continuing without dedup", "error", err)
		} else {
			ldg = rl
			defer rl.Close()
		}
	}
	manager.Ledger = ldg

	opts := pipeline.Options{
		Workers:  cfg.Pipeline.Workers,
		Fetch:    cfg.Pipeline.Fetch,
		Manifest: cfg.Pipeline.Manifest,
	}

	// Progress only on an interactive terminal; the bar is sized once
	// the unprocessed snapshot is taken.
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar := cli.NewProgress(-1, "processing")
		opts.OnSnapshot = func(total int) {
			bar.ChangeMax(total)
		}
		opts.OnFile = func(name string, res lifecycle.Result) {
			bar.Add(1)
		}
	}

	p := pipeline.New(manager, fetcher, ldg, logger, opts)

	summary, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderSummary(summary))
	return nil
}

// applyRunFlags lets command-line flags override the merged config.
func applyRunFlags(cfg *config.Config) {
	if runWorkdir != "" {
		cfg.Workdir.Root = runWorkdir
	}
	if runLineFmts != "" {
		cfg.Formats.LineFormats = runLineFmts
	}
	if runStampFmts != "" {
		cfg.Formats.TimestampFormats = runStampFmts
	}
	if runWorkers > 0 {
		cfg.Pipeline.Workers = runWorkers
	}
	if runFetch {
		cfg.Pipeline.Fetch = true
	}
	if runSinkDriver != "" {
		cfg.Sink.Driver = runSinkDriver
	}
	if runSinkPath != "" {
		cfg.Sink.Path = runSinkPath
	}
	if runSinkTimeout > 0 {
		cfg.Pipeline.SinkTimeout = runSinkTimeout
	}
}

// buildSink constructs the configured record sink and a close func.
func buildSink(cfg *config.Config) (sink.Sink, func(), error) {
	switch cfg.Sink.Driver {
	case "", "counter":
		return sink.NewCounting(), func() {}, nil
	case "duckdb":
		db, err := sink.NewDuckDB(cfg.Sink.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink driver %q", cfg.Sink.Driver)
	}
}
