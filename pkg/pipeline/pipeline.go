// Package pipeline orchestrates one ingestion pass over the work
// directory: ensure directories, optionally fetch remote files, then
// delegate each unprocessed file to the lifecycle manager.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/logsift/logsift/pkg/ledger"
	"github.com/logsift/logsift/pkg/lifecycle"
)

// Fetcher is the object-storage collaborator boundary. Download is the
// only operation the pipeline invokes; uploading is a separate concern.
type Fetcher interface {
	// DownloadFiles fetches the named objects into destDir.
	DownloadFiles(ctx context.Context, manifest []string, destDir string) error
}

// Counters are process-wide, append-only counters with a lifecycle of
// one pipeline run. Resetting is the caller's responsibility.
type Counters struct {
	RecordsInserted     atomic.Int64
	LinesRead           atomic.Int64
	UnparseableLines    atomic.Int64
	OrphanContinuations atomic.Int64
	TimestampFailures   atomic.Int64
	FilesProcessed      atomic.Int64
	FilesErrored        atomic.Int64
	FilesSkipped        atomic.Int64
}

// Summary is a plain snapshot of the counters for reporting.
type Summary struct {
	RunID               string
	RecordsInserted     int64
	LinesRead           int64
	UnparseableLines    int64
	OrphanContinuations int64
	TimestampFailures   int64
	FilesProcessed      int64
	FilesErrored        int64
	FilesSkipped        int64
	Elapsed             time.Duration
}

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() Summary {
	return Summary{
		RecordsInserted:     c.RecordsInserted.Load(),
		LinesRead:           c.LinesRead.Load(),
		UnparseableLines:    c.UnparseableLines.Load(),
		OrphanContinuations: c.OrphanContinuations.Load(),
		TimestampFailures:   c.TimestampFailures.Load(),
		FilesProcessed:      c.FilesProcessed.Load(),
		FilesErrored:        c.FilesErrored.Load(),
		FilesSkipped:        c.FilesSkipped.Load(),
	}
}

// Options configures one pipeline.
type Options struct {
	// Workers bounds cross-file parallelism. Values below 2 process
	// files sequentially.
	Workers int

	// Fetch pulls the manifest from the object-storage collaborator
	// into unprocessed before the pass. A nil Fetcher degrades to
	// local-only processing with a warning.
	Fetch    bool
	Manifest []string

	// OnSnapshot, when set, is called once per run with the number of
	// files in the unprocessed snapshot, before processing starts.
	OnSnapshot func(total int)

	// OnFile, when set, is called after each file reaches a terminal
	// state. Serialized by the pipeline.
	OnFile func(name string, res lifecycle.Result)
}

// Pipeline runs ingestion passes. Per-file state lives entirely inside
// the lifecycle manager's workers; the pipeline only shares the
// append-only counters and the ledger.
type Pipeline struct {
	manager *lifecycle.Manager
	fetcher Fetcher
	ledger  ledger.Ledger
	logger  *slog.Logger
	opts    Options
	runID   string

	counters Counters
	notifyMu sync.Mutex
}

// New creates a pipeline. fetcher and ldg may be nil. The pipeline only
// reads the ledger; marking and clearing happen inside the manager,
// which must share the same ledger instance.
func New(manager *lifecycle.Manager, fetcher Fetcher, ldg ledger.Ledger, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		manager: manager,
		fetcher: fetcher,
		ledger:  ldg,
		logger:  logger,
		opts:    opts,
		runID:   uuid.NewString(),
	}
}

// RunID returns the unique identifier of this pipeline instance.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Counters exposes the live counters.
func (p *Pipeline) Counters() *Counters {
	return &p.counters
}

// Run executes one pass: ensure directories, optional remote fetch,
// snapshot listing of unprocessed, one lifecycle delegation per file.
// No fault in one file aborts the run; only directory setup, listing
// and context cancellation do.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	tracer := otel.Tracer("logsift/pipeline")

	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run_id", p.runID)))
	defer span.End()

	dirs := p.manager.Dirs()
	if err := dirs.Ensure(); err != nil {
		return p.summary(start), err
	}

	if p.opts.Fetch {
		if p.fetcher == nil {
			p.logger.Warn("object storage not configured, skipping download")
		} else if err := p.fetcher.DownloadFiles(ctx, p.opts.Manifest, dirs.Unprocessed); err != nil {
			// Degrade to local-only processing rather than aborting.
			p.logger.Warn("remote fetch failed, processing local files only", "error", err)
		}
	}

	names, err := snapshotFiles(dirs.Unprocessed)
	if err != nil {
		return p.summary(start), err
	}
	p.logger.Info("ingestion pass starting",
		"run_id", p.runID, "files", len(names), "workers", p.workerCount())
	if p.opts.OnSnapshot != nil {
		p.opts.OnSnapshot(len(names))
	}

	if err := p.processAll(ctx, tracer, names); err != nil {
		return p.summary(start), err
	}

	s := p.summary(start)
	p.logger.Info("ingestion pass complete",
		"run_id", p.runID,
		"records", s.RecordsInserted,
		"processed", s.FilesProcessed,
		"errored", s.FilesErrored,
		"skipped", s.FilesSkipped,
		"elapsed", s.Elapsed)
	return s, nil
}

func (p *Pipeline) processAll(ctx context.Context, tracer trace.Tracer, names []string) error {
	workers := p.workerCount()
	if workers <= 1 {
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.processOne(ctx, tracer, name)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.processOne(gctx, tracer, name)
			return nil
		})
	}
	return g.Wait()
}

// processOne takes one file to a terminal state and accumulates its
// stats. File faults are absorbed here; only the counters and log
// output surface them.
func (p *Pipeline) processOne(ctx context.Context, tracer trace.Tracer, name string) {
	ctx, span := tracer.Start(ctx, "pipeline.file",
		trace.WithAttributes(attribute.String("file", name)))
	defer span.End()

	if p.ledger != nil {
		seen, err := p.ledger.Seen(ctx, name)
		if err != nil {
			p.logger.Warn("ledger lookup failed", "file", name, "error", err)
		} else if seen {
			// The sink already holds this file's records from a pass
			// that crashed or failed between flush and move. Complete
			// the move without re-inserting.
			p.logger.Info("file already accepted by sink, completing move", "file", name)
			res := p.manager.Finalize(ctx, name)
			p.counters.FilesSkipped.Add(1)
			p.notify(name, res)
			return
		}
	}

	res := p.manager.Process(ctx, name)

	p.counters.LinesRead.Add(res.Stats.Lines)
	p.counters.RecordsInserted.Add(res.Stats.Records)
	p.counters.UnparseableLines.Add(res.Stats.Unparseable)
	p.counters.OrphanContinuations.Add(res.Stats.OrphanedContinued)
	p.counters.TimestampFailures.Add(res.Stats.TimestampMisses)

	switch res.Outcome {
	case lifecycle.OutcomeProcessed:
		p.counters.FilesProcessed.Add(1)
	case lifecycle.OutcomeErrored:
		p.counters.FilesErrored.Add(1)
		span.RecordError(res.Err)
	}

	p.notify(name, res)
}

func (p *Pipeline) notify(name string, res lifecycle.Result) {
	if p.opts.OnFile == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.opts.OnFile(name, res)
}

func (p *Pipeline) workerCount() int {
	if p.opts.Workers < 1 {
		return 1
	}
	return p.opts.Workers
}

func (p *Pipeline) summary(start time.Time) Summary {
	s := p.counters.Snapshot()
	s.RunID = p.runID
	s.Elapsed = time.Since(start)
	return s
}

// snapshotFiles lists the regular files currently in dir. The listing
// is a one-shot snapshot; files added mid-run wait for the next pass.
func snapshotFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: listing %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
