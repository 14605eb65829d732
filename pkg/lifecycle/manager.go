// Package lifecycle moves files between the unprocessed, processed and
// error work directories and provides the per-file fault boundary.
//
// A file is exclusively owned by its worker for the duration of
// processing; terminal states are directories, so the state is durable
// and externally observable. Moves are not atomic across crashes: a
// crash before the move leaves the file in unprocessed and it is safely
// re-processed on restart.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/logsift/logsift/pkg/assemble"
	"github.com/logsift/logsift/pkg/ledger"
	"github.com/logsift/logsift/pkg/sink"
)

// Outcome is the terminal state of one file.
type Outcome uint8

const (
	// OutcomeProcessed means the file was fully assembled and moved to
	// the processed directory.
	OutcomeProcessed Outcome = iota

	// OutcomeErrored means a read or sink fault occurred and the file
	// was quarantined to the error directory.
	OutcomeErrored
)

// String returns the outcome name.
func (o Outcome) String() string {
	if o == OutcomeProcessed {
		return "processed"
	}
	return "errored"
}

// Result reports what happened to one file.
type Result struct {
	Outcome Outcome
	Stats   assemble.Stats

	// Err is the fault that quarantined the file, nil on success.
	Err error
}

// Dirs names the three work directories under a common root.
type Dirs struct {
	Unprocessed string
	Processed   string
	Error       string
}

// DefaultDirs returns the conventional layout under root.
func DefaultDirs(root string) Dirs {
	return Dirs{
		Unprocessed: filepath.Join(root, "unprocessed"),
		Processed:   filepath.Join(root, "processed"),
		Error:       filepath.Join(root, "error"),
	}
}

// Ensure creates the three directories if missing.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Unprocessed, d.Processed, d.Error} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("lifecycle: creating %s: %w", dir, err)
		}
	}
	return nil
}

// Manager runs the read-classify-assemble-flush sequence for one file
// at a time inside a failure boundary.
type Manager struct {
	dirs      Dirs
	assembler *assemble.Assembler
	snk       sink.Sink
	logger    *slog.Logger

	// SinkTimeout bounds the whole per-file pass, covering sink calls.
	// Zero disables the bound.
	SinkTimeout time.Duration

	// Ledger, when set, is marked after the sink accepts a file's last
	// record and cleared once the file reaches its terminal directory.
	// A file still marked on re-encounter is finalized without touching
	// the sink.
	Ledger ledger.Ledger
}

// NewManager creates a manager. The sink must not fail for structurally
// valid records; any error it returns is treated as a file fault.
func NewManager(dirs Dirs, assembler *assemble.Assembler, snk sink.Sink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dirs:      dirs,
		assembler: assembler,
		snk:       snk,
		logger:    logger,
	}
}

// Dirs returns the work directories.
func (m *Manager) Dirs() Dirs {
	return m.dirs
}

// Process handles one file from the unprocessed directory, named by its
// base name. On success the file moves to processed; on any fault it
// moves to error and the fault is returned in the result. Records
// already flushed before a fault are not rolled back.
func (m *Manager) Process(ctx context.Context, name string) Result {
	if m.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.SinkTimeout)
		defer cancel()
	}

	src := filepath.Join(m.dirs.Unprocessed, name)

	stats, err := m.consumeFile(ctx, name, src)
	if err != nil {
		m.logger.Error("file processing failed", "file", name, "error", err)
		if moveErr := moveFile(src, filepath.Join(m.dirs.Error, name)); moveErr != nil {
			m.logger.Error("quarantine move failed", "file", name, "error", moveErr)
		}
		return Result{Outcome: OutcomeErrored, Stats: stats, Err: err}
	}

	// The sink now holds every record of this file. Mark it before the
	// move so a crash or move failure in between finalizes on the next
	// pass instead of re-inserting.
	if m.Ledger != nil {
		if err := m.Ledger.Mark(ctx, name); err != nil {
			m.logger.Warn("ledger mark failed", "file", name, "error", err)
		}
	}

	if err := moveFile(src, filepath.Join(m.dirs.Processed, name)); err != nil {
		m.logger.Error("processed move failed", "file", name, "error", err)
		// The mark stays: the records are in the sink, so the next pass
		// must complete the move without re-reading.
		return Result{Outcome: OutcomeErrored, Stats: stats, Err: err}
	}
	m.clearMark(ctx, name)

	m.logger.Info("file processed", "file", name,
		"records", stats.Records, "lines", stats.Lines)
	return Result{Outcome: OutcomeProcessed, Stats: stats}
}

// Finalize moves a file to processed without reading it and clears its
// ledger mark. Used when the ledger says the sink already holds the
// file's records from a pass that crashed or failed between flush and
// move.
func (m *Manager) Finalize(ctx context.Context, name string) Result {
	src := filepath.Join(m.dirs.Unprocessed, name)
	if err := moveFile(src, filepath.Join(m.dirs.Processed, name)); err != nil {
		m.logger.Error("processed move failed", "file", name, "error", err)
		return Result{Outcome: OutcomeErrored, Err: err}
	}
	m.clearMark(ctx, name)
	return Result{Outcome: OutcomeProcessed}
}

// clearMark removes the ledger mark after a completed move. A stale
// mark would make a future file reusing this name skip the sink, so a
// clear failure is loud.
func (m *Manager) clearMark(ctx context.Context, name string) {
	if m.Ledger == nil {
		return
	}
	if err := m.Ledger.Clear(ctx, name); err != nil {
		m.logger.Error("ledger clear failed, a future file with this name may be skipped",
			"file", name, "error", err)
	}
}

func (m *Manager) consumeFile(ctx context.Context, name, path string) (assemble.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return assemble.Stats{}, fmt.Errorf("lifecycle: opening %s: %w", name, err)
	}
	defer f.Close()

	return m.assembler.Consume(ctx, name, f, m.snk)
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst, preserving the source's permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("lifecycle: opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("lifecycle: stating %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("lifecycle: creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("lifecycle: copying to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("lifecycle: closing %s: %w", dst, err)
	}
	return nil
}
