package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/logsift/logsift/internal/model"
	"github.com/logsift/logsift/pkg/assemble"
	"github.com/logsift/logsift/pkg/classify"
	"github.com/logsift/logsift/pkg/format"
	"github.com/logsift/logsift/pkg/ledger"
	"github.com/logsift/logsift/pkg/sink"
	"github.com/logsift/logsift/pkg/timestamp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, snk sink.Sink) (*Manager, Dirs) {
	t.Helper()

	dirs := DefaultDirs(t.TempDir())
	if err := dirs.Ensure(); err != nil {
		t.Fatal(err)
	}

	catalog := format.Default()
	assembler := assemble.New(
		classify.New(catalog),
		timestamp.NewResolver(catalog.Layouts()),
		testLogger(),
	)

	return NewManager(dirs, assembler, snk, testLogger()), dirs
}

func writeUnprocessed(t *testing.T, dirs Dirs, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dirs.Unprocessed, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestProcessMovesToProcessed(t *testing.T) {
	snk := sink.NewCounting()
	m, dirs := newTestManager(t, snk)

	writeUnprocessed(t, dirs, "app.log", "2024-06-15 10:00:00 INFO hello\n")

	res := m.Process(context.Background(), "app.log")
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s, err = %v", res.Outcome, res.Err)
	}
	if res.Stats.Records != 1 {
		t.Errorf("records = %d, want 1", res.Stats.Records)
	}

	if exists(filepath.Join(dirs.Unprocessed, "app.log")) {
		t.Error("file still in unprocessed")
	}
	if !exists(filepath.Join(dirs.Processed, "app.log")) {
		t.Error("file not in processed")
	}
	if exists(filepath.Join(dirs.Error, "app.log")) {
		t.Error("file also in error")
	}
	if snk.Count() != 1 {
		t.Errorf("sink count = %d", snk.Count())
	}
}

func TestProcessQuarantinesOnSinkFault(t *testing.T) {
	sinkErr := errors.New("sink down")
	failing := sink.Func(func(ctx context.Context, rec *model.Record) error {
		return sinkErr
	})
	m, dirs := newTestManager(t, failing)

	writeUnprocessed(t, dirs, "bad.log", "2024-06-15 10:00:00 INFO hello\n")

	res := m.Process(context.Background(), "bad.log")
	if res.Outcome != OutcomeErrored {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if !errors.Is(res.Err, sinkErr) {
		t.Errorf("err = %v", res.Err)
	}

	if !exists(filepath.Join(dirs.Error, "bad.log")) {
		t.Error("file not quarantined")
	}
	if exists(filepath.Join(dirs.Unprocessed, "bad.log")) {
		t.Error("file still in unprocessed")
	}
	if exists(filepath.Join(dirs.Processed, "bad.log")) {
		t.Error("file in processed despite fault")
	}
}

func TestProcessUnreadableFile(t *testing.T) {
	snk := sink.NewCounting()
	m, _ := newTestManager(t, snk)

	// Never created: the open fails, the file faults, the run goes on.
	res := m.Process(context.Background(), "missing.log")
	if res.Outcome != OutcomeErrored {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if res.Stats.Records != 0 {
		t.Errorf("records = %d, want 0", res.Stats.Records)
	}
	if snk.Count() != 0 {
		t.Errorf("sink count = %d, want 0", snk.Count())
	}
}

func TestFinalizeMovesWithoutReading(t *testing.T) {
	snk := sink.NewCounting()
	m, dirs := newTestManager(t, snk)

	writeUnprocessed(t, dirs, "done.log", "2024-06-15 10:00:00 INFO hello\n")

	res := m.Finalize(context.Background(), "done.log")
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s, err = %v", res.Outcome, res.Err)
	}
	if !exists(filepath.Join(dirs.Processed, "done.log")) {
		t.Error("file not in processed")
	}
	if snk.Count() != 0 {
		t.Errorf("sink count = %d, want 0", snk.Count())
	}
}

func TestProcessClearsLedgerMarkAfterMove(t *testing.T) {
	snk := sink.NewCounting()
	m, dirs := newTestManager(t, snk)
	ldg := ledger.NewMemory()
	m.Ledger = ldg

	writeUnprocessed(t, dirs, "app.log", "2024-06-15 10:00:00 INFO hello\n")

	res := m.Process(context.Background(), "app.log")
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s, err = %v", res.Outcome, res.Err)
	}

	// Mark and clear bracket the move; nothing must linger that would
	// make a future file reusing this name skip the sink.
	seen, err := ldg.Seen(context.Background(), "app.log")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("mark not cleared after completed move")
	}
}

func TestProcessKeepsMarkWhenMoveFails(t *testing.T) {
	snk := sink.NewCounting()
	m, dirs := newTestManager(t, snk)
	ldg := ledger.NewMemory()
	m.Ledger = ldg

	writeUnprocessed(t, dirs, "app.log", "2024-06-15 10:00:00 INFO hello\n")

	// Replace the processed directory with a plain file so the move
	// cannot complete after the sink has accepted the records.
	if err := os.RemoveAll(dirs.Processed); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dirs.Processed, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res := m.Process(context.Background(), "app.log")
	if res.Outcome != OutcomeErrored {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if snk.Count() != 1 {
		t.Fatalf("sink count = %d, want 1", snk.Count())
	}

	seen, err := ldg.Seen(context.Background(), "app.log")
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Error("mark lost; the next pass would insert the records again")
	}
}

func TestProcessDoesNotMarkOnSinkFault(t *testing.T) {
	failing := sink.Func(func(ctx context.Context, rec *model.Record) error {
		return errors.New("sink down")
	})
	m, dirs := newTestManager(t, failing)
	ldg := ledger.NewMemory()
	m.Ledger = ldg

	writeUnprocessed(t, dirs, "bad.log", "2024-06-15 10:00:00 INFO hello\n")

	if res := m.Process(context.Background(), "bad.log"); res.Outcome != OutcomeErrored {
		t.Fatalf("outcome = %s", res.Outcome)
	}

	seen, err := ldg.Seen(context.Background(), "bad.log")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("quarantined file marked as accepted")
	}
}

func TestFinalizeClearsLedgerMark(t *testing.T) {
	snk := sink.NewCounting()
	m, dirs := newTestManager(t, snk)
	ldg := ledger.NewMemory()
	m.Ledger = ldg

	writeUnprocessed(t, dirs, "done.log", "2024-06-15 10:00:00 INFO hello\n")
	if err := ldg.Mark(context.Background(), "done.log"); err != nil {
		t.Fatal(err)
	}

	if res := m.Finalize(context.Background(), "done.log"); res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s, err = %v", res.Outcome, res.Err)
	}

	seen, err := ldg.Seen(context.Background(), "done.log")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("mark not cleared after finalize")
	}
}

func TestMoveFileAcrossDirectories(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a", "f.txt")
	dst := filepath.Join(dir, "b", "f.txt")
	os.MkdirAll(filepath.Dir(src), 0o755)
	os.MkdirAll(filepath.Dir(dst), 0o755)
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := moveFile(src, dst); err != nil {
		t.Fatalf("moveFile: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("dst content: %q, %v", data, err)
	}
	if exists(src) {
		t.Error("src still present")
	}
}

func TestCopyFilePreservesMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.log")
	dst := filepath.Join(dir, "dst.log")
	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile: %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("dst mode = %v, want 0600", got)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("dst content: %q, %v", data, err)
	}
}
