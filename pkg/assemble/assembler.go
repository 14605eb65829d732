// Package assemble folds classified lines into completed records.
//
// The assembler is a per-file state machine with two states: Idle (no
// buffered record) and Buffering (one record accumulating). A buffered
// record is flushed to the sink when the next new-record line arrives
// and at end of file. Correctness depends on continuation lines always
// directly following their parent record; there is no lookahead.
package assemble

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/logsift/logsift/internal/model"
	"github.com/logsift/logsift/pkg/classify"
	"github.com/logsift/logsift/pkg/sink"
	"github.com/logsift/logsift/pkg/timestamp"
)

// Stats counts per-file line and record outcomes. Every non-blank line
// contributes to exactly one record or one warning counter.
type Stats struct {
	Lines             int64
	Records           int64
	Blank             int64
	Unparseable       int64
	OrphanedContinued int64
	TimestampMisses   int64
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Lines += other.Lines
	s.Records += other.Records
	s.Blank += other.Blank
	s.Unparseable += other.Unparseable
	s.OrphanedContinued += other.OrphanedContinued
	s.TimestampMisses += other.TimestampMisses
}

// Assembler drives the classifier and timestamp resolver over a line
// stream. It holds no per-file state between calls; Consume is safe to
// run concurrently for different files.
type Assembler struct {
	classifier *classify.Classifier
	resolver   *timestamp.Resolver
	logger     *slog.Logger

	// MaxLineBytes bounds the scanner's line buffer. Zero uses the
	// default of 1 MiB.
	MaxLineBytes int
}

const defaultMaxLineBytes = 1 << 20

// New creates an assembler.
func New(classifier *classify.Classifier, resolver *timestamp.Resolver, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		classifier: classifier,
		resolver:   resolver,
		logger:     logger,
	}
}

// Consume reads r line by line, assembles records and hands each
// completed record to snk. name is attached to records and warnings.
// Line-level faults (unparseable lines, orphan continuations, timestamp
// misses) are warnings and never abort the pass; read errors and sink
// errors do.
func (a *Assembler) Consume(ctx context.Context, name string, r io.Reader, snk sink.Sink) (Stats, error) {
	var stats Stats
	var buffer *model.Record

	maxLine := a.MaxLineBytes
	if maxLine <= 0 {
		maxLine = defaultMaxLineBytes
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	lineNum := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line := scanner.Text()
		lineNum++
		stats.Lines++

		cls := a.classifier.Classify(line)
		switch cls.Kind {
		case classify.KindBlank:
			stats.Blank++

		case classify.KindNewRecord:
			if buffer != nil {
				if err := snk.Insert(ctx, buffer); err != nil {
					return stats, fmt.Errorf("assemble: flushing record from %s:%d: %w", name, buffer.LineNumber, err)
				}
				stats.Records++
			}
			buffer = a.newRecord(name, lineNum, line, cls, &stats)

		case classify.KindContinuation:
			if buffer == nil {
				// An orphan continuation is dropped, not promoted to an
				// unparseable record.
				stats.OrphanedContinued++
				a.logger.Warn("continuation line without a preceding record",
					"file", name, "line", lineNum, "raw", line)
				continue
			}
			buffer.AppendContinuation(cls.Text)

		case classify.KindUnparseable:
			stats.Unparseable++
			a.logger.Warn("unparseable line",
				"file", name, "line", lineNum, "raw", line)
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("assemble: reading %s: %w", name, err)
	}

	if buffer != nil {
		if err := snk.Insert(ctx, buffer); err != nil {
			return stats, fmt.Errorf("assemble: flushing final record from %s:%d: %w", name, buffer.LineNumber, err)
		}
		stats.Records++
	}

	return stats, nil
}

// newRecord builds a record from a new-record classification, resolving
// the timestamp capture when present. Timestamp failure flags the record
// and never aborts assembly.
func (a *Assembler) newRecord(name string, lineNum int, raw string, cls classify.Class, stats *Stats) *model.Record {
	rec := &model.Record{
		RawLine:    raw,
		SourceFile: name,
		LineNumber: lineNum,
	}

	for key, value := range cls.Captures {
		switch key {
		case "timestamp":
			if value == "" {
				continue
			}
			t, err := a.resolver.Resolve(value)
			if err != nil {
				stats.TimestampMisses++
				a.logger.Warn("timestamp parsing failed",
					"file", name, "line", lineNum, "timestamp", value)
				continue
			}
			rec.Timestamp = t
			rec.HasTimestamp = true
		case "level":
			rec.Level = value
		case "message":
			rec.Message = value
		default:
			rec.SetField(key, value)
		}
	}

	return rec
}
