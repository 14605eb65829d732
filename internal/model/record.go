// Package model defines core data structures for logsift.
package model

import "time"

// Record represents one normalized log entry, possibly assembled from
// several physical lines.
type Record struct {
	// Timestamp is the normalized instant. Only meaningful when
	// HasTimestamp is true; resolution failure leaves it zero.
	Timestamp time.Time

	// HasTimestamp reports whether Timestamp was resolved.
	HasTimestamp bool

	// Level is the severity token captured from the line, if any.
	Level string

	// Message is the free-text payload. Continuation lines are appended
	// space-separated in file order.
	Message string

	// RawLine is the first physical line of the record, untouched.
	RawLine string

	// Fields holds additional named captures from the matching format
	// beyond timestamp, level and message.
	Fields map[string]string

	// SourceFile is the base name of the file the record was read from.
	SourceFile string

	// LineNumber is the 1-based line the record started on.
	LineNumber int
}

// AppendContinuation extends the message with the trimmed text of a
// continuation line, separated by a single space.
func (r *Record) AppendContinuation(text string) {
	if r.Message == "" {
		r.Message = text
		return
	}
	r.Message += " " + text
}

// SetField stores an extra named capture, allocating the map lazily.
func (r *Record) SetField(key, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string, 4)
	}
	r.Fields[key] = value
}
