// Package classify decides what role a raw text line plays: the start of
// a new record, a continuation of the previous record, or noise.
package classify

import (
	"strings"
	"unicode"

	"github.com/logsift/logsift/pkg/format"
)

// Kind is the classification of a single physical line.
type Kind uint8

const (
	// KindBlank marks a whitespace-only line, dropped silently.
	KindBlank Kind = iota

	// KindNewRecord marks a line matching a configured line format.
	KindNewRecord

	// KindContinuation marks an indented line with no format match,
	// extending the previous record's message.
	KindContinuation

	// KindUnparseable marks a line with no format match and no leading
	// whitespace.
	KindUnparseable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindNewRecord:
		return "new_record"
	case KindContinuation:
		return "continuation"
	case KindUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Class is the tagged result of classifying one line.
type Class struct {
	Kind Kind

	// Format names the matching line format for KindNewRecord.
	Format string

	// Captures holds the named capture groups for KindNewRecord.
	Captures map[string]string

	// Text is the trimmed line text for KindContinuation.
	Text string
}

// Classifier applies the format catalog to raw lines. It is stateless
// and safe for concurrent use.
type Classifier struct {
	catalog *format.Catalog
}

// New creates a classifier over the given catalog.
func New(catalog *format.Catalog) *Classifier {
	return &Classifier{catalog: catalog}
}

// Classify classifies one raw line. First catalog match wins. A line
// matching no format counts as a continuation only when it begins with
// whitespace; anchored prefixes plus indented wrap text is a heuristic,
// not a grammar, and catalog order encodes priority.
func (c *Classifier) Classify(line string) Class {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Class{Kind: KindBlank}
	}

	for i := range c.catalog.Lines {
		f := &c.catalog.Lines[i]
		if captures, ok := f.Match(line); ok {
			return Class{
				Kind:     KindNewRecord,
				Format:   f.Name,
				Captures: captures,
			}
		}
	}

	if leadingWhitespace(line) {
		return Class{Kind: KindContinuation, Text: trimmed}
	}

	return Class{Kind: KindUnparseable}
}

func leadingWhitespace(line string) bool {
	for _, r := range line {
		return unicode.IsSpace(r)
	}
	return false
}
