// Package format holds the line-pattern and timestamp-layout catalog.
// The catalog is loaded once at startup from YAML configuration and is
// immutable afterwards; catalog order encodes match priority.
package format

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// LineFormat is a named line pattern with Go regexp named capture groups.
// A pattern must capture at least "message"; "timestamp" and "level" are
// recognized when present, any other group survives as an extra field.
type LineFormat struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Notes   string `yaml:"notes,omitempty"`

	re *regexp.Regexp
}

// Match applies the pattern to a line and returns the named captures.
func (f *LineFormat) Match(line string) (map[string]string, bool) {
	m := f.re.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	captures := make(map[string]string, len(m))
	for i, name := range f.re.SubexpNames() {
		if name == "" || i >= len(m) {
			continue
		}
		captures[name] = m[i]
	}
	return captures, true
}

// TimestampFormat is one timestamp layout, expressed as a Go reference
// time layout string.
type TimestampFormat struct {
	Pattern string `yaml:"pattern"`
}

// Catalog is the immutable set of recognized line formats and timestamp
// layouts, in priority order.
type Catalog struct {
	Lines      []LineFormat
	Timestamps []TimestampFormat
}

// Default returns a catalog covering common structured log shapes.
// Deployments normally replace it with LoadCatalog.
func Default() *Catalog {
	c := &Catalog{
		Lines: []LineFormat{
			{
				Name:    "timestamp-level-message",
				Pattern: `^(?P<timestamp>\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+(?P<level>[A-Z]+)\s+(?P<message>.*)$`,
				Notes:   "ISO-style prefix followed by an upper-case level token",
			},
			{
				Name:    "bracketed-level",
				Pattern: `^\[(?P<timestamp>[^\]]+)\]\s+\[?(?P<level>[A-Za-z]+)\]?\s+(?P<message>.*)$`,
				Notes:   "Apache-style bracketed timestamp",
			},
			{
				Name:    "syslog",
				Pattern: `^(?P<timestamp>[A-Z][a-z]{2}\s+\d{1,2} \d{2}:\d{2}:\d{2})\s+(?P<host>\S+)\s+(?P<message>.*)$`,
				Notes:   "classic syslog without year",
			},
		},
		Timestamps: []TimestampFormat{
			{Pattern: "2006-01-02 15:04:05"},
			{Pattern: "2006-01-02T15:04:05Z07:00"},
			{Pattern: "2006-01-02 15:04:05.000"},
			{Pattern: "02/Jan/2006:15:04:05 -0700"},
			{Pattern: "Jan _2 15:04:05"},
		},
	}
	if err := c.compile(); err != nil {
		// Built-in patterns are covered by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return c
}

// LoadCatalog reads line formats and timestamp layouts from two YAML
// files. Either path may be empty, in which case the corresponding
// defaults are kept.
func LoadCatalog(lineFormatsPath, timestampFormatsPath string) (*Catalog, error) {
	c := Default()

	if lineFormatsPath != "" {
		data, err := os.ReadFile(lineFormatsPath)
		if err != nil {
			return nil, fmt.Errorf("format: reading line formats: %w", err)
		}
		var lines []LineFormat
		if err := yaml.Unmarshal(data, &lines); err != nil {
			return nil, fmt.Errorf("format: parsing %s: %w", lineFormatsPath, err)
		}
		c.Lines = lines
	}

	if timestampFormatsPath != "" {
		data, err := os.ReadFile(timestampFormatsPath)
		if err != nil {
			return nil, fmt.Errorf("format: reading timestamp formats: %w", err)
		}
		var stamps []TimestampFormat
		if err := yaml.Unmarshal(data, &stamps); err != nil {
			return nil, fmt.Errorf("format: parsing %s: %w", timestampFormatsPath, err)
		}
		c.Timestamps = stamps
	}

	if err := c.compile(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseCatalog builds a catalog from in-memory YAML documents. Used by
// tests and by callers that embed their format configuration.
func ParseCatalog(lineFormats, timestampFormats []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(lineFormats, &c.Lines); err != nil {
		return nil, fmt.Errorf("format: parsing line formats: %w", err)
	}
	if err := yaml.Unmarshal(timestampFormats, &c.Timestamps); err != nil {
		return nil, fmt.Errorf("format: parsing timestamp formats: %w", err)
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return c, nil
}

// compile validates and compiles every line pattern.
func (c *Catalog) compile() error {
	if len(c.Lines) == 0 {
		return fmt.Errorf("format: catalog has no line formats")
	}

	for i := range c.Lines {
		f := &c.Lines[i]
		if f.Name == "" {
			return fmt.Errorf("format: line format %d has no name", i)
		}

		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("format: compiling %q: %w", f.Name, err)
		}

		hasMessage := false
		for _, g := range re.SubexpNames() {
			if g == "message" {
				hasMessage = true
				break
			}
		}
		if !hasMessage {
			return fmt.Errorf("format: %q has no message capture group", f.Name)
		}

		f.re = re
	}

	return nil
}

// Layouts returns the configured timestamp layouts in catalog order.
func (c *Catalog) Layouts() []string {
	out := make([]string, len(c.Timestamps))
	for i, t := range c.Timestamps {
		out[i] = t.Pattern
	}
	return out
}
