package format

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogCompiles(t *testing.T) {
	c := Default()
	if len(c.Lines) == 0 {
		t.Fatal("default catalog has no line formats")
	}
	if len(c.Timestamps) == 0 {
		t.Fatal("default catalog has no timestamp formats")
	}
}

func TestLineFormatMatch(t *testing.T) {
	c := Default()

	captures, ok := c.Lines[0].Match("2024-06-15 10:00:00 INFO Starting job")
	if !ok {
		t.Fatal("expected match")
	}
	if captures["timestamp"] != "2024-06-15 10:00:00" {
		t.Errorf("timestamp = %q", captures["timestamp"])
	}
	if captures["level"] != "INFO" {
		t.Errorf("level = %q", captures["level"])
	}
	if captures["message"] != "Starting job" {
		t.Errorf("message = %q", captures["message"])
	}

	if _, ok := c.Lines[0].Match("    at module X"); ok {
		t.Error("indented line should not match an anchored pattern")
	}
}

func TestParseCatalog(t *testing.T) {
	lines := []byte(`
- name: simple
  pattern: '^(?P<level>[A-Z]+): (?P<message>.*)$'
  notes: level-prefixed
`)
	stamps := []byte(`
- pattern: "2006-01-02 15:04:05"
- pattern: "02/01/2006"
`)

	c, err := ParseCatalog(lines, stamps)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}

	if len(c.Lines) != 1 || c.Lines[0].Name != "simple" {
		t.Fatalf("unexpected lines: %+v", c.Lines)
	}
	if got := c.Layouts(); len(got) != 2 || got[0] != "2006-01-02 15:04:05" {
		t.Fatalf("unexpected layouts: %v", got)
	}

	captures, ok := c.Lines[0].Match("ERROR: boom")
	if !ok || captures["message"] != "boom" {
		t.Fatalf("match failed: %v %v", captures, ok)
	}
}

func TestParseCatalogRejectsMissingMessageGroup(t *testing.T) {
	lines := []byte(`
- name: broken
  pattern: '^(?P<level>[A-Z]+)$'
`)
	if _, err := ParseCatalog(lines, nil); err == nil {
		t.Fatal("expected error for pattern without message group")
	}
}

func TestParseCatalogRejectsInvalidPattern(t *testing.T) {
	lines := []byte(`
- name: broken
  pattern: '^(?P<message>[unterminated$'
`)
	if _, err := ParseCatalog(lines, nil); err == nil {
		t.Fatal("expected error for invalid regexp")
	}
}

func TestLoadCatalogFromFiles(t *testing.T) {
	dir := t.TempDir()

	linePath := filepath.Join(dir, "log_formats.yaml")
	if err := os.WriteFile(linePath, []byte(`
- name: level-only
  pattern: '^(?P<level>[A-Z]+) (?P<message>.*)$'
`), 0o644); err != nil {
		t.Fatal(err)
	}

	stampPath := filepath.Join(dir, "timestamp_formats.yaml")
	if err := os.WriteFile(stampPath, []byte(`
- pattern: "2006-01-02"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(linePath, stampPath)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(c.Lines) != 1 || len(c.Timestamps) != 1 {
		t.Fatalf("unexpected catalog: %d lines, %d stamps", len(c.Lines), len(c.Timestamps))
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
