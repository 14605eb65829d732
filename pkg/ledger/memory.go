package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process ledger, useful for tests and single-run
// deployments that only need the crash window narrowed within one
// process lifetime.
type Memory struct {
	mu    sync.Mutex
	files map[string]struct{}
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]struct{})}
}

// Seen implements Ledger.
func (l *Memory) Seen(ctx context.Context, file string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.files[file]
	return ok, nil
}

// Mark implements Ledger.
func (l *Memory) Mark(ctx context.Context, file string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[file] = struct{}{}
	return nil
}

// Clear implements Ledger.
func (l *Memory) Clear(ctx context.Context, file string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.files, file)
	return nil
}

// Close implements Ledger.
func (l *Memory) Close() error {
	return nil
}
