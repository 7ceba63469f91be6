package host

import (
	"context"
	"errors"
	"sync"
)

// fakePlugin records hook calls.
type fakePlugin struct {
	name      string
	startErr  error
	watchDirs []string
	changeErr error

	mu      sync.Mutex
	starts  int
	changes []string
}

func (p *fakePlugin) Name() string {
	if p.name == "" {
		return "fake"
	}
	return p.name
}

func (p *fakePlugin) BuildStart(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	return p.startErr
}

func (p *fakePlugin) HandleFileChange(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, path)
	return p.changeErr
}

func (p *fakePlugin) WatchDirs() []string { return p.watchDirs }

func (p *fakePlugin) startCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

func (p *fakePlugin) changed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.changes...)
}

var errStart = errors.New("asc release build failed (exit 1)")
