package publish

import (
	"context"
	"sync"

	"github.com/JakeFAU/registry-crawler/internal/registry"
)

// Memory stores published records for inspection in tests.
type Memory struct {
	mu      sync.RWMutex
	records []registry.Record
}

// NewMemory returns an in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records the message.
func (p *Memory) Publish(_ context.Context, rec registry.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

// Close is a no-op.
func (p *Memory) Close() error { return nil }

// Records returns the recorded publishes.
func (p *Memory) Records() []registry.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]registry.Record, len(p.records))
	copy(out, p.records)
	return out
}
