package publish

import (
	"context"

	"github.com/JakeFAU/registry-crawler/internal/registry"
)

// Noop discards records. It serves runs without a downstream consumer.
type Noop struct{}

// Publish discards the record.
func (Noop) Publish(_ context.Context, _ registry.Record) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
