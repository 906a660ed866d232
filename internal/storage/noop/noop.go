// Package noop provides a record store that discards everything.
package noop

import (
	"context"

	"github.com/JakeFAU/registry-crawler/internal/registry"
)

// RecordStore discards records. It serves runs without persistence.
type RecordStore struct{}

// StoreRecord discards the record.
func (RecordStore) StoreRecord(_ context.Context, _ registry.Record) error { return nil }

// Close is a no-op.
func (RecordStore) Close() {}
