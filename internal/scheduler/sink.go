package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/registry"
)

// RecordSink is the run-wide sink every worker shares. It serializes
// delivery: accepted records are kept in order of arrival, then handed to
// the optional store and publisher. Store and publish failures are logged
// and never retried; the record stays in the run output regardless.
type RecordSink struct {
	mu        sync.Mutex
	store     registry.RecordStore
	publisher registry.Publisher
	log       *zap.Logger
	records   []registry.Record
}

// NewRecordSink builds a sink over an optional store and publisher. Either
// may be nil.
func NewRecordSink(store registry.RecordStore, publisher registry.Publisher, log *zap.Logger) *RecordSink {
	return &RecordSink{store: store, publisher: publisher, log: log}
}

// OnRecord accepts one record under the sink lock.
func (s *RecordSink) OnRecord(rec registry.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)

	if s.store != nil {
		if err := s.store.StoreRecord(context.Background(), rec); err != nil {
			s.log.Warn("Record store failed",
				zap.String("identity", rec.Identity),
				zap.String("title", rec.Title),
				zap.Error(err),
			)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(context.Background(), rec); err != nil {
			s.log.Warn("Record publish failed",
				zap.String("identity", rec.Identity),
				zap.Error(err),
			)
		}
	}
}

// OnProgress logs a human-readable progress line.
func (s *RecordSink) OnProgress(msg string) {
	s.log.Info(msg)
}

// Records returns a copy of the accepted records.
func (s *RecordSink) Records() []registry.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]registry.Record, len(s.records))
	copy(out, s.records)
	return out
}
