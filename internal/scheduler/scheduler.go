// Package scheduler fans partitions out over a fixed pool of workers. Each
// worker owns one crawl session; everything else the pipeline shares is
// synchronized inside the components themselves.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/metrics"
	"github.com/JakeFAU/registry-crawler/internal/pager"
	"github.com/JakeFAU/registry-crawler/internal/registry"
)

// ReleaseFunc returns whatever the session factory leased (a proxy, a
// connection slot) when the worker that owns the session exits. May be nil
// when nothing was leased.
type ReleaseFunc func()

// SessionFactory builds one Fetcher per worker. A worker holds its fetcher
// exclusively for the lifetime of the run and calls the release func on
// every exit path.
type SessionFactory func() (registry.Fetcher, ReleaseFunc, error)

// Summary aggregates one run across all partitions.
type Summary struct {
	RunID            string              `json:"run_id"`
	Partitions       int                 `json:"partitions"`
	Completed        int                 `json:"completed"`
	FailedPartitions int                 `json:"failed_partitions"`
	Pages            int                 `json:"pages"`
	RawCandidates    int                 `json:"raw_candidates"`
	Accepted         int                 `json:"accepted"`
	Rejected         int                 `json:"rejected"`
	Duplicates       int                 `json:"duplicates"`
	Duration         time.Duration       `json:"duration"`
	Items            []registry.WorkItem `json:"items"`
}

// Scheduler distributes work items to pagers. The factory-built pagers
// carry the shared dedup index, monitor, and sink; the scheduler owns only
// scheduling state.
type Scheduler struct {
	Workers  int
	Sessions SessionFactory
	NewPager func(fetcher registry.Fetcher) *pager.Pager
	Stop     registry.StopFunc
	Log      *zap.Logger
}

// Run crawls all partitions and blocks until the pool drains. A failed
// partition never aborts the others; cancellation is polled between work
// items, so items not yet started stay pending.
func (s *Scheduler) Run(ctx context.Context, parts []registry.Partition) Summary {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString(), Partitions: len(parts)}

	items := make([]registry.WorkItem, len(parts))
	for i, p := range parts {
		items[i] = registry.WorkItem{ID: uuid.NewString(), Partition: p, State: registry.WorkPending}
	}

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan *registry.WorkItem, len(items))
	for i := range items {
		jobs <- &items[i]
	}
	close(jobs)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.runWorker(ctx, id, jobs, &mu, &sum)
		}(w)
	}
	wg.Wait()

	sum.Items = items
	sum.Duration = time.Since(start)
	s.Log.Info("Run finished",
		zap.String("run_id", sum.RunID),
		zap.Int("partitions", sum.Partitions),
		zap.Int("completed", sum.Completed),
		zap.Int("failed_partitions", sum.FailedPartitions),
		zap.Int("accepted", sum.Accepted),
		zap.Int("rejected", sum.Rejected),
		zap.Int("duplicates", sum.Duplicates),
		zap.Duration("duration", sum.Duration),
	)
	return sum
}

// RunSequential crawls partitions one at a time on a single session. It is
// the debugging driver and yields the same output set as Run.
func (s *Scheduler) RunSequential(ctx context.Context, parts []registry.Partition) Summary {
	seq := *s
	seq.Workers = 1
	return seq.Run(ctx, parts)
}

func (s *Scheduler) runWorker(ctx context.Context, id int, jobs <-chan *registry.WorkItem, mu *sync.Mutex, sum *Summary) {
	fetcher, release, err := s.Sessions()
	if err != nil {
		s.Log.Error("Worker session construction failed", zap.Int("worker", id), zap.Error(err))
		return
	}
	if release != nil {
		defer release()
	}
	p := s.NewPager(fetcher)

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	for item := range jobs {
		if ctx.Err() != nil || s.stopped() {
			return
		}
		item.State = registry.WorkRunning
		s.Log.Info("Partition started",
			zap.Int("worker", id),
			zap.String("work_id", item.ID),
			zap.String("partition", item.Partition.Label()),
		)

		res := p.Crawl(ctx, item.Partition)

		mu.Lock()
		sum.Pages += res.Pages
		sum.RawCandidates += res.RawCount
		sum.Accepted += res.Accepted
		sum.Rejected += res.Rejected
		sum.Duplicates += res.Duplicates
		if res.Failed {
			item.State = registry.WorkFailed
			if res.Err != nil {
				item.Error = res.Err.Error()
			}
			sum.FailedPartitions++
		} else {
			item.State = registry.WorkCompleted
			sum.Completed++
		}
		mu.Unlock()

		metrics.ObservePartition(string(item.State))
		if item.State == registry.WorkFailed {
			s.Log.Warn("Partition failed",
				zap.Int("worker", id),
				zap.String("partition", item.Partition.Label()),
				zap.String("error", item.Error),
				zap.Int("salvaged", res.Accepted),
			)
		}
	}
}

func (s *Scheduler) stopped() bool {
	return s.Stop != nil && s.Stop()
}
