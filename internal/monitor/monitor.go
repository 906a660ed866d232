// Package monitor keeps process-wide request counters. One Monitor instance
// is created at scheduler start and passed by reference into every worker;
// there is no package-level singleton.
package monitor

import (
	"sync"

	"github.com/JakeFAU/registry-crawler/internal/metrics"
)

// Stats is a point-in-time copy of the counters.
type Stats struct {
	Attempts   int64            `json:"attempts"`
	Successes  int64            `json:"successes"`
	Failures   int64            `json:"failures"`
	ErrorTypes map[string]int64 `json:"error_types"`
}

// Monitor counts request attempts across all workers.
type Monitor struct {
	mu         sync.Mutex
	attempts   int64
	successes  int64
	failures   int64
	errorTypes map[string]int64
}

// New builds an empty Monitor.
func New() *Monitor {
	return &Monitor{errorTypes: make(map[string]int64)}
}

// RecordRequest counts one request attempt. errorType classifies failures
// and is ignored for successes.
func (m *Monitor) RecordRequest(success bool, errorType string) {
	m.mu.Lock()
	m.attempts++
	if success {
		m.successes++
	} else {
		m.failures++
		if errorType != "" {
			m.errorTypes[errorType]++
		}
	}
	m.mu.Unlock()

	if success {
		metrics.ObserveRequest("success")
	} else {
		metrics.ObserveRequest("failure")
	}
}

// Snapshot returns a copy of the counters.
func (m *Monitor) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make(map[string]int64, len(m.errorTypes))
	for k, v := range m.errorTypes {
		types[k] = v
	}
	return Stats{
		Attempts:   m.attempts,
		Successes:  m.successes,
		Failures:   m.failures,
		ErrorTypes: types,
	}
}
