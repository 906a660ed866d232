package monitor_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/registry-crawler/internal/metrics"
	"github.com/JakeFAU/registry-crawler/internal/monitor"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

func TestRecordRequestCounts(t *testing.T) {
	m := monitor.New()
	m.RecordRequest(true, "")
	m.RecordRequest(true, "")
	m.RecordRequest(false, "HTTP 500")
	m.RecordRequest(false, "timeout")
	m.RecordRequest(false, "timeout")

	s := m.Snapshot()
	assert.Equal(t, int64(5), s.Attempts)
	assert.Equal(t, int64(2), s.Successes)
	assert.Equal(t, int64(3), s.Failures)
	assert.Equal(t, int64(2), s.ErrorTypes["timeout"])
	assert.Equal(t, int64(1), s.ErrorTypes["HTTP 500"])
}

func TestSnapshotIsACopy(t *testing.T) {
	m := monitor.New()
	m.RecordRequest(false, "timeout")

	s := m.Snapshot()
	s.ErrorTypes["timeout"] = 99

	assert.Equal(t, int64(1), m.Snapshot().ErrorTypes["timeout"])
}

func TestConcurrentRecording(t *testing.T) {
	m := monitor.New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.RecordRequest(i%2 == 0, "boom")
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(800), s.Attempts)
	assert.Equal(t, int64(400), s.Successes)
	assert.Equal(t, int64(400), s.Failures)
}
