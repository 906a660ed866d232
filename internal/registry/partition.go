package registry

import "fmt"

// Partition is one (category, year) unit of crawl work. ExpectedCount comes
// from discovery and is advisory: it feeds anomaly logging, never termination.
type Partition struct {
	CategoryCode  string `json:"category_code"`
	CategoryName  string `json:"category_name"`
	TargetYear    int    `json:"target_year"`
	ExpectedCount int    `json:"expected_count"`
	PageSize      int    `json:"page_size"`
}

// Label identifies the partition in logs and reports.
func (p Partition) Label() string {
	return fmt.Sprintf("%s/%d", p.CategoryCode, p.TargetYear)
}

// WorkState is the scheduling state of a WorkItem. Terminal states are final;
// a work item is never re-run automatically.
type WorkState string

const (
	WorkPending   WorkState = "pending"
	WorkRunning   WorkState = "running"
	WorkCompleted WorkState = "completed"
	WorkFailed    WorkState = "failed"
)

// WorkItem wraps a Partition with scheduling state.
type WorkItem struct {
	ID        string    `json:"id"`
	Partition Partition `json:"partition"`
	State     WorkState `json:"state"`
	Error     string    `json:"error,omitempty"`
}

// PartitionResult carries everything a partition crawl produced. A failed
// partition still returns the records collected before the failure.
type PartitionResult struct {
	Partition  Partition
	Records    []Record
	Pages      int
	RawCount   int
	Accepted   int
	Rejected   int
	Duplicates int
	Failed     bool
	Err        error
}
