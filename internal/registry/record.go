// Package registry defines the domain model for the partitioned registry
// crawl: records, partitions, work items, and the ports the engine consumes.
package registry

// Status tracks a record through the pipeline.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusEnriched  Status = "enriched"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
	StatusAccepted  Status = "accepted"
	StatusDuplicate Status = "duplicate"
)

// Origin tags which structural shape of the listing produced a record.
type Origin string

const (
	OriginCheckbox Origin = "checkbox"
	OriginFallback Origin = "fallback"
)

// Record is a single ingested registry document. Fields other than the
// listing-derived ones stay empty until enrichment.
type Record struct {
	Identity        string `json:"identity"`
	Title           string `json:"title"`
	DocumentNumber  string `json:"document_number"`
	PublicationDate string `json:"publication_date"`
	SourceLevel     string `json:"source_level"`
	Category        string `json:"category"`
	Content         string `json:"content"`
	DetailURL       string `json:"detail_url"`

	// Years observed independently by the list and detail layers. Either may
	// be empty; both must agree with the partition's target year when set.
	DeclaredYearList   string `json:"declared_year_list"`
	DeclaredYearDetail string `json:"declared_year_detail"`

	ContentHash      string `json:"content_hash"`
	NeedsDetailFetch bool   `json:"needs_detail_fetch"`
	Origin           Origin `json:"origin"`
	Status           Status `json:"status"`
}
