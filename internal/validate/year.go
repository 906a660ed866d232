// Package validate implements cross-layer year validation: the year a record
// declared in the listing view and the year it declared in the detail view
// must both agree with the partition's target year.
package validate

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/registry"
)

// YearValidator decides accept/reject for enriched records. Cross-year
// leakage is expected occasionally from upstream ordering, so every
// rejection is logged with partition and record identity for audit.
type YearValidator struct {
	Log *zap.Logger
}

// Validate checks rec against the partition's target year and updates its
// status. A layer with no declared year is not a rejection reason; the other
// layer's agreement suffices.
func (v *YearValidator) Validate(rec *registry.Record, part registry.Partition) bool {
	target := strconv.Itoa(part.TargetYear)

	if rec.DeclaredYearList != "" && rec.DeclaredYearList != target {
		v.reject(rec, part, "list", rec.DeclaredYearList, target)
		return false
	}
	if rec.DeclaredYearDetail != "" && rec.DeclaredYearDetail != target {
		v.reject(rec, part, "detail", rec.DeclaredYearDetail, target)
		return false
	}

	rec.Status = registry.StatusValidated
	return true
}

func (v *YearValidator) reject(rec *registry.Record, part registry.Partition, layer, declared, target string) {
	rec.Status = registry.StatusRejected
	v.Log.Info("Rejected cross-year record",
		zap.String("partition", part.Label()),
		zap.String("title", rec.Title),
		zap.String("detail_url", rec.DetailURL),
		zap.String("layer", layer),
		zap.String("declared_year", declared),
		zap.String("target_year", target),
	)
}
