package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/registry"
	"github.com/JakeFAU/registry-crawler/internal/validate"
)

func part(year int) registry.Partition {
	return registry.Partition{CategoryCode: "XM0701", TargetYear: year}
}

func TestRejectsListYearMismatchEvenWithoutDetailYear(t *testing.T) {
	v := &validate.YearValidator{Log: zap.NewNop()}
	rec := registry.Record{
		Title:            "r",
		DeclaredYearList: "2019",
		Status:           registry.StatusEnriched,
	}
	assert.False(t, v.Validate(&rec, part(2020)))
	assert.Equal(t, registry.StatusRejected, rec.Status)
}

func TestRejectsDetailYearMismatch(t *testing.T) {
	v := &validate.YearValidator{Log: zap.NewNop()}
	rec := registry.Record{
		Title:              "r",
		DeclaredYearList:   "2020",
		DeclaredYearDetail: "2018",
	}
	assert.False(t, v.Validate(&rec, part(2020)))
	assert.Equal(t, registry.StatusRejected, rec.Status)
}

func TestAcceptsAgreementOnBothLayers(t *testing.T) {
	v := &validate.YearValidator{Log: zap.NewNop()}
	rec := registry.Record{
		Title:              "r",
		DeclaredYearList:   "2020",
		DeclaredYearDetail: "2020",
	}
	assert.True(t, v.Validate(&rec, part(2020)))
	assert.Equal(t, registry.StatusValidated, rec.Status)
}

func TestAbsentLayersAreTolerated(t *testing.T) {
	v := &validate.YearValidator{Log: zap.NewNop()}

	onlyList := registry.Record{Title: "a", DeclaredYearList: "2020"}
	assert.True(t, v.Validate(&onlyList, part(2020)))

	onlyDetail := registry.Record{Title: "b", DeclaredYearDetail: "2020"}
	assert.True(t, v.Validate(&onlyDetail, part(2020)))

	neither := registry.Record{Title: "c"}
	assert.True(t, v.Validate(&neither, part(2020)))
}
