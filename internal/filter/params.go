// Package filter implements focused particle classification for SeaFlow
// event data.
package filter

import (
	"fmt"
	"sort"

	"github.com/seaflowlab/seafilter/internal/errors"
)

// Params holds the calibration coefficients for one quantile. D1 and D2
// acceptance is a pair of linear regions in (fsc_small, D) space; a
// particle passes a region when D <= fsc_small*notch + offset.
type Params struct {
	Quantile      float64
	BeadsFscSmall float64
	BeadsD1       float64
	BeadsD2       float64
	Width         float64
	NotchSmallD1  float64
	NotchSmallD2  float64
	NotchLargeD1  float64
	NotchLargeD2  float64
	OffsetSmallD1 float64
	OffsetSmallD2 float64
	OffsetLargeD1 float64
	OffsetLargeD2 float64
}

// ParamSet is an immutable, validated set of per-quantile parameters
// sharing a single alignment width. ID identifies the set in saved
// statistics rows.
type ParamSet struct {
	ID   string
	rows []Params
}

// NewParamSet validates and builds a parameter set. Rows are ordered by
// ascending quantile. All rows must share the same width and quantiles
// must be distinct.
func NewParamSet(id string, rows []Params) (*ParamSet, error) {
	if len(rows) == 0 {
		return nil, errors.NewValidationError(errors.CodeBadParams,
			"filter parameter set has no quantile rows")
	}
	sorted := make([]Params, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Quantile < sorted[j].Quantile
	})
	width := sorted[0].Width
	for i, p := range sorted {
		if p.Width != width {
			return nil, errors.NewValidationError(errors.CodeBadParams, fmt.Sprintf(
				"all quantiles must share one width, got %v and %v", width, p.Width))
		}
		if i > 0 && p.Quantile == sorted[i-1].Quantile {
			return nil, errors.NewValidationError(errors.CodeBadParams, fmt.Sprintf(
				"duplicate quantile %v", p.Quantile))
		}
	}
	return &ParamSet{ID: id, rows: sorted}, nil
}

// Rows returns a copy of the parameter rows in ascending quantile order.
func (ps *ParamSet) Rows() []Params {
	out := make([]Params, len(ps.rows))
	copy(out, ps.rows)
	return out
}

// Quantiles returns the quantile values in ascending order.
func (ps *ParamSet) Quantiles() []float64 {
	qs := make([]float64, len(ps.rows))
	for i, p := range ps.rows {
		qs[i] = p.Quantile
	}
	return qs
}

// Width returns the shared alignment width.
func (ps *ParamSet) Width() float64 {
	return ps.rows[0].Width
}

// Len returns the number of quantile rows.
func (ps *ParamSet) Len() int {
	return len(ps.rows)
}
