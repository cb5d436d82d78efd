package filter

import (
	"github.com/seaflowlab/seafilter/pkg/particle"
)

// Classification holds the boolean marks produced by MarkFocused for one
// particle table. Focused is indexed [quantile][particle] with quantiles
// in ascending order.
type Classification struct {
	Quantiles []float64
	Noise     []bool
	Saturated []bool
	Focused   [][]bool
}

// MarkFocused classifies every particle in t against the parameter set.
// The input table is not modified. Safe on empty tables.
//
// A particle is noise when none of fsc_small, D1, D2 exceeds 1. It is
// saturated when its D1 or D2 equals the table-wide maximum of that
// channel. Non-noise, non-saturated particles whose D1 and D2 agree
// within the shared width are candidates; a candidate is focused under a
// quantile when it falls inside the small or the large acceptance region
// of that quantile's parameters.
func MarkFocused(t *particle.Table, ps *ParamSet) *Classification {
	n := t.Len()
	c := &Classification{
		Quantiles: ps.Quantiles(),
		Noise:     markNoise(t),
		Saturated: markSaturated(t),
		Focused:   make([][]bool, ps.Len()),
	}

	width := ps.Width()
	aligned := make([]bool, n)
	for i := 0; i < n; i++ {
		aligned[i] = !c.Noise[i] && !c.Saturated[i] &&
			t.D1[i] < t.D2[i]+width &&
			t.D2[i] < t.D1[i]+width
	}

	for qi, p := range ps.rows {
		focused := make([]bool, n)
		for i := 0; i < n; i++ {
			if !aligned[i] {
				continue
			}
			fsc := t.FscSmall[i]
			small := t.D1[i] <= fsc*p.NotchSmallD1+p.OffsetSmallD1 &&
				t.D2[i] <= fsc*p.NotchSmallD2+p.OffsetSmallD2
			large := t.D1[i] <= fsc*p.NotchLargeD1+p.OffsetLargeD1 &&
				t.D2[i] <= fsc*p.NotchLargeD2+p.OffsetLargeD2
			focused[i] = small || large
		}
		c.Focused[qi] = focused
	}
	return c
}

// markNoise flags particles where none of fsc_small, D1, D2 is above 1.
func markNoise(t *particle.Table) []bool {
	noise := make([]bool, t.Len())
	for i := range noise {
		noise[i] = !(t.FscSmall[i] > 1 || t.D1[i] > 1 || t.D2[i] > 1)
	}
	return noise
}

// markSaturated flags particles at the table-wide D1 or D2 maximum. An
// empty table has no saturated particles.
func markSaturated(t *particle.Table) []bool {
	n := t.Len()
	sat := make([]bool, n)
	if n == 0 {
		return sat
	}
	maxD1, maxD2 := t.D1[0], t.D2[0]
	for i := 1; i < n; i++ {
		if t.D1[i] > maxD1 {
			maxD1 = t.D1[i]
		}
		if t.D2[i] > maxD2 {
			maxD2 = t.D2[i]
		}
	}
	for i := 0; i < n; i++ {
		sat[i] = t.D1[i] == maxD1 || t.D2[i] == maxD2
	}
	return sat
}

// EvtCount returns the number of particles not marked as noise.
func (c *Classification) EvtCount() int {
	n := 0
	for _, v := range c.Noise {
		if !v {
			n++
		}
	}
	return n
}

// OppCounts returns the focused particle count per quantile, in ascending
// quantile order.
func (c *Classification) OppCounts() []int {
	counts := make([]int, len(c.Focused))
	for qi, col := range c.Focused {
		for _, v := range col {
			if v {
				counts[qi]++
			}
		}
	}
	return counts
}

// AllQuantiles reports whether every quantile has at least one focused
// particle.
func (c *Classification) AllQuantiles() bool {
	for _, count := range c.OppCounts() {
		if count == 0 {
			return false
		}
	}
	return true
}

// SelectFocused returns the particles focused under at least one quantile
// together with their per-quantile membership bit flags.
func SelectFocused(t *particle.Table, c *Classification) (*particle.Table, []uint16) {
	allFlags := particle.EncodeBitFlags(c.Focused)
	var indices []int
	for i := 0; i < t.Len(); i++ {
		if allFlags[i] != 0 {
			indices = append(indices, i)
		}
	}
	flags := make([]uint16, len(indices))
	for j, i := range indices {
		flags[j] = allFlags[i]
	}
	return t.Select(indices), flags
}

// SelectQuantile returns the particles focused under the quantile at
// index qi.
func SelectQuantile(t *particle.Table, c *Classification, qi int) *particle.Table {
	var indices []int
	for i, v := range c.Focused[qi] {
		if v {
			indices = append(indices, i)
		}
	}
	return t.Select(indices)
}
