package filter

import (
	"sort"

	"github.com/seaflowlab/seafilter/pkg/particle"
)

// DefaultRoughWidth is the alignment width used when no calibration is
// available.
const DefaultRoughWidth = 5000

// RoughFilter estimates focused particles without bead positions or
// instrument calibration. The D1/D2 sensitivity difference is corrected
// with the median of D2-D1 over the whole table, then particles with a
// better fsc/D signal than the best large-fsc particle are kept.
func RoughFilter(t *particle.Table, width float64) *particle.Table {
	if t.Len() == 0 {
		return particle.New(0)
	}

	noise := markNoise(t)
	sat := markSaturated(t)
	usable := 0
	for i := range noise {
		if !noise[i] && !sat[i] {
			usable++
		}
	}
	if usable == 0 {
		return particle.New(0)
	}

	diffs := make([]float64, t.Len())
	for i := range diffs {
		diffs[i] = t.D2[i] - t.D1[i]
	}
	origin := median(diffs)

	var aligned []int
	for i := 0; i < t.Len(); i++ {
		if noise[i] || sat[i] {
			continue
		}
		if t.D1[i]+origin < t.D2[i]+width && t.D2[i] < t.D1[i]+origin+width {
			aligned = append(aligned, i)
		}
	}
	if len(aligned) == 0 {
		return particle.New(0)
	}

	// Slope of the best large-fsc particle: smallest D at the maximum
	// fsc_small among aligned particles.
	fscMax := t.FscSmall[aligned[0]]
	for _, i := range aligned {
		if t.FscSmall[i] > fscMax {
			fscMax = t.FscSmall[i]
		}
	}
	var minD1, minD2 float64
	first := true
	for _, i := range aligned {
		if t.FscSmall[i] != fscMax {
			continue
		}
		if first {
			minD1, minD2 = t.D1[i], t.D2[i]
			first = false
			continue
		}
		if t.D1[i] < minD1 {
			minD1 = t.D1[i]
		}
		if t.D2[i] < minD2 {
			minD2 = t.D2[i]
		}
	}
	slopeD1 := fscMax / minD1
	slopeD2 := fscMax / minD2

	var focused []int
	for _, i := range aligned {
		if t.FscSmall[i]/t.D1[i] >= slopeD1 && t.FscSmall[i]/t.D2[i] >= slopeD2 {
			focused = append(focused, i)
		}
	}
	return t.Select(focused)
}

func median(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
