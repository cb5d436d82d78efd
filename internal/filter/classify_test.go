package filter

import (
	"testing"

	"github.com/seaflowlab/seafilter/pkg/particle"
)

// row builds a particle row with the given D1, D2, fsc_small and zeros
// elsewhere.
func row(d1, d2, fsc float64) [particle.NumChannels]float64 {
	var r [particle.NumChannels]float64
	r[2], r[3], r[4] = d1, d2, fsc
	return r
}

func permissiveParams(quantile float64) Params {
	return Params{
		Quantile:      quantile,
		Width:         5000,
		NotchSmallD1:  1.0,
		NotchSmallD2:  1.0,
		NotchLargeD1:  1.5,
		NotchLargeD2:  1.5,
		OffsetSmallD1: 0,
		OffsetSmallD2: 0,
		OffsetLargeD1: 10000,
		OffsetLargeD2: 10000,
	}
}

func strictParams(quantile float64) Params {
	return Params{
		Quantile:     quantile,
		Width:        5000,
		NotchSmallD1: 0.0001,
		NotchSmallD2: 0.0001,
		NotchLargeD1: 0.0001,
		NotchLargeD2: 0.0001,
	}
}

func TestNewParamSetValidation(t *testing.T) {
	if _, err := NewParamSet("id", nil); err == nil {
		t.Error("empty parameter set should fail validation")
	}

	mismatch := []Params{permissiveParams(2.5), permissiveParams(50)}
	mismatch[1].Width = 2500
	if _, err := NewParamSet("id", mismatch); err == nil {
		t.Error("differing widths should fail validation")
	}

	dup := []Params{permissiveParams(50), permissiveParams(50)}
	if _, err := NewParamSet("id", dup); err == nil {
		t.Error("duplicate quantiles should fail validation")
	}

	ps, err := NewParamSet("id", []Params{
		permissiveParams(97.5), permissiveParams(2.5), permissiveParams(50),
	})
	if err != nil {
		t.Fatal(err)
	}
	qs := ps.Quantiles()
	if qs[0] != 2.5 || qs[1] != 50 || qs[2] != 97.5 {
		t.Errorf("quantiles not sorted ascending: %v", qs)
	}
	if ps.Width() != 5000 {
		t.Errorf("width %v, want 5000", ps.Width())
	}
}

func TestMarkFocusedScenario(t *testing.T) {
	tbl := particle.New(5)
	tbl.AppendRow(row(100, 100, 50000))    // 0: focused under permissive
	tbl.AppendRow(row(1, 1, 1))            // 1: noise
	tbl.AppendRow(row(65535, 65535, 100))  // 2: saturated on both channels
	tbl.AppendRow(row(20000, 1000, 40000)) // 3: misaligned
	tbl.AppendRow(row(30000, 30000, 100))  // 4: aligned but outside acceptance

	ps, err := NewParamSet("id", []Params{permissiveParams(2.5), strictParams(97.5)})
	if err != nil {
		t.Fatal(err)
	}
	c := MarkFocused(tbl, ps)

	wantNoise := []bool{false, true, false, false, false}
	wantSat := []bool{false, false, true, false, false}
	wantQ25 := []bool{true, false, false, false, false}
	wantQ975 := []bool{false, false, false, false, false}
	for i := 0; i < 5; i++ {
		if c.Noise[i] != wantNoise[i] {
			t.Errorf("particle %d noise=%v, want %v", i, c.Noise[i], wantNoise[i])
		}
		if c.Saturated[i] != wantSat[i] {
			t.Errorf("particle %d saturated=%v, want %v", i, c.Saturated[i], wantSat[i])
		}
		if c.Focused[0][i] != wantQ25[i] {
			t.Errorf("particle %d q2.5=%v, want %v", i, c.Focused[0][i], wantQ25[i])
		}
		if c.Focused[1][i] != wantQ975[i] {
			t.Errorf("particle %d q97.5=%v, want %v", i, c.Focused[1][i], wantQ975[i])
		}
	}

	if c.EvtCount() != 4 {
		t.Errorf("EvtCount=%d, want 4", c.EvtCount())
	}
	counts := c.OppCounts()
	if counts[0] != 1 || counts[1] != 0 {
		t.Errorf("OppCounts=%v, want [1 0]", counts)
	}
	if c.AllQuantiles() {
		t.Error("AllQuantiles should be false with an empty quantile")
	}
}

func TestMarkFocusedEmptyTable(t *testing.T) {
	ps, err := NewParamSet("id", []Params{permissiveParams(50)})
	if err != nil {
		t.Fatal(err)
	}
	c := MarkFocused(particle.New(0), ps)
	if len(c.Noise) != 0 || len(c.Saturated) != 0 || len(c.Focused[0]) != 0 {
		t.Error("empty table should produce empty marks")
	}
	if c.EvtCount() != 0 || c.AllQuantiles() {
		t.Error("empty table should have zero counts and no full quantiles")
	}
}

func TestSaturationIsRelativeToTableMax(t *testing.T) {
	// No particle reaches 65535; the maximum within the table saturates.
	tbl := particle.New(3)
	tbl.AppendRow(row(100, 100, 5000))
	tbl.AppendRow(row(40000, 100, 5000))
	tbl.AppendRow(row(100, 40000, 5000))

	ps, _ := NewParamSet("id", []Params{permissiveParams(50)})
	c := MarkFocused(tbl, ps)
	if c.Saturated[0] || !c.Saturated[1] || !c.Saturated[2] {
		t.Errorf("saturated=%v, want [false true true]", c.Saturated)
	}
}

func TestAlignmentWidthIsStrict(t *testing.T) {
	tbl := particle.New(2)
	tbl.AppendRow(row(10000, 5000, 50000)) // difference equals width, not aligned
	tbl.AppendRow(row(9999, 5000, 50000))  // inside width
	// Avoid saturation interference.
	tbl.AppendRow(row(60000, 60000, 50000))

	ps, _ := NewParamSet("id", []Params{permissiveParams(50)})
	c := MarkFocused(tbl, ps)
	if c.Focused[0][0] {
		t.Error("particle at exactly width apart should not be focused")
	}
	if !c.Focused[0][1] {
		t.Error("particle inside width should be focused")
	}
}

func TestSelectFocusedAndFlags(t *testing.T) {
	tbl := particle.New(3)
	tbl.AppendRow(row(100, 100, 50000)) // focused under both
	tbl.AppendRow(row(1, 1, 1))         // noise
	tbl.AppendRow(row(60000, 60000, 100))

	ps, _ := NewParamSet("id", []Params{permissiveParams(2.5), permissiveParams(50)})
	c := MarkFocused(tbl, ps)

	opp, flags := SelectFocused(tbl, c)
	if opp.Len() != 1 {
		t.Fatalf("expected 1 focused particle, got %d", opp.Len())
	}
	if flags[0] != 3 {
		t.Errorf("flags[0]=%d, want 3 (focused under both quantiles)", flags[0])
	}
	if opp.Row(0) != tbl.Row(0) {
		t.Error("selected particle data mismatch")
	}

	q0 := SelectQuantile(tbl, c, 0)
	if q0.Len() != 1 || q0.Row(0) != tbl.Row(0) {
		t.Error("SelectQuantile mismatch")
	}
}

func TestRoughFilter(t *testing.T) {
	tbl := particle.New(4)
	tbl.AppendRow(row(1, 1, 1))       // noise
	tbl.AppendRow(row(10, 10, 1000))  // ratio 100, below best slope
	tbl.AppendRow(row(10, 10, 2000))  // best fsc among non-saturated
	tbl.AppendRow(row(40, 40, 2000))  // saturated (table max D1/D2)

	got := RoughFilter(tbl, DefaultRoughWidth)
	if got.Len() != 1 {
		t.Fatalf("expected 1 rough-focused particle, got %d", got.Len())
	}
	if got.Row(0) != tbl.Row(2) {
		t.Error("wrong particle survived rough filtering")
	}
}

func TestRoughFilterEmptyAndAllNoise(t *testing.T) {
	if got := RoughFilter(particle.New(0), DefaultRoughWidth); got.Len() != 0 {
		t.Error("empty input should yield empty output")
	}
	tbl := particle.New(2)
	tbl.AppendRow(row(0, 0, 0))
	tbl.AppendRow(row(1, 1, 1))
	if got := RoughFilter(tbl, DefaultRoughWidth); got.Len() != 0 {
		t.Error("all-noise input should yield empty output")
	}
}
