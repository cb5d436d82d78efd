package particle

import (
	"math"
	"strconv"
)

// Quantile bit flag values for the canonical calibration quantiles. These
// are combined into a single bit flag column when focused particle data for
// all quantiles is stored in one binary file, e.g. 0b110 (6) means a
// particle is focused in quantiles 50 and 97.5 but not 2.5.
var Flags = map[string]uint16{
	"q2.5":  1,
	"q50":   2,
	"q97.5": 4,
}

// QuantileString formats a quantile value for column names and filesystem
// paths, stripping any trailing zeros (2.5 -> "2.5", 50.0 -> "50").
func QuantileString(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// QuantileColumn returns the boolean column name for a quantile,
// e.g. "q2.5" for the 2.5 quantile.
func QuantileColumn(q float64) string {
	return "q" + QuantileString(q)
}

// EncodeBitFlags packs per-quantile focused booleans into bit flag values,
// one per particle. focused is indexed [quantile][particle] with quantiles
// in ascending order; quantile i maps to bit 1<<i.
func EncodeBitFlags(focused [][]bool) []uint16 {
	if len(focused) == 0 {
		return nil
	}
	n := len(focused[0])
	flags := make([]uint16, n)
	for qi, col := range focused {
		bit := uint16(1) << uint(qi)
		for i, f := range col {
			if f {
				flags[i] |= bit
			}
		}
	}
	return flags
}

// DecodeBitFlags unpacks bit flag values into per-quantile focused
// booleans for numQuantiles quantiles in ascending order.
func DecodeBitFlags(flags []uint16, numQuantiles int) [][]bool {
	focused := make([][]bool, numQuantiles)
	for qi := range focused {
		bit := uint16(1) << uint(qi)
		col := make([]bool, len(flags))
		for i, f := range flags {
			col[i] = f&bit != 0
		}
		focused[qi] = col
	}
	return focused
}

// Linearize returns a copy of the table with the cytometer channel columns
// exponentiated from the instrument's log scale. SeaFlow data is recorded
// as log values over 3.5 decades on a 16-bit linear scale; this maps them
// onto a linear scale from 1 to 10^3.5.
func Linearize(t *Table) *Table {
	out := t.Clone()
	for _, col := range out.channelColumns() {
		vals := *col
		for i, v := range vals {
			vals[i] = math.Pow(10, (v/65536)*3.5)
		}
	}
	return out
}

// LogScale is the inverse of Linearize. Values are rounded to the nearest
// integer to land back on the 16-bit grid.
func LogScale(t *Table) *Table {
	out := t.Clone()
	for _, col := range out.channelColumns() {
		vals := *col
		for i, v := range vals {
			vals[i] = math.Round((math.Log10(v) / 3.5) * 65536)
		}
	}
	return out
}

// channelColumns returns pointers to the cytometer channel columns only
// (time and pulse_width stay on their native scale).
func (t *Table) channelColumns() []*[]float64 {
	return []*[]float64{
		&t.D1, &t.D2, &t.FscSmall, &t.FscPerp, &t.FscBig,
		&t.Pe, &t.ChlSmall, &t.ChlBig,
	}
}
