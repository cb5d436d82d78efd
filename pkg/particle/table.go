// Package particle provides the shared particle data types for SeaFlow
// event (EVT) and focused particle (OPP) processing.
package particle

// Columns lists the data columns of a raw SeaFlow particle table, in the
// fixed order they appear in the instrument's binary files.
var Columns = []string{
	"time", "pulse_width", "D1", "D2", "fsc_small", "fsc_perp", "fsc_big",
	"pe", "chl_small", "chl_big",
}

// ChannelColumns lists the flow cytometer channel data columns (everything
// after time and pulse_width).
var ChannelColumns = Columns[2:]

// NumChannels is the number of data columns per particle.
const NumChannels = 10

// MaxChannelValue is the largest value representable in the on-disk
// unsigned 16-bit channel domain.
const MaxChannelValue = 65535

// Table holds particle data in column-major order. Channel values are
// widened to float64 for classification arithmetic; on disk they are
// unsigned 16-bit integers.
type Table struct {
	Time       []float64
	PulseWidth []float64
	D1         []float64
	D2         []float64
	FscSmall   []float64
	FscPerp    []float64
	FscBig     []float64
	Pe         []float64
	ChlSmall   []float64
	ChlBig     []float64
}

// New creates an empty table with capacity for n particles.
func New(n int) *Table {
	t := &Table{}
	for _, col := range t.columns() {
		*col = make([]float64, 0, n)
	}
	return t
}

// columns returns pointers to the column slices in file order.
func (t *Table) columns() [NumChannels]*[]float64 {
	return [NumChannels]*[]float64{
		&t.Time, &t.PulseWidth, &t.D1, &t.D2, &t.FscSmall,
		&t.FscPerp, &t.FscBig, &t.Pe, &t.ChlSmall, &t.ChlBig,
	}
}

// Len returns the number of particles in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Time)
}

// AppendRow appends one particle with values in file column order.
func (t *Table) AppendRow(row [NumChannels]float64) {
	for i, col := range t.columns() {
		*col = append(*col, row[i])
	}
}

// Row returns the values of particle i in file column order.
func (t *Table) Row(i int) [NumChannels]float64 {
	var row [NumChannels]float64
	for j, col := range t.columns() {
		row[j] = (*col)[i]
	}
	return row
}

// Select returns a new table containing the particles at the given indices,
// in the given order.
func (t *Table) Select(indices []int) *Table {
	out := New(len(indices))
	for _, i := range indices {
		out.AppendRow(t.Row(i))
	}
	return out
}

// Equal reports whether two tables hold identical values.
func (t *Table) Equal(o *Table) bool {
	if t.Len() != o.Len() {
		return false
	}
	tc, oc := t.columns(), o.columns()
	for i := range tc {
		a, b := *tc[i], *oc[i]
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.Len())
	tc, oc := t.columns(), out.columns()
	for i := range tc {
		*oc[i] = append((*oc[i])[:0], *tc[i]...)
	}
	return out
}
