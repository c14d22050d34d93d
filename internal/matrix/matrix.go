// Package matrix implements the dense row-major float64 matrices used by the
// gates. Shape violations are programmer errors and panic with an error
// wrapping ErrShape; parse failures are returned as errors wrapping
// ErrMalformed.
package matrix

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

var (
	// ErrShape reports a contract violation on matrix dimensions.
	ErrShape = errors.New("matrix: shape violation")
	// ErrNotFinite reports a NaN or infinite element where finite values are required.
	ErrNotFinite = errors.New("matrix: non-finite value")
	// ErrMalformed reports an unparsable text form.
	ErrMalformed = errors.New("matrix: malformed text")
)

// Matrix is a rows×cols grid stored row-major in a flat buffer.
// len(data) == rows*cols at all times.
type Matrix struct {
	rows, cols int
	data       []float64
}

func shapef(format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{ErrShape}, args...)...))
}

// New returns a zero-filled rows×cols matrix.
func New(rows, cols int) *Matrix {
	if rows <= 0 || cols <= 0 {
		shapef("New(%d,%d): dimensions must be > 0", rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// NewRow returns a 1×n zero matrix.
func NewRow(n int) *Matrix { return New(1, n) }

// NewCol returns an n×1 zero matrix.
func NewCol(n int) *Matrix { return New(n, 1) }

// FromRows copies a rectangular slice of rows.
func FromRows(rows [][]float64) *Matrix {
	if len(rows) == 0 || len(rows[0]) == 0 {
		shapef("FromRows: empty input")
	}
	m := New(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			shapef("FromRows: row %d has %d values, want %d", i, len(row), m.cols)
		}
		copy(m.data[i*m.cols:], row)
	}
	return m
}

// RowOf returns a row vector holding a copy of values.
func RowOf(values ...float64) *Matrix {
	m := NewRow(len(values))
	copy(m.data, values)
	return m
}

// ColOf returns a column vector holding a copy of values.
func ColOf(values ...float64) *Matrix {
	m := NewCol(len(values))
	copy(m.data, values)
	return m
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

// Len returns rows*cols.
func (m *Matrix) Len() int { return len(m.data) }

// At returns the element at (row, col).
func (m *Matrix) At(row, col int) float64 {
	m.checkIndex(row, col)
	return m.data[row*m.cols+col]
}

// Set assigns v at (row, col).
func (m *Matrix) Set(row, col int, v float64) {
	m.checkIndex(row, col)
	m.data[row*m.cols+col] = v
}

// Values returns a copy of the row-major buffer.
func (m *Matrix) Values() []float64 {
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out
}

func (m *Matrix) checkIndex(row, col int) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		shapef("index (%d,%d) outside %dx%d", row, col, m.rows, m.cols)
	}
}

func (m *Matrix) IsRow() bool    { return m.rows == 1 }
func (m *Matrix) IsColumn() bool { return m.cols == 1 }
func (m *Matrix) IsVector() bool { return m.rows == 1 || m.cols == 1 }

// IsFinite reports whether no element is NaN or infinite.
func (m *Matrix) IsFinite() bool {
	for _, v := range m.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsAlwaysLessThan reports whether every element is strictly below v.
func (m *Matrix) IsAlwaysLessThan(v float64) bool {
	for _, x := range m.data {
		if x >= v {
			return false
		}
	}
	return true
}

// SameShape reports whether m and o have identical dimensions.
func (m *Matrix) SameShape(o *Matrix) bool {
	return m.rows == o.rows && m.cols == o.cols
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{rows: m.rows, cols: m.cols, data: make([]float64, len(m.data))}
	copy(out.data, m.data)
	return out
}

// CopyFrom overwrites m with the shape and contents of src.
func (m *Matrix) CopyFrom(src *Matrix) {
	m.rows, m.cols = src.rows, src.cols
	m.data = append(m.data[:0], src.data...)
}

// CloneRandomized returns a copy with uniform(-magnitude, magnitude) noise
// added to every element.
func (m *Matrix) CloneRandomized(magnitude float64, rng *rand.Rand) *Matrix {
	out := &Matrix{rows: m.rows, cols: m.cols, data: make([]float64, len(m.data))}
	for i, v := range m.data {
		out.data[i] = v + Uniform(-magnitude, magnitude, rng)
	}
	return out
}

// Uniform draws from [min, max). Bounds may be given in either order;
// equal bounds return min without consuming randomness.
func Uniform(min, max float64, rng *rand.Rand) float64 {
	if min == max {
		return min
	}
	if min > max {
		min, max = max, min
	}
	return min + rng.Float64()*(max-min)
}

// SetZero fills m with zeros.
func (m *Matrix) SetZero() *Matrix {
	clear(m.data)
	return m
}

// SetRandom fills m with uniform values in [min, max).
func (m *Matrix) SetRandom(min, max float64, rng *rand.Rand) *Matrix {
	for i := range m.data {
		m.data[i] = Uniform(min, max, rng)
	}
	return m
}

// Row returns a copy of row i as a row vector.
func (m *Matrix) Row(i int) *Matrix {
	if i < 0 || i >= m.rows {
		shapef("Row(%d) outside %d rows", i, m.rows)
	}
	return RowOf(m.data[i*m.cols : (i+1)*m.cols]...)
}

// Col returns a copy of column j as a column vector.
func (m *Matrix) Col(j int) *Matrix {
	if j < 0 || j >= m.cols {
		shapef("Col(%d) outside %d cols", j, m.cols)
	}
	out := NewCol(m.rows)
	for i := 0; i < m.rows; i++ {
		out.data[i] = m.data[i*m.cols+j]
	}
	return out
}

// Avg returns the mean of all elements.
func (m *Matrix) Avg() float64 {
	sum := 0.0
	for _, v := range m.data {
		sum += v
	}
	return sum / float64(len(m.data))
}

// AbsAvg returns the mean absolute value of all elements.
func (m *Matrix) AbsAvg() float64 {
	sum := 0.0
	for _, v := range m.data {
		sum += math.Abs(v)
	}
	return sum / float64(len(m.data))
}

// Equal reports whether both matrices have the same shape and elements.
func (m *Matrix) Equal(o *Matrix) bool {
	if !m.SameShape(o) {
		return false
	}
	for i, v := range m.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}

// String renders the matrix as a fixed-width table, one line per row.
func (m *Matrix) String() string {
	var b strings.Builder
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			fmt.Fprintf(&b, "%-9s", fmt.Sprintf("%.6f", m.data[i*m.cols+j]))
			if j != m.cols-1 {
				b.WriteString(" | ")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
