package matrix

import "math"

func (m *Matrix) mustSameShape(op string, o *Matrix) {
	if !m.SameShape(o) {
		shapef("%s: (%dx%d) vs (%dx%d)", op, m.rows, m.cols, o.rows, o.cols)
	}
}

func (m *Matrix) mustRow(op string) {
	if m.rows != 1 {
		shapef("%s: want row vector, got %dx%d", op, m.rows, m.cols)
	}
}

// Add adds o into m elementwise.
func (m *Matrix) Add(o *Matrix) *Matrix {
	m.mustSameShape("Add", o)
	for i, v := range o.data {
		m.data[i] += v
	}
	return m
}

// Sub subtracts o from m elementwise.
func (m *Matrix) Sub(o *Matrix) *Matrix {
	m.mustSameShape("Sub", o)
	for i, v := range o.data {
		m.data[i] -= v
	}
	return m
}

// PMult multiplies m by o elementwise (Hadamard product).
func (m *Matrix) PMult(o *Matrix) *Matrix {
	m.mustSameShape("PMult", o)
	for i, v := range o.data {
		m.data[i] *= v
	}
	return m
}

// Scale multiplies every element by s.
func (m *Matrix) Scale(s float64) *Matrix {
	for i := range m.data {
		m.data[i] *= s
	}
	return m
}

// DivScalar divides every element by s.
func (m *Matrix) DivScalar(s float64) *Matrix {
	for i := range m.data {
		m.data[i] /= s
	}
	return m
}

// Abs replaces every element by its absolute value.
func (m *Matrix) Abs() *Matrix {
	for i, v := range m.data {
		m.data[i] = math.Abs(v)
	}
	return m
}

// Apply replaces every element x by fn(x).
func (m *Matrix) Apply(fn func(float64) float64) *Matrix {
	for i, v := range m.data {
		m.data[i] = fn(v)
	}
	return m
}

// MDot replaces m by the product m·o.
func (m *Matrix) MDot(o *Matrix) *Matrix {
	p := Dot(m, o)
	m.cols = p.cols
	m.data = p.data
	return m
}

// RowAppend grows a row vector by one trailing element.
func (m *Matrix) RowAppend(v float64) *Matrix {
	m.mustRow("RowAppend")
	m.data = append(m.data, v)
	m.cols++
	return m
}

// RowConcatenate appends the elements of row vector o to row vector m.
func (m *Matrix) RowConcatenate(o *Matrix) *Matrix {
	m.mustRow("RowConcatenate")
	o.mustRow("RowConcatenate")
	m.data = append(m.data, o.data...)
	m.cols += o.cols
	return m
}

// RowDeleteLast drops the last element of a row vector.
func (m *Matrix) RowDeleteLast() *Matrix {
	m.mustRow("RowDeleteLast")
	if m.cols <= 1 {
		shapef("RowDeleteLast: row of width %d", m.cols)
	}
	m.data = m.data[:len(m.data)-1]
	m.cols--
	return m
}

// DeleteLastCol removes the last column from every row.
func (m *Matrix) DeleteLastCol() *Matrix {
	if m.cols <= 1 {
		shapef("DeleteLastCol: matrix has %d cols", m.cols)
	}
	newCols := m.cols - 1
	data := make([]float64, m.rows*newCols)
	for i := 0; i < m.rows; i++ {
		copy(data[i*newCols:(i+1)*newCols], m.data[i*m.cols:i*m.cols+newCols])
	}
	m.cols = newCols
	m.data = data
	return m
}

// Dot returns a·b. The accumulation runs row, column, then inner index.
func Dot(a, b *Matrix) *Matrix {
	if a.cols != b.rows {
		shapef("Dot: (%dx%d) · (%dx%d)", a.rows, a.cols, b.rows, b.cols)
	}
	out := New(a.rows, b.cols)
	for i := 0; i < a.rows; i++ {
		aRow := a.data[i*a.cols : (i+1)*a.cols]
		for j := 0; j < b.cols; j++ {
			sum := 0.0
			for k, av := range aRow {
				sum += av * b.data[k*b.cols+j]
			}
			out.data[i*b.cols+j] = sum
		}
	}
	return out
}

// Transpose returns a new cols×rows matrix.
func Transpose(m *Matrix) *Matrix {
	out := New(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			out.data[j*m.rows+i] = m.data[i*m.cols+j]
		}
	}
	return out
}

// Sum returns a+b.
func Sum(a, b *Matrix) *Matrix { return a.Clone().Add(b) }

// Difference returns a-b.
func Difference(a, b *Matrix) *Matrix { return a.Clone().Sub(b) }

// Hadamard returns the elementwise product of a and b.
func Hadamard(a, b *Matrix) *Matrix { return a.Clone().PMult(b) }

// Scaled returns m*s.
func Scaled(m *Matrix, s float64) *Matrix { return m.Clone().Scale(s) }

// RowAppended returns a copy of row vector m with v appended.
func RowAppended(m *Matrix, v float64) *Matrix {
	m.mustRow("RowAppended")
	out := &Matrix{rows: 1, cols: m.cols + 1, data: make([]float64, m.cols, m.cols+1)}
	copy(out.data, m.data)
	out.data = append(out.data, v)
	return out
}

// RowConcat returns the concatenation of row vectors.
func RowConcat(rows ...*Matrix) *Matrix {
	n := 0
	for _, r := range rows {
		r.mustRow("RowConcat")
		n += r.cols
	}
	out := NewRow(n)
	offset := 0
	for _, r := range rows {
		copy(out.data[offset:], r.data)
		offset += r.cols
	}
	return out
}

// RowSlice returns columns [from, to) of row vector m.
func RowSlice(m *Matrix, from, to int) *Matrix {
	m.mustRow("RowSlice")
	if from < 0 || to > m.cols || from >= to {
		shapef("RowSlice[%d:%d] of width %d", from, to, m.cols)
	}
	return RowOf(m.data[from:to]...)
}
