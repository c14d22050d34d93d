package matrix

import (
	"fmt"
	"strconv"
	"strings"
)

// MarshalText encodes m as "<rows> <cols> <e0> <e1> ...". Elements use the
// shortest representation that parses back to the identical float64.
func (m *Matrix) MarshalText() ([]byte, error) {
	var b strings.Builder
	b.WriteString(strconv.Itoa(m.rows))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(m.cols))
	for _, v := range m.data {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return []byte(b.String()), nil
}

// UnmarshalText parses the form written by MarshalText. The element count
// must equal rows*cols exactly.
func (m *Matrix) UnmarshalText(text []byte) error {
	fields := strings.Fields(string(text))
	if len(fields) < 2 {
		return fmt.Errorf("%w: missing header", ErrMalformed)
	}
	rows, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("%w: rows: %v", ErrMalformed, err)
	}
	cols, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("%w: cols: %v", ErrMalformed, err)
	}
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrMalformed, rows, cols)
	}
	values := fields[2:]
	if len(values) != rows*cols {
		return fmt.Errorf("%w: %d values for %dx%d", ErrMalformed, len(values), rows, cols)
	}
	data := make([]float64, len(values))
	for i, s := range values {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: value %d: %v", ErrMalformed, i, err)
		}
		data[i] = v
	}
	m.rows, m.cols, m.data = rows, cols, data
	return nil
}

// Parse decodes a single-line matrix text form.
func Parse(line string) (*Matrix, error) {
	m := &Matrix{}
	if err := m.UnmarshalText([]byte(line)); err != nil {
		return nil, err
	}
	return m, nil
}
