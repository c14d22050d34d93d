package matrix

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func requireShapePanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, ErrShape), "panic %v does not wrap ErrShape", err)
	}()
	fn()
}

func randomMatrix(rows, cols int, rng *rand.Rand) *Matrix {
	return New(rows, cols).SetRandom(-2, 2, rng)
}

func TestNewRejectsEmptyDimensions(t *testing.T) {
	requireShapePanic(t, func() { New(0, 3) })
	requireShapePanic(t, func() { New(3, 0) })
	requireShapePanic(t, func() { FromRows([][]float64{{1, 2}, {3}}) })
}

func TestConstructorsShape(t *testing.T) {
	r := NewRow(4)
	assert.True(t, r.IsRow())
	assert.Equal(t, 4, r.Len())
	c := NewCol(3)
	assert.True(t, c.IsColumn())
	assert.Equal(t, 3, c.Rows())

	m := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, 6.0, m.At(1, 2))
}

func TestElementwiseOps(t *testing.T) {
	a := FromRows([][]float64{{1, 2}, {3, 4}})
	b := FromRows([][]float64{{5, 6}, {7, 8}})

	assert.Equal(t, []float64{6, 8, 10, 12}, Sum(a, b).Values())
	assert.Equal(t, []float64{-4, -4, -4, -4}, Difference(a, b).Values())
	assert.Equal(t, []float64{5, 12, 21, 32}, Hadamard(a, b).Values())
	assert.Equal(t, []float64{2, 4, 6, 8}, Scaled(a, 2).Values())
	assert.Equal(t, []float64{1, 2, 3, 4}, a.Values(), "pure helpers must not mutate operands")

	requireShapePanic(t, func() { a.Add(NewRow(4)) })
	requireShapePanic(t, func() { a.PMult(NewCol(2)) })
}

func TestDotMatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randomMatrix(3, 5, rng)
	b := randomMatrix(5, 4, rng)

	got := Dot(a, b)
	require.Equal(t, 3, got.Rows())
	require.Equal(t, 4, got.Cols())

	var want mat.Dense
	want.Mul(mat.NewDense(3, 5, a.Values()), mat.NewDense(5, 4, b.Values()))
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, want.At(i, j), got.At(i, j), 1e-12)
		}
	}

	requireShapePanic(t, func() { Dot(a, a) })
}

func TestDotAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 20; trial++ {
		m, n, p, q := 1+rng.Intn(5), 1+rng.Intn(5), 1+rng.Intn(5), 1+rng.Intn(5)
		a, b, c := randomMatrix(m, n, rng), randomMatrix(n, p, rng), randomMatrix(p, q, rng)
		left := Dot(Dot(a, b), c)
		right := Dot(a, Dot(b, c))
		require.True(t, left.SameShape(right))
		for i, v := range left.Values() {
			assert.InDelta(t, v, right.Values()[i], 1e-9)
		}
	}
}

func TestMDotInPlace(t *testing.T) {
	row := RowOf(1, 2)
	row.MDot(FromRows([][]float64{{1, 0, 2}, {0, 1, 3}}))
	assert.Equal(t, []float64{1, 2, 8}, row.Values())
	assert.Equal(t, 3, row.Cols())
}

func TestTransposeInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := randomMatrix(3, 7, rng)
	tr := Transpose(a)
	assert.Equal(t, 7, tr.Rows())
	assert.Equal(t, a.At(2, 5), tr.At(5, 2))
	assert.True(t, Transpose(tr).Equal(a))
}

func TestRowAppendDeleteLastColInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for n := 1; n < 6; n++ {
		v := randomMatrix(1, n, rng)
		orig := v.Clone()
		v.RowAppend(rng.Float64())
		require.Equal(t, n+1, v.Cols())
		v.DeleteLastCol()
		assert.True(t, v.Equal(orig))
	}
	requireShapePanic(t, func() { New(2, 2).RowAppend(1) })
	requireShapePanic(t, func() { NewRow(1).DeleteLastCol() })
}

func TestDeleteLastColMultiRow(t *testing.T) {
	m := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	m.DeleteLastCol()
	assert.Equal(t, []float64{1, 2, 4, 5}, m.Values())
}

func TestRowConcatAndSlice(t *testing.T) {
	a := RowOf(1, 2)
	b := RowOf(3)
	c := RowConcat(a, b, RowOf(4, 5))
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, c.Values())
	assert.Equal(t, []float64{2, 3, 4}, RowSlice(c, 1, 4).Values())

	a.RowConcatenate(b)
	assert.Equal(t, []float64{1, 2, 3}, a.Values())
	requireShapePanic(t, func() { RowSlice(c, 3, 3) })
}

func TestCloneIsDeep(t *testing.T) {
	a := RowOf(1, 2, 3)
	b := a.Clone()
	b.Set(0, 0, 9)
	assert.Equal(t, 1.0, a.At(0, 0))
}

func TestCloneRandomizedBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := New(10, 10)
	b := a.CloneRandomized(0.25, rng)
	changed := false
	for _, v := range b.Values() {
		assert.Less(t, math.Abs(v), 0.25+1e-15)
		if v != 0 {
			changed = true
		}
	}
	assert.True(t, changed)
	assert.Equal(t, 0.0, a.AbsAvg(), "source must stay untouched")
}

func TestAveragesAndFinite(t *testing.T) {
	m := RowOf(-1, 2, -3, 4)
	assert.Equal(t, 0.5, m.Avg())
	assert.Equal(t, 2.5, m.AbsAvg())
	assert.True(t, m.IsFinite())
	assert.True(t, m.IsAlwaysLessThan(5))
	assert.False(t, m.IsAlwaysLessThan(4))

	m.Set(0, 1, math.NaN())
	assert.False(t, m.IsFinite())
	m.Set(0, 1, math.Inf(-1))
	assert.False(t, m.IsFinite())
}

func TestRowAndCol(t *testing.T) {
	m := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	assert.Equal(t, []float64{3, 4}, m.Row(1).Values())
	assert.Equal(t, []float64{2, 4, 6}, m.Col(1).Values())
}

func TestTextRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	m := randomMatrix(3, 4, rng)
	m.Set(0, 0, 1e-300)
	m.Set(2, 3, -123456.789)

	text, err := m.MarshalText()
	require.NoError(t, err)

	got, err := Parse(string(text))
	require.NoError(t, err)
	assert.True(t, got.Equal(m), "round trip must be exact")
}

func TestTextFormat(t *testing.T) {
	text, err := RowOf(0.5, -1, 2).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1 3 0.5 -1 2", string(text))
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"2",
		"2 x 1 2",
		"0 2",
		"2 2 1 2 3",
		"1 2 1 nope",
	}
	for _, tc := range cases {
		_, err := Parse(tc)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", tc)
	}
}
