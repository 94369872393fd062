package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		NewNumeric("n", []float64{1, math.NaN(), 3.9, -2.7}),
		NewText("s", []string{"a", "", "c", "d"}, []bool{true, false, true, true}),
	)
	require.NoError(t, err)
	return tbl
}

func TestNew_Validation(t *testing.T) {
	_, err := New(NewNumeric("a", []float64{1}), NewNumeric("a", []float64{2}))
	require.ErrorIs(t, err, ErrDuplicateColumn)

	_, err = New(NewNumeric("a", []float64{1}), NewNumeric("b", []float64{1, 2}))
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestTable_TakeHeadWithout(t *testing.T) {
	tbl := sampleTable(t)

	taken := tbl.Take([]int{3, 0})
	require.Equal(t, 2, taken.Len())
	n, _ := taken.Column("n")
	assert.Equal(t, []float64{-2.7, 1}, n.Floats)
	s, _ := taken.Column("s")
	assert.Equal(t, []string{"d", "a"}, s.Strings)

	head := tbl.Head(2)
	assert.Equal(t, 2, head.Len())
	assert.Same(t, tbl, tbl.Head(0))
	assert.Same(t, tbl, tbl.Head(10))

	without := tbl.Without("n", "missing")
	assert.Equal(t, []string{"s"}, without.Names())
	assert.False(t, without.Has("n"))
	assert.True(t, tbl.Has("n"))
}

func TestColumn_Ints(t *testing.T) {
	tests := []struct {
		col     *Column
		name    string
		want    []int
		wantErr bool
	}{
		{name: "truncates floats", col: NewNumeric("y", []float64{1.9, 0, -1.5}), want: []int{1, 0, -1}},
		{name: "missing numeric", col: NewNumeric("y", []float64{1, math.NaN()}), wantErr: true},
		{name: "numeric text", col: NewText("y", []string{"1", "0"}, nil), want: []int{1, 0}},
		{name: "non-numeric text", col: NewText("y", []string{"1", "pass"}, nil), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.col.Ints()
			if tt.wantErr {
				var convErr *ConversionError
				require.ErrorAs(t, err, &convErr)
				assert.Equal(t, "y", convErr.Column)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumn_FloatAndText(t *testing.T) {
	tbl := sampleTable(t)
	n, _ := tbl.Column("n")
	s, _ := tbl.Column("s")

	v, ok := n.Float(2)
	assert.True(t, ok)
	assert.InDelta(t, 3.9, v, 1e-9)
	_, ok = n.Float(1)
	assert.False(t, ok)

	txt, ok := n.Text(0)
	assert.True(t, ok)
	assert.Equal(t, "1", txt)

	_, ok = s.Float(0)
	assert.False(t, ok)
	assert.True(t, s.IsMissing(1))
	assert.False(t, n.IsMissing(0))
}
