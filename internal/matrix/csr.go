// Package matrix implements the float32 compressed sparse row matrices that
// carry encoded features between the encoder and the classifiers.
package matrix

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when matrix dimensions do not line up.
var ErrShape = errors.New("matrix shape mismatch")

// CSR is a compressed sparse row matrix. Row i owns
// Indices[IndPtr[i]:IndPtr[i+1]] with strictly increasing column indices.
// Explicit zeros are never stored.
type CSR struct {
	IndPtr  []int
	Indices []int
	Data    []float32
	Rows    int
	Cols    int
}

// Empty returns a rows x cols matrix with no stored values.
func Empty(rows, cols int) *CSR {
	return &CSR{Rows: rows, Cols: cols, IndPtr: make([]int, rows+1)}
}

// FromDense converts a row-major dense block, dropping zeros.
func FromDense(rows, cols int, data []float32) (*CSR, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShape, len(data), rows, cols)
	}
	b := NewBuilder(cols)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		for j, v := range row {
			b.Set(j, v)
		}
		b.EndRow()
	}
	return b.Build(), nil
}

// NNZ returns the number of stored values.
func (m *CSR) NNZ() int { return len(m.Data) }

// Row returns the column indices and values stored in row i.
// The slices alias the matrix and must not be modified.
func (m *CSR) Row(i int) ([]int, []float32) {
	lo, hi := m.IndPtr[i], m.IndPtr[i+1]
	return m.Indices[lo:hi], m.Data[lo:hi]
}

// At returns the value at (i, j).
func (m *CSR) At(i, j int) float32 {
	cols, vals := m.Row(i)
	lo, hi := 0, len(cols)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		switch {
		case cols[mid] == j:
			return vals[mid]
		case cols[mid] < j:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0
}

// Head returns the first n rows as a new matrix that shares no storage with m.
func (m *CSR) Head(n int) *CSR {
	if n < 0 || n > m.Rows {
		n = m.Rows
	}
	end := m.IndPtr[n]
	out := &CSR{
		Rows:    n,
		Cols:    m.Cols,
		IndPtr:  append([]int(nil), m.IndPtr[:n+1]...),
		Indices: append([]int(nil), m.Indices[:end]...),
		Data:    append([]float32(nil), m.Data[:end]...),
	}
	return out
}

// HStack concatenates blocks column-wise. All blocks need the same row count.
func HStack(blocks ...*CSR) (*CSR, error) {
	if len(blocks) == 0 {
		return Empty(0, 0), nil
	}
	rows := blocks[0].Rows
	cols, nnz := 0, 0
	for _, b := range blocks {
		if b.Rows != rows {
			return nil, fmt.Errorf("%w: hstack of %d and %d rows", ErrShape, rows, b.Rows)
		}
		cols += b.Cols
		nnz += b.NNZ()
	}

	out := &CSR{
		Rows:    rows,
		Cols:    cols,
		IndPtr:  make([]int, rows+1),
		Indices: make([]int, 0, nnz),
		Data:    make([]float32, 0, nnz),
	}
	for i := 0; i < rows; i++ {
		offset := 0
		for _, b := range blocks {
			idx, vals := b.Row(i)
			for k, j := range idx {
				out.Indices = append(out.Indices, j+offset)
				out.Data = append(out.Data, vals[k])
			}
			offset += b.Cols
		}
		out.IndPtr[i+1] = len(out.Data)
	}
	return out, nil
}

// Dense expands the matrix into a gonum dense matrix.
func (m *CSR) Dense() *mat.Dense {
	if m.Rows == 0 || m.Cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.Rows, m.Cols, nil)
	for i := 0; i < m.Rows; i++ {
		idx, vals := m.Row(i)
		for k, j := range idx {
			d.Set(i, j, float64(vals[k]))
		}
	}
	return d
}

// Builder assembles a CSR matrix row by row.
type Builder struct {
	m   *CSR
	col int
}

// NewBuilder starts an empty matrix with a fixed column count.
func NewBuilder(cols int) *Builder {
	return &Builder{m: &CSR{Cols: cols, IndPtr: []int{0}}, col: -1}
}

// Set stores v at column j of the current row. Columns must be added in
// increasing order; zeros are skipped.
func (b *Builder) Set(j int, v float32) {
	if j <= b.col || j >= b.m.Cols {
		panic(fmt.Sprintf("matrix: column %d out of order or range", j))
	}
	b.col = j
	if v == 0 {
		return
	}
	b.m.Indices = append(b.m.Indices, j)
	b.m.Data = append(b.m.Data, v)
}

// EndRow closes the current row.
func (b *Builder) EndRow() {
	b.m.Rows++
	b.m.IndPtr = append(b.m.IndPtr, len(b.m.Data))
	b.col = -1
}

// Build returns the assembled matrix.
func (b *Builder) Build() *CSR {
	return b.m
}
