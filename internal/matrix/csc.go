package matrix

// CSC is the column-major view of a CSR matrix. Column j owns
// RowIdx[ColPtr[j]:ColPtr[j+1]] in increasing row order.
type CSC struct {
	ColPtr  []int
	RowIdx  []int
	Data    []float32
	NumRows int
	NumCols int
}

// ToCSC transposes the storage layout of m.
func (m *CSR) ToCSC() *CSC {
	c := &CSC{
		NumRows: m.Rows,
		NumCols: m.Cols,
		ColPtr:  make([]int, m.Cols+1),
		RowIdx:  make([]int, len(m.Data)),
		Data:    make([]float32, len(m.Data)),
	}
	for _, j := range m.Indices {
		c.ColPtr[j+1]++
	}
	for j := 0; j < m.Cols; j++ {
		c.ColPtr[j+1] += c.ColPtr[j]
	}
	next := append([]int(nil), c.ColPtr[:m.Cols]...)
	for i := 0; i < m.Rows; i++ {
		idx, vals := m.Row(i)
		for k, j := range idx {
			p := next[j]
			c.RowIdx[p] = i
			c.Data[p] = vals[k]
			next[j]++
		}
	}
	return c
}

// Column returns the row indices and values stored in column j.
func (c *CSC) Column(j int) ([]int, []float32) {
	lo, hi := c.ColPtr[j], c.ColPtr[j+1]
	return c.RowIdx[lo:hi], c.Data[lo:hi]
}
