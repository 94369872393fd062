package gbdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/intelliinspect/internal/matrix"
)

func TestBuildBins(t *testing.T) {
	tests := []struct {
		name     string
		vals     []float32
		zeros    int
		maxBins  int
		want     []float32
		wantZero int
	}{
		{name: "all zero", zeros: 5, maxBins: 8, want: []float32{0}, wantZero: 0},
		{name: "zero between negatives and positives", vals: []float32{-2, 3, -2, 1}, zeros: 2, maxBins: 8, want: []float32{-2, 0, 1, 3}, wantZero: 1},
		{name: "no implicit zeros", vals: []float32{1, 2}, zeros: 0, maxBins: 8, want: []float32{1, 2}, wantZero: 0},
		{name: "zero after negatives only", vals: []float32{-1}, zeros: 1, maxBins: 8, want: []float32{-1, 0}, wantZero: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := buildBins(tt.vals, tt.zeros, tt.maxBins)
			assert.Equal(t, tt.want, fb.bounds)
			assert.Equal(t, tt.wantZero, fb.zeroBin)
		})
	}
}

func TestBuildBins_Quantiles(t *testing.T) {
	vals := make([]float32, 1000)
	for i := range vals {
		vals[i] = float32(i + 1)
	}
	fb := buildBins(vals, 0, 16)
	assert.LessOrEqual(t, len(fb.bounds), 16)
	assert.Equal(t, float32(1000), fb.bounds[len(fb.bounds)-1])
	for i := 1; i < len(fb.bounds); i++ {
		assert.Less(t, fb.bounds[i-1], fb.bounds[i])
	}
	assert.Equal(t, len(fb.bounds)-1, fb.bin(5000), "values above range use the last bin")
}

func TestQuantize(t *testing.T) {
	X, err := matrix.FromDense(3, 2, []float32{
		0, 5,
		2, 0,
		1, 5,
	})
	require.NoError(t, err)

	q := quantize(X, 256)
	assert.Equal(t, []float32{0, 1, 2}, q.bins[0].bounds)
	assert.Equal(t, []float32{0, 5}, q.bins[1].bounds)
	// column 0 stores rows 1 and 2 with values 2 and 1
	assert.Equal(t, []uint16{2, 1, 1, 1}, q.entries)
}

func TestTree_Predict(t *testing.T) {
	tr := newTree()
	l, r := tr.split(0, 1, 0.5)
	tr.setLeaf(l, -1)
	tr.setLeaf(r, 1)

	assert.Equal(t, -1.0, tr.predict(nil, nil), "absent entry reads as zero")
	assert.Equal(t, 1.0, tr.predict([]int{1}, []float32{2}))
	assert.Equal(t, -1.0, tr.predict([]int{0}, []float32{9}))
	assert.Equal(t, 2, tr.leaves())
}
