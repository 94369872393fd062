package gbdt

import (
	"sort"

	"github.com/Veraticus/intelliinspect/internal/matrix"
)

// featureBins holds the ordered upper bounds of one feature's histogram bins.
// A value v falls in the first bin k with v <= bounds[k].
type featureBins struct {
	bounds  []float32
	zeroBin int
}

func (f featureBins) bin(v float32) int {
	k := sort.Search(len(f.bounds), func(i int) bool { return v <= f.bounds[i] })
	if k == len(f.bounds) {
		k = len(f.bounds) - 1
	}
	return k
}

// quantized is the training matrix in column-major order with every stored
// entry mapped to its bin.
type quantized struct {
	csc     *matrix.CSC
	entries []uint16
	bins    []featureBins
}

func quantize(X *matrix.CSR, maxBins int) *quantized {
	if maxBins < 2 {
		maxBins = 2
	}
	csc := X.ToCSC()
	q := &quantized{
		csc:     csc,
		entries: make([]uint16, len(csc.Data)),
		bins:    make([]featureBins, csc.NumCols),
	}
	for j := 0; j < csc.NumCols; j++ {
		_, vals := csc.Column(j)
		fb := buildBins(vals, csc.NumRows-len(vals), maxBins)
		q.bins[j] = fb
		lo := csc.ColPtr[j]
		for k, v := range vals {
			q.entries[lo+k] = uint16(fb.bin(v))
		}
	}
	return q
}

// buildBins cuts the value distribution of a feature into at most maxBins
// groups of roughly equal weight. zeros counts the implicit zero entries.
func buildBins(vals []float32, zeros, maxBins int) featureBins {
	type valueCount struct {
		v float32
		n int
	}
	sorted := append([]float32(nil), vals...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })

	var distinct []valueCount
	zeroPlaced := zeros == 0
	add := func(v float32, n int) {
		if len(distinct) > 0 && distinct[len(distinct)-1].v == v {
			distinct[len(distinct)-1].n += n
			return
		}
		distinct = append(distinct, valueCount{v: v, n: n})
	}
	for _, v := range sorted {
		if !zeroPlaced && v > 0 {
			add(0, zeros)
			zeroPlaced = true
		}
		add(v, 1)
	}
	if !zeroPlaced {
		add(0, zeros)
	}
	if len(distinct) == 0 {
		return featureBins{bounds: []float32{0}}
	}

	var bounds []float32
	if len(distinct) <= maxBins {
		bounds = make([]float32, len(distinct))
		for i, d := range distinct {
			bounds[i] = d.v
		}
	} else {
		total := 0
		for _, d := range distinct {
			total += d.n
		}
		cum := 0
		next := 1
		for i, d := range distinct {
			cum += d.n
			last := i == len(distinct)-1
			if last || cum*maxBins >= next*total {
				bounds = append(bounds, d.v)
				for cum*maxBins >= next*total && next < maxBins {
					next++
				}
			}
		}
	}

	fb := featureBins{bounds: bounds}
	fb.zeroBin = fb.bin(0)
	return fb
}
