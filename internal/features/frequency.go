package features

import (
	"github.com/Veraticus/intelliinspect/internal/table"
)

// FrequencyMap maps category values to their training occurrence count.
// The missing category is counted like any other value.
type FrequencyMap struct {
	counts  map[string]int
	Column  string
	missing int
}

// FitFrequency counts the values of a training column.
func FitFrequency(col *table.Column) *FrequencyMap {
	f := &FrequencyMap{Column: col.Name, counts: make(map[string]int)}
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Text(i)
		if !ok {
			f.missing++
			continue
		}
		f.counts[v]++
	}
	return f
}

// Count returns the training count for a value; ok is false for unseen values.
func (f *FrequencyMap) Count(value string, missing bool) (int, bool) {
	if missing {
		return f.missing, f.missing > 0
	}
	n, ok := f.counts[value]
	return n, ok
}

// Transform encodes a column. Values never seen in training become 0.
func (f *FrequencyMap) Transform(col *table.Column) []float32 {
	out := make([]float32, col.Len())
	for i := range out {
		v, ok := col.Text(i)
		if n, seen := f.Count(v, !ok); seen {
			out[i] = float32(n)
		}
	}
	return out
}

// Len returns the number of distinct training values, missing included.
func (f *FrequencyMap) Len() int {
	n := len(f.counts)
	if f.missing > 0 {
		n++
	}
	return n
}
