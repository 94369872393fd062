package gbdt

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const minSplitGain = 1e-6

type gradPair struct {
	g float64
	h float64
}

func (a *gradPair) add(b gradPair) {
	a.g += b.g
	a.h += b.h
}

type candidate struct {
	gain    float64
	bin     int
	feature int
}

// grower builds one regression tree per call over pre-binned data.
type grower struct {
	data           *quantized
	lambda         float64
	minChildWeight float64
	maxDepth       int
	workers        int
}

// grow fits a tree to the gradient pairs of the rows selected by rowNode
// (0 for a sampled row, -1 for an excluded one), considering only features.
// rowNode is consumed.
func (gr *grower) grow(ctx context.Context, gp []gradPair, rowNode []int32, features []int, eta float64) (*tree, error) {
	t := newTree()
	active := []int{0}

	for depth := 0; len(active) > 0; depth++ {
		totals := gr.nodeTotals(gp, rowNode, active)
		if depth >= gr.maxDepth || len(features) == 0 {
			for s, n := range active {
				t.setLeaf(n, leafWeight(totals[s], gr.lambda)*eta)
			}
			break
		}

		best, err := gr.findSplits(ctx, gp, rowNode, active, totals, features)
		if err != nil {
			return nil, err
		}

		slotOf := make(map[int32]int, len(active))
		var next []int
		children := make([][2]int32, len(active))
		for s, n := range active {
			c := best[s]
			if c.feature < 0 {
				t.setLeaf(n, leafWeight(totals[s], gr.lambda)*eta)
				children[s] = [2]int32{-1, -1}
				slotOf[int32(n)] = s
				continue
			}
			fb := gr.data.bins[c.feature]
			l, r := t.split(n, c.feature, fb.bounds[c.bin])
			children[s] = [2]int32{int32(l), int32(r)}
			slotOf[int32(n)] = s
			next = append(next, l, r)
		}

		gr.partition(rowNode, slotOf, children, best)
		active = next
	}
	return t, nil
}

// nodeTotals sums gradient pairs per active node.
func (gr *grower) nodeTotals(gp []gradPair, rowNode []int32, active []int) []gradPair {
	slot := make(map[int32]int, len(active))
	for s, n := range active {
		slot[int32(n)] = s
	}
	totals := make([]gradPair, len(active))
	for r, n := range rowNode {
		if n < 0 {
			continue
		}
		if s, ok := slot[n]; ok {
			totals[s].add(gp[r])
		}
	}
	return totals
}

// findSplits builds histograms for every active node, one feature per task,
// and returns the best split per node. Ties keep the lowest feature then bin.
func (gr *grower) findSplits(ctx context.Context, gp []gradPair, rowNode []int32, active []int, totals []gradPair, features []int) ([]candidate, error) {
	maxNode := 0
	for _, n := range active {
		if n > maxNode {
			maxNode = n
		}
	}
	slot := make([]int32, maxNode+1)
	for i := range slot {
		slot[i] = -1
	}
	for s, n := range active {
		slot[n] = int32(s)
	}

	perFeature := make([][]candidate, len(features))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(gr.workers)
	for fi, j := range features {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perFeature[fi] = gr.scanFeature(j, gp, rowNode, slot, totals)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := make([]candidate, len(active))
	for s := range best {
		best[s] = candidate{feature: -1}
		for fi := range features {
			c := perFeature[fi][s]
			if c.feature >= 0 && c.gain > best[s].gain {
				best[s] = c
			}
		}
	}
	return best, nil
}

func (gr *grower) scanFeature(j int, gp []gradPair, rowNode []int32, slot []int32, totals []gradPair) []candidate {
	fb := gr.data.bins[j]
	nBins := len(fb.bounds)
	hist := make([]gradPair, len(totals)*nBins)
	stored := make([]gradPair, len(totals))

	rows, _ := gr.data.csc.Column(j)
	lo := gr.data.csc.ColPtr[j]
	for k, r := range rows {
		n := rowNode[r]
		if n < 0 || int(n) >= len(slot) || slot[n] < 0 {
			continue
		}
		s := int(slot[n])
		b := int(gr.data.entries[lo+k])
		hist[s*nBins+b].add(gp[r])
		stored[s].add(gp[r])
	}

	out := make([]candidate, len(totals))
	for s, total := range totals {
		h := hist[s*nBins : (s+1)*nBins]
		h[fb.zeroBin].add(gradPair{g: total.g - stored[s].g, h: total.h - stored[s].h})

		out[s] = candidate{feature: -1}
		parent := score(total, gr.lambda)
		var left gradPair
		for b := 0; b < nBins-1; b++ {
			left.add(h[b])
			right := gradPair{g: total.g - left.g, h: total.h - left.h}
			if left.h < gr.minChildWeight || right.h < gr.minChildWeight {
				continue
			}
			gain := score(left, gr.lambda) + score(right, gr.lambda) - parent
			if gain > minSplitGain && gain > out[s].gain {
				out[s] = candidate{feature: j, bin: b, gain: gain}
			}
		}
	}
	return out
}

// partition moves each row of a split node to its child. Rows default to the
// side their zero value falls on and are corrected from the stored entries.
func (gr *grower) partition(rowNode []int32, slotOf map[int32]int, children [][2]int32, best []candidate) {
	next := make([]int32, len(rowNode))
	for r, n := range rowNode {
		if n < 0 {
			next[r] = -1
			continue
		}
		s := slotOf[n]
		c := best[s]
		if c.feature < 0 {
			next[r] = -1
			continue
		}
		if gr.data.bins[c.feature].zeroBin <= c.bin {
			next[r] = children[s][0]
		} else {
			next[r] = children[s][1]
		}
	}

	for s, c := range best {
		if c.feature < 0 {
			continue
		}
		rows, _ := gr.data.csc.Column(c.feature)
		lo := gr.data.csc.ColPtr[c.feature]
		for k, r := range rows {
			n := rowNode[r]
			if n < 0 {
				continue
			}
			if slotOf[n] != s {
				continue
			}
			if int(gr.data.entries[lo+k]) <= c.bin {
				next[r] = children[s][0]
			} else {
				next[r] = children[s][1]
			}
		}
	}
	copy(rowNode, next)
}

func score(p gradPair, lambda float64) float64 {
	return p.g * p.g / (p.h + lambda)
}

func leafWeight(p gradPair, lambda float64) float64 {
	return -p.g / (p.h + lambda)
}
