package gbdt

import "sort"

// node is a tree node. Leaves carry a value; internal nodes send a row left
// when its feature value is <= threshold. Absent sparse entries read as zero.
type node struct {
	threshold float32
	value     float64
	feature   int
	left      int
	right     int
	leaf      bool
}

type tree struct {
	nodes []node
}

func newTree() *tree {
	return &tree{nodes: []node{{leaf: true}}}
}

// split turns leaf n into an internal node and returns the child ids.
func (t *tree) split(n, feature int, threshold float32) (int, int) {
	left := len(t.nodes)
	t.nodes = append(t.nodes, node{leaf: true}, node{leaf: true})
	t.nodes[n] = node{feature: feature, threshold: threshold, left: left, right: left + 1}
	return left, left + 1
}

func (t *tree) setLeaf(n int, value float64) {
	t.nodes[n].leaf = true
	t.nodes[n].value = value
}

// predict walks a sparse row given as sorted column indices and values.
func (t *tree) predict(idx []int, vals []float32) float64 {
	n := 0
	for !t.nodes[n].leaf {
		nd := &t.nodes[n]
		if lookup(idx, vals, nd.feature) <= nd.threshold {
			n = nd.left
		} else {
			n = nd.right
		}
	}
	return t.nodes[n].value
}

func (t *tree) leaves() int {
	count := 0
	for _, n := range t.nodes {
		if n.leaf {
			count++
		}
	}
	return count
}

func lookup(idx []int, vals []float32, feature int) float32 {
	k := sort.SearchInts(idx, feature)
	if k < len(idx) && idx[k] == feature {
		return vals[k]
	}
	return 0
}
