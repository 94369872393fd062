package gbdt

import "math"

const (
	probEps = 1e-15
	hessEps = 1e-16
)

// objective computes gradients and probabilities from raw margins.
// Margins are row-major with stride groups().
type objective interface {
	name() string
	groups() int
	baseMargin(y []int, weights []float64) []float64
	gradients(margins []float64, y []int, weights []float64, grad, hess []float64)
	probabilities(margins []float64, row int, out []float64)
	classes() int
}

type binaryLogistic struct{}

func (binaryLogistic) name() string { return "binary:logistic" }
func (binaryLogistic) groups() int  { return 1 }
func (binaryLogistic) classes() int { return 2 }

func (binaryLogistic) baseMargin(y []int, weights []float64) []float64 {
	var pos, total float64
	for i, label := range y {
		total += weights[i]
		if label == 1 {
			pos += weights[i]
		}
	}
	p := 0.5
	if total > 0 {
		p = pos / total
	}
	p = math.Min(math.Max(p, 1e-6), 1-1e-6)
	return []float64{math.Log(p / (1 - p))}
}

func (binaryLogistic) gradients(margins []float64, y []int, weights []float64, grad, hess []float64) {
	for i, label := range y {
		p := sigmoid(margins[i])
		grad[i] = (p - float64(label)) * weights[i]
		hess[i] = math.Max(p*(1-p), hessEps) * weights[i]
	}
}

func (binaryLogistic) probabilities(margins []float64, row int, out []float64) {
	p := sigmoid(margins[row])
	out[0] = 1 - p
	out[1] = p
}

type softmax struct {
	k int
}

func (s softmax) name() string { return "multi:softprob" }
func (s softmax) groups() int  { return s.k }
func (s softmax) classes() int { return s.k }

func (s softmax) baseMargin(_ []int, _ []float64) []float64 {
	return make([]float64, s.k)
}

func (s softmax) gradients(margins []float64, y []int, weights []float64, grad, hess []float64) {
	p := make([]float64, s.k)
	for i, label := range y {
		s.probabilities(margins, i, p)
		for c := 0; c < s.k; c++ {
			target := 0.0
			if c == label {
				target = 1
			}
			grad[i*s.k+c] = (p[c] - target) * weights[i]
			hess[i*s.k+c] = math.Max(2*p[c]*(1-p[c]), hessEps) * weights[i]
		}
	}
}

func (s softmax) probabilities(margins []float64, row int, out []float64) {
	m := margins[row*s.k : (row+1)*s.k]
	maxM := m[0]
	for _, v := range m[1:] {
		if v > maxM {
			maxM = v
		}
	}
	var sum float64
	for c, v := range m {
		out[c] = math.Exp(v - maxM)
		sum += out[c]
	}
	for c := range out[:s.k] {
		out[c] /= sum
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
