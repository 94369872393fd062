package gbdt

import (
	"fmt"
	"math"

	"github.com/Veraticus/intelliinspect/internal/classifier"
)

// metricFunc scores probabilities against labels; lower is better.
type metricFunc func(probs [][]float64, y []int) float64

var metricFuncs = map[string]metricFunc{
	classifier.MetricLogLoss:      logLoss,
	classifier.MetricMultiLogLoss: logLoss,
	classifier.MetricError:        binaryError,
	classifier.MetricMultiError:   multiError,
}

func resolveMetric(name string, obj objective) (metricFunc, error) {
	fn, ok := metricFuncs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	if obj.groups() > 1 && (name == classifier.MetricLogLoss || name == classifier.MetricError) {
		return nil, fmt.Errorf("%w: %s requires a binary objective, have %s", ErrMetricObjective, name, obj.name())
	}
	return fn, nil
}

func defaultMetric(obj objective) string {
	if obj.groups() > 1 {
		return classifier.MetricMultiLogLoss
	}
	return classifier.MetricLogLoss
}

func logLoss(probs [][]float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i, label := range y {
		p := math.Min(math.Max(probs[i][label], probEps), 1-probEps)
		sum -= math.Log(p)
	}
	return sum / float64(len(y))
}

func binaryError(probs [][]float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	wrong := 0
	for i, label := range y {
		pred := 0
		if probs[i][1] > 0.5 {
			pred = 1
		}
		if pred != label {
			wrong++
		}
	}
	return float64(wrong) / float64(len(y))
}

func multiError(probs [][]float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	wrong := 0
	for i, label := range y {
		if argmax(probs[i]) != label {
			wrong++
		}
	}
	return float64(wrong) / float64(len(y))
}

func argmax(p []float64) int {
	best := 0
	for c := 1; c < len(p); c++ {
		if p[c] > p[best] {
			best = c
		}
	}
	return best
}
