// Package metrics scores predictions and rebuilds the per-round training
// history reported alongside them.
package metrics

import (
	"github.com/Veraticus/intelliinspect/internal/classifier"
)

// Confusion counts binary outcomes over labels {0, 1}.
type Confusion struct {
	TP int
	TN int
	FP int
	FN int
}

// Scores are fractions in [0, 1] for positive label 1.
type Scores struct {
	Confusion Confusion
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// Evaluate compares yPred to yTrue. Zero divisions score 0. Rows with labels
// outside {0, 1} count toward accuracy only. A length mismatch yields zero
// scores and an all-zero confusion matrix.
func Evaluate(yTrue, yPred []int) Scores {
	if len(yTrue) != len(yPred) || len(yTrue) == 0 {
		return Scores{}
	}

	var s Scores
	correct := 0
	predPos, truePos := 0, 0
	for i, want := range yTrue {
		got := yPred[i]
		if want == got {
			correct++
		}
		if got == 1 {
			predPos++
		}
		if want == 1 {
			truePos++
		}
		switch {
		case want == 1 && got == 1:
			s.Confusion.TP++
		case want == 0 && got == 0:
			s.Confusion.TN++
		case want == 0 && got == 1:
			s.Confusion.FP++
		case want == 1 && got == 0:
			s.Confusion.FN++
		}
	}

	s.Accuracy = float64(correct) / float64(len(yTrue))
	s.Precision = safeDiv(s.Confusion.TP, predPos)
	s.Recall = safeDiv(s.Confusion.TP, truePos)
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// Accuracy is the fraction of equal labels, 0 for mismatched or empty input.
func Accuracy(yTrue, yPred []int) float64 {
	return Evaluate(yTrue, yPred).Accuracy
}

func safeDiv(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// History is the training curve. Accuracy is a percentage. The two series
// may differ in length; Epochs covers the longer one.
type History struct {
	Epochs        []int
	TrainAccuracy []float64
	TrainLogLoss  []float64
}

// ReconstructHistory reads the training set curve from history. When the
// backend recorded nothing for the training set, or recorded empty series,
// fallback supplies a single accuracy fraction for the whole fit.
func ReconstructHistory(history classifier.EvalHistory, lossKey, errKey string, fallback func() (float64, error)) (History, error) {
	h := History{Epochs: []int{}, TrainAccuracy: []float64{}, TrainLogLoss: []float64{}}

	train := history[classifier.EvalSetName(0)]
	if len(train) == 0 {
		acc, err := fallback()
		if err != nil {
			return History{}, err
		}
		h.Epochs = []int{1}
		h.TrainAccuracy = []float64{acc * 100}
		return h, nil
	}

	for _, e := range train[errKey] {
		h.TrainAccuracy = append(h.TrainAccuracy, (1-e)*100)
	}
	h.TrainLogLoss = append(h.TrainLogLoss, train[lossKey]...)

	rounds := max(len(h.TrainAccuracy), len(h.TrainLogLoss))
	if rounds == 0 {
		acc, err := fallback()
		if err != nil {
			return History{}, err
		}
		h.TrainAccuracy = []float64{acc * 100}
		rounds = 1
	}
	h.Epochs = make([]int, rounds)
	for i := range h.Epochs {
		h.Epochs[i] = i + 1
	}
	return h, nil
}
