// Package report shapes scores and predictions into the JSON documents
// written on stdout.
package report

import (
	"encoding/json"
	"io"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/intelliinspect/internal/metrics"
)

// Confusion is the serialized confusion matrix.
type Confusion struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// History is the serialized training curve. Slices are never nil so empty
// series encode as [].
type History struct {
	Epochs        []int     `json:"epochs"`
	TrainAccuracy []float64 `json:"train_accuracy"`
	TrainLogLoss  []float64 `json:"train_logloss"`
}

// Training is the result of a training run. Scores are percentages. Field
// order is the key order of the encoded document.
type Training struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1Score   float64   `json:"f1score"`
	Confusion Confusion `json:"confusion"`
	History   History   `json:"history"`
}

// NewTraining rounds scores to two places and the curve to two (accuracy)
// and four (log loss) places.
func NewTraining(s metrics.Scores, h metrics.History) *Training {
	return &Training{
		Accuracy:  Round(s.Accuracy*100, 2),
		Precision: Round(s.Precision*100, 2),
		Recall:    Round(s.Recall*100, 2),
		F1Score:   Round(s.F1*100, 2),
		Confusion: Confusion{
			TP: s.Confusion.TP,
			TN: s.Confusion.TN,
			FP: s.Confusion.FP,
			FN: s.Confusion.FN,
		},
		History: History{
			Epochs:        append([]int{}, h.Epochs...),
			TrainAccuracy: roundAll(h.TrainAccuracy, 2),
			TrainLogLoss:  roundAll(h.TrainLogLoss, 4),
		},
	}
}

// Round rounds the exact binary value of v to places decimals. Only values
// exactly halfway between two results round to even, so 2.675, stored as
// 2.67499..., rounds to 2.67. Non-finite values are returned unchanged.
func Round(v float64, places int32) float64 {
	exact := new(big.Rat).SetFloat64(v)
	if exact == nil {
		return v
	}
	// The denominator is 2^k, which needs exactly k decimal digits.
	digits := int32(exact.Denom().BitLen() - 1)
	return decimal.NewFromBigRat(exact, digits).RoundBank(places).InexactFloat64()
}

func roundAll(vs []float64, places int32) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = Round(v, places)
	}
	return out
}

// Write encodes doc as a single JSON line.
func Write(w io.Writer, doc any) error {
	return json.NewEncoder(w).Encode(doc)
}

// Error is the document written for a failed run.
type Error struct {
	Message string `json:"error"`
}
