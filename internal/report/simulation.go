package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/Veraticus/intelliinspect/internal/table"
)

// TimeLayout formats simulation timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// FailThreshold is the class 1 probability at and above which a row fails.
const FailThreshold = 0.5

// Predicted labels.
const (
	LabelFail = "Fail"
	LabelPass = "Pass"
)

// Sensor column name fragments, tried in order.
var (
	TemperatureCandidates = []string{"temperature", "temp"}
	PressureCandidates    = []string{"pressure"}
	HumidityCandidates    = []string{"humidity", "humid"}
)

// SimulationRow is one scored row. Sensor fields are null when no column
// matched or the cell is not a number.
type SimulationRow struct {
	Time        string   `json:"time"`
	SampleID    int      `json:"sampleId"`
	Prediction  string   `json:"prediction"`
	Confidence  float64  `json:"confidence"`
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	Humidity    *float64 `json:"humidity"`
}

// FindColumn returns the first column whose case-folded name contains a
// candidate. Candidates are tried in order, columns in table order.
func FindColumn(names []string, candidates ...string) (string, bool) {
	fold := cases.Fold()
	folded := make([]string, len(names))
	for i, n := range names {
		folded[i] = fold.String(n)
	}
	for _, cand := range candidates {
		c := fold.String(cand)
		for i, n := range folded {
			if strings.Contains(n, c) {
				return names[i], true
			}
		}
	}
	return "", false
}

// Sensors names the columns feeding the sensor fields; empty means none.
type Sensors struct {
	Temperature string
	Pressure    string
	Humidity    string
}

// MatchSensors resolves the sensor columns among names.
func MatchSensors(names []string) Sensors {
	var s Sensors
	s.Temperature, _ = FindColumn(names, TemperatureCandidates...)
	s.Pressure, _ = FindColumn(names, PressureCandidates...)
	s.Humidity, _ = FindColumn(names, HumidityCandidates...)
	return s
}

// SimulationInput is a scored simulation window.
type SimulationInput struct {
	// Rows holds the window's raw columns, timestamp and target included.
	Rows       *table.Table
	IDColumn   string
	Timestamps []time.Time
	Proba      [][]float64
}

// Simulation builds one row per entry of in.Proba.
func Simulation(in SimulationInput) ([]SimulationRow, error) {
	n := len(in.Proba)
	if in.Rows.Len() != n || len(in.Timestamps) != n {
		return nil, fmt.Errorf("simulation rows mismatch: %d rows, %d timestamps, %d predictions",
			in.Rows.Len(), len(in.Timestamps), n)
	}

	sensors := MatchSensors(in.Rows.Names())
	ids, _ := in.Rows.Column(in.IDColumn)
	temp, _ := in.Rows.Column(sensors.Temperature)
	pres, _ := in.Rows.Column(sensors.Pressure)
	hum, _ := in.Rows.Column(sensors.Humidity)

	out := make([]SimulationRow, n)
	for i, p := range in.Proba {
		if len(p) < 2 {
			return nil, fmt.Errorf("row %d: expected class probabilities, got %d values", i, len(p))
		}
		p1 := p[1]
		row := SimulationRow{
			Time:        in.Timestamps[i].Format(TimeLayout),
			SampleID:    sampleID(ids, i),
			Prediction:  LabelPass,
			Confidence:  Round(clamp01(1-p1)*100, 2),
			Temperature: cell(temp, i),
			Pressure:    cell(pres, i),
			Humidity:    cell(hum, i),
		}
		if p1 >= FailThreshold {
			row.Prediction = LabelFail
			row.Confidence = Round(clamp01(p1)*100, 2)
		}
		out[i] = row
	}
	return out, nil
}

func sampleID(ids *table.Column, i int) int {
	if ids != nil {
		if v, ok := ids.Float(i); ok && !math.IsInf(v, 0) {
			return int(v)
		}
	}
	return i + 1
}

func cell(col *table.Column, i int) *float64 {
	if col == nil {
		return nil
	}
	v, ok := col.Float(i)
	if !ok || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
