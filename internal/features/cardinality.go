// Package features turns windowed tables into encoded sparse matrices.
//
// Text columns are split into low- and high-cardinality roles by their distinct
// count across both splits. High-cardinality columns are frequency encoded from
// training counts; low-cardinality columns are one-hot encoded unless the total
// one-hot width would exceed the configured cap, in which case they fall back to
// frequency encoding as well.
package features

import (
	"github.com/Veraticus/intelliinspect/internal/table"
)

// Thresholds bounds the one-hot encoder.
type Thresholds struct {
	// LowCardMax is the largest union cardinality a column may have to be one-hot encoded.
	LowCardMax int `mapstructure:"low_card_max"`
	// OneHotMaxWidth caps the projected total one-hot width for the whole run.
	OneHotMaxWidth int `mapstructure:"one_hot_max_width"`
	// RowFractionCap limits cardinality relative to the training row count.
	RowFractionCap float64 `mapstructure:"row_fraction_cap"`
}

// DefaultThresholds returns 40 levels, 20000 columns and 5% of training rows.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowCardMax:     40,
		OneHotMaxWidth: 20000,
		RowFractionCap: 0.05,
	}
}

// Role is the encoding role of a text column.
type Role int

// Column roles.
const (
	RoleLowCard Role = iota
	RoleHighCard
)

func (r Role) String() string {
	if r == RoleLowCard {
		return "low-card"
	}
	return "high-card"
}

// Cardinality is the classification of one text column.
type Cardinality struct {
	Column string
	Unique int
	Role   Role
}

// RowCap returns max(10, floor(RowFractionCap * max(1, trainRows))).
func (t Thresholds) RowCap(trainRows int) int {
	rows := trainRows
	if rows < 1 {
		rows = 1
	}
	limit := int(t.RowFractionCap * float64(rows))
	if limit < 10 {
		return 10
	}
	return limit
}

// RoleFor classifies a column by its union cardinality.
func (t Thresholds) RoleFor(unique, trainRows int) Role {
	if unique <= t.LowCardMax && unique <= t.RowCap(trainRows) {
		return RoleLowCard
	}
	return RoleHighCard
}

// Classify assigns a role to every text column of train, in column order.
// Distinct values are counted over the union of both splits, with missing
// counted as one more value.
func Classify(train, eval *table.Table, th Thresholds) []Cardinality {
	var out []Cardinality
	for _, col := range train.Columns() {
		if col.Kind != table.KindText {
			continue
		}
		unique := UnionCardinality(col, lookup(eval, col.Name))
		out = append(out, Cardinality{
			Column: col.Name,
			Unique: unique,
			Role:   th.RoleFor(unique, train.Len()),
		})
	}
	return out
}

// UnionCardinality counts distinct values across the given columns.
// Nil columns are skipped.
func UnionCardinality(cols ...*table.Column) int {
	seen := make(map[string]struct{})
	missing := false
	for _, c := range cols {
		if c == nil {
			continue
		}
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Text(i)
			if !ok {
				missing = true
				continue
			}
			seen[v] = struct{}{}
		}
	}
	n := len(seen)
	if missing {
		n++
	}
	return n
}

func lookup(t *table.Table, name string) *table.Column {
	if t == nil {
		return nil
	}
	c, _ := t.Column(name)
	return c
}
