// Package table provides the typed, column-oriented representation of an input CSV.
package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind is the storage type of a column.
type Kind int

// Column kinds.
const (
	// KindNumeric columns hold float64 values, with NaN marking a missing cell.
	KindNumeric Kind = iota
	// KindText columns hold raw strings plus a validity mask.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Table errors.
var (
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrLengthMismatch  = errors.New("column length mismatch")
)

// ConversionError reports a cell that cannot be converted to the requested type.
type ConversionError struct {
	Column string
	Value  string
	Row    int
}

func (e *ConversionError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("column %q row %d: cannot convert missing value to integer", e.Column, e.Row)
	}
	return fmt.Sprintf("column %q row %d: invalid literal for integer: %q", e.Column, e.Row, e.Value)
}

// Column is a single named column.
type Column struct {
	Name    string
	Floats  []float64
	Strings []string
	Valid   []bool
	Kind    Kind
}

// NewNumeric builds a numeric column. NaN values are missing.
func NewNumeric(name string, values []float64) *Column {
	return &Column{Name: name, Kind: KindNumeric, Floats: values}
}

// NewText builds a text column. A nil valid slice marks every cell present.
func NewText(name string, values []string, valid []bool) *Column {
	if valid == nil {
		valid = make([]bool, len(values))
		for i := range valid {
			valid[i] = true
		}
	}
	return &Column{Name: name, Kind: KindText, Strings: values, Valid: valid}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.Kind == KindNumeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == KindNumeric {
		return math.IsNaN(c.Floats[i])
	}
	return !c.Valid[i]
}

// Float returns cell i as a number. Text cells are parsed; ok is false when the
// cell is missing or not numeric.
func (c *Column) Float(i int) (float64, bool) {
	if c.Kind == KindNumeric {
		v := c.Floats[i]
		return v, !math.IsNaN(v)
	}
	if !c.Valid[i] {
		return 0, false
	}
	v, ok := parseNumber(c.Strings[i])
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Text returns cell i formatted as a string; ok is false when the cell is missing.
func (c *Column) Text(i int) (string, bool) {
	if c.Kind == KindText {
		return c.Strings[i], c.Valid[i]
	}
	v := c.Floats[i]
	if math.IsNaN(v) {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

// Ints converts the column to integers, truncating toward zero.
// Missing and non-numeric cells are a *ConversionError.
func (c *Column) Ints() ([]int, error) {
	out := make([]int, c.Len())
	for i := range out {
		v, ok := c.Float(i)
		if !ok || math.IsInf(v, 0) {
			raw, _ := c.Text(i)
			return nil, &ConversionError{Column: c.Name, Row: i, Value: raw}
		}
		out[i] = int(v)
	}
	return out, nil
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == KindNumeric {
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
		return out
	}
	out.Strings = make([]string, len(rows))
	out.Valid = make([]bool, len(rows))
	for i, r := range rows {
		out.Strings[i] = c.Strings[r]
		out.Valid[i] = c.Valid[r]
	}
	return out
}

// Table is an ordered set of equal-length columns.
type Table struct {
	index   map[string]int
	columns []*Column
	rows    int
}

// New assembles a table from columns.
func New(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrLengthMismatch, c.Name, c.Len(), t.rows)
		}
		t.index[c.Name] = i
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns the columns in file order.
func (t *Table) Columns() []*Column { return t.columns }

// Names returns the column names in file order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Take returns a new table holding the given rows, in the given order.
func (t *Table) Take(rows []int) *Table {
	out := &Table{index: make(map[string]int, len(t.columns)), rows: len(rows)}
	for i, c := range t.columns {
		out.index[c.Name] = i
		out.columns = append(out.columns, c.take(rows))
	}
	return out
}

// Head returns the first n rows. n <= 0 or n >= Len returns t itself.
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= t.rows {
		return t
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.Take(rows)
}

// Without returns a table sharing t's columns minus the named ones.
func (t *Table) Without(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := &Table{index: make(map[string]int, len(t.columns)), rows: t.rows}
	for _, c := range t.columns {
		if drop[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out
}
