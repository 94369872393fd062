package features

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/Veraticus/intelliinspect/internal/matrix"
	"github.com/Veraticus/intelliinspect/internal/table"
)

// Pipeline fits the encoding for one run.
type Pipeline struct {
	Logger     *slog.Logger
	Thresholds Thresholds
}

// NewPipeline returns a pipeline using th. A nil logger uses slog.Default.
func NewPipeline(th Thresholds, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Thresholds: th, Logger: logger}
}

// Fitted is the encoding learned from the training split. Transform produces
// matrices with the same layout for any table drawn from the same source.
type Fitted struct {
	frequency      map[string]*FrequencyMap
	oneHot         *OneHot
	Roles          []Cardinality
	Numeric        []string
	HighCard       []string
	LowCard        []string
	ProjectedWidth int
	OneHotApplied  bool
}

// Fit classifies text columns over train and eval, then learns every encoder
// from train alone.
func (p *Pipeline) Fit(train, eval *table.Table) *Fitted {
	f := &Fitted{
		Roles:     Classify(train, eval, p.Thresholds),
		frequency: make(map[string]*FrequencyMap),
	}

	for _, col := range train.Columns() {
		if col.Kind == table.KindNumeric {
			f.Numeric = append(f.Numeric, col.Name)
		}
	}
	for _, r := range f.Roles {
		if r.Role == RoleHighCard {
			f.HighCard = append(f.HighCard, r.Column)
		} else {
			f.LowCard = append(f.LowCard, r.Column)
			f.ProjectedWidth += r.Unique
		}
	}

	for _, name := range f.HighCard {
		col, _ := train.Column(name)
		f.frequency[name] = FitFrequency(col)
	}

	f.OneHotApplied = len(f.LowCard) > 0 && f.ProjectedWidth <= p.Thresholds.OneHotMaxWidth
	if f.OneHotApplied {
		cols := make([]*table.Column, len(f.LowCard))
		for k, name := range f.LowCard {
			cols[k], _ = train.Column(name)
		}
		f.oneHot = FitOneHot(cols)
	} else {
		for _, name := range f.LowCard {
			col, _ := train.Column(name)
			f.frequency[name] = FitFrequency(col)
		}
	}

	p.Logger.Debug("fitted feature encoding",
		"numeric", len(f.Numeric),
		"high_card", len(f.HighCard),
		"low_card", len(f.LowCard),
		"projected_one_hot_width", f.ProjectedWidth,
		"one_hot", f.OneHotApplied,
		"width", f.Width())
	if len(f.LowCard) > 0 && !f.OneHotApplied {
		p.Logger.Info("one-hot width exceeds cap; frequency encoding low-card columns",
			"projected_width", f.ProjectedWidth,
			"cap", p.Thresholds.OneHotMaxWidth)
	}
	return f
}

// Width returns the number of output columns.
func (f *Fitted) Width() int {
	return len(f.Numeric) + len(f.HighCard) + f.tailWidth()
}

func (f *Fitted) tailWidth() int {
	if f.OneHotApplied {
		return f.oneHot.Width()
	}
	return len(f.LowCard)
}

// Layout names every output column in order.
func (f *Fitted) Layout() []string {
	names := make([]string, 0, f.Width())
	names = append(names, f.Numeric...)
	names = append(names, f.HighCard...)
	if f.OneHotApplied {
		return append(names, f.oneHot.Names()...)
	}
	return append(names, f.LowCard...)
}

// Transform encodes tbl as numeric ++ high-card frequency ++ one-hot (or
// low-card frequency). The table must carry every fitted column.
func (f *Fitted) Transform(tbl *table.Table) (*matrix.CSR, error) {
	baseCols := len(f.Numeric) + len(f.HighCard)
	rows := tbl.Len()
	dense := make([]float32, rows*baseCols)

	for j, name := range f.Numeric {
		col, ok := tbl.Column(name)
		if !ok || col.Kind != table.KindNumeric {
			return nil, fmt.Errorf("numeric column %q not in table", name)
		}
		for i := 0; i < rows; i++ {
			if v := col.Floats[i]; !math.IsNaN(v) {
				dense[i*baseCols+j] = float32(v)
			}
		}
	}
	for k, name := range f.HighCard {
		values, err := f.frequencyColumn(tbl, name)
		if err != nil {
			return nil, err
		}
		j := len(f.Numeric) + k
		for i, v := range values {
			dense[i*baseCols+j] = v
		}
	}

	base, err := matrix.FromDense(rows, baseCols, dense)
	if err != nil {
		return nil, err
	}

	var tail *matrix.CSR
	switch {
	case f.OneHotApplied:
		tail, err = f.oneHot.Transform(tbl)
		if err != nil {
			return nil, err
		}
	case len(f.LowCard) > 0:
		block := make([]float32, rows*len(f.LowCard))
		for k, name := range f.LowCard {
			values, err := f.frequencyColumn(tbl, name)
			if err != nil {
				return nil, err
			}
			for i, v := range values {
				block[i*len(f.LowCard)+k] = v
			}
		}
		tail, err = matrix.FromDense(rows, len(f.LowCard), block)
		if err != nil {
			return nil, err
		}
	default:
		tail = matrix.Empty(rows, 0)
	}

	return matrix.HStack(base, tail)
}

func (f *Fitted) frequencyColumn(tbl *table.Table, name string) ([]float32, error) {
	col, ok := tbl.Column(name)
	if !ok {
		return nil, fmt.Errorf("categorical column %q not in table", name)
	}
	return f.frequency[name].Transform(col), nil
}

// Encoded holds both encoded splits of a run.
type Encoded struct {
	Fitted *Fitted
	Train  *matrix.CSR
	Eval   *matrix.CSR
}

// Encode fits on train and transforms both splits.
func (p *Pipeline) Encode(train, eval *table.Table) (*Encoded, error) {
	fitted := p.Fit(train, eval)
	trainX, err := fitted.Transform(train)
	if err != nil {
		return nil, fmt.Errorf("failed to encode training split: %w", err)
	}
	evalX, err := fitted.Transform(eval)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation split: %w", err)
	}
	return &Encoded{Fitted: fitted, Train: trainX, Eval: evalX}, nil
}
