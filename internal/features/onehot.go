package features

import (
	"fmt"
	"sort"

	"github.com/Veraticus/intelliinspect/internal/matrix"
	"github.com/Veraticus/intelliinspect/internal/table"
)

// MissingLabel names the indicator column of the missing category.
const MissingLabel = "<missing>"

type oneHotColumn struct {
	index      map[string]int
	name       string
	categories []string
	offset     int
	missingAt  int
}

// OneHot holds one indicator column per training category of each input column.
// Categories are sorted ascending with the missing category last.
type OneHot struct {
	columns []oneHotColumn
	width   int
}

// FitOneHot learns categories from training columns.
func FitOneHot(cols []*table.Column) *OneHot {
	o := &OneHot{}
	for _, col := range cols {
		seen := make(map[string]struct{})
		missing := false
		for i := 0; i < col.Len(); i++ {
			v, ok := col.Text(i)
			if !ok {
				missing = true
				continue
			}
			seen[v] = struct{}{}
		}

		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)

		oc := oneHotColumn{
			name:       col.Name,
			categories: cats,
			offset:     o.width,
			index:      make(map[string]int, len(cats)),
			missingAt:  -1,
		}
		for k, v := range cats {
			oc.index[v] = k
		}
		size := len(cats)
		if missing {
			oc.missingAt = size
			size++
		}
		o.width += size
		o.columns = append(o.columns, oc)
	}
	return o
}

// Width returns the number of indicator columns.
func (o *OneHot) Width() int { return o.width }

// Names returns the indicator column names as col=value.
func (o *OneHot) Names() []string {
	names := make([]string, 0, o.width)
	for _, oc := range o.columns {
		for _, v := range oc.categories {
			names = append(names, oc.name+"="+v)
		}
		if oc.missingAt >= 0 {
			names = append(names, oc.name+"="+MissingLabel)
		}
	}
	return names
}

// Transform encodes tbl. Unseen categories produce an all-zero block.
func (o *OneHot) Transform(tbl *table.Table) (*matrix.CSR, error) {
	cols := make([]*table.Column, len(o.columns))
	for k, oc := range o.columns {
		c, ok := tbl.Column(oc.name)
		if !ok {
			return nil, fmt.Errorf("one-hot column %q not in table", oc.name)
		}
		cols[k] = c
	}

	b := matrix.NewBuilder(o.width)
	for i := 0; i < tbl.Len(); i++ {
		for k, oc := range o.columns {
			pos := -1
			if v, ok := cols[k].Text(i); ok {
				if at, seen := oc.index[v]; seen {
					pos = at
				}
			} else {
				pos = oc.missingAt
			}
			if pos >= 0 {
				b.Set(oc.offset+pos, 1)
			}
		}
		b.EndRow()
	}
	return b.Build(), nil
}
