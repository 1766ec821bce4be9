// Package table holds extracted table records and the grid passes that turn
// colspan/rowspan markup into a rectangular grid.
package table

import (
	"maps"
	"strings"

	"github.com/dgallion1/tablegest/internal/richtext"
	"github.com/dgallion1/tablegest/internal/section"
)

type Table struct {
	ID      string                     `json:"id"`
	URL     string                     `json:"url"`
	Caption string                     `json:"caption"`
	Attrs   map[string]string          `json:"attrs"`
	Context []section.ContentHierarchy `json:"context"`
	Rows    []Row                      `json:"rows"`
}

type Row struct {
	Cells []Cell            `json:"cells"`
	Attrs map[string]string `json:"attrs"`
}

type Cell struct {
	IsHeader bool              `json:"is_header"`
	Rowspan  int               `json:"rowspan"`
	Colspan  int               `json:"colspan"`
	Attrs    map[string]string `json:"attrs"`
	Value    richtext.RichText `json:"value"`
	// HTML is the cell's original outer markup.
	HTML string `json:"html"`
}

// EmptyCell is a blank 1x1 data cell.
func EmptyCell() Cell {
	return Cell{Rowspan: 1, Colspan: 1, Attrs: map[string]string{}, Value: richtext.Empty()}
}

func (c Cell) Clone() Cell {
	c.Attrs = maps.Clone(c.Attrs)
	c.Value = c.Value.Clone()
	return c
}

func (r Row) Clone() Row {
	cells := make([]Cell, len(r.Cells))
	for i, c := range r.Cells {
		cells[i] = c.Clone()
	}
	return Row{Cells: cells, Attrs: maps.Clone(r.Attrs)}
}

// Clone deep-copies the table including context and cell values.
func (t *Table) Clone() *Table {
	out := t.withoutRows()
	if t.Rows != nil {
		out.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	return out
}

func (t *Table) withoutRows() *Table {
	var ctx []section.ContentHierarchy
	if t.Context != nil {
		ctx = make([]section.ContentHierarchy, len(t.Context))
		for i, h := range t.Context {
			ctx[i] = h.Clone()
		}
	}
	return &Table{
		ID:      t.ID,
		URL:     t.URL,
		Caption: t.Caption,
		Attrs:   maps.Clone(t.Attrs),
		Context: ctx,
	}
}

// Shape returns the number of rows and the widest row's cell count.
func (t *Table) Shape() (rows, cols int) {
	for _, r := range t.Rows {
		cols = max(cols, len(r.Cells))
	}
	return len(t.Rows), cols
}

// IsRectangular reports whether every row has the same number of cells.
func (t *Table) IsRectangular() bool {
	for _, r := range t.Rows {
		if len(r.Cells) != len(t.Rows[0].Cells) {
			return false
		}
	}
	return true
}

// Markdown renders the grid as a pipe table of plain cell text. The first
// row is used as the header line.
func (t *Table) Markdown() string {
	_, cols := t.Shape()
	if cols == 0 {
		return ""
	}
	var sb strings.Builder
	if t.Caption != "" {
		sb.WriteString("**")
		sb.WriteString(strings.Join(strings.Fields(t.Caption), " "))
		sb.WriteString("**\n\n")
	}
	for i, r := range t.Rows {
		sb.WriteByte('|')
		for j := range cols {
			sb.WriteByte(' ')
			if j < len(r.Cells) {
				sb.WriteString(markdownCell(r.Cells[j].Value.Text))
			}
			sb.WriteString(" |")
		}
		sb.WriteByte('\n')
		if i == 0 {
			sb.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
		}
	}
	return sb.String()
}

func markdownCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
