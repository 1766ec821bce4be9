package table

import (
	"maps"
	"strconv"
)

type gridPos struct{ row, col int }

// columnCount is the widest row after counting the cells owed to each row by
// rowspans from the rows above it.
func columnCount(rows []Row) int {
	cols := make([]int, len(rows))
	for i, row := range rows {
		cols[i] += len(row.Cells)
		for _, c := range row.Cells {
			for k := 1; k < c.Rowspan && i+k < len(rows); k++ {
				cols[i+k]++
			}
		}
	}
	n := 0
	for _, c := range cols {
		n = max(n, c)
	}
	return n
}

// Span expands colspan/rowspan into explicit cells. Every cell of the result
// is a separate copy with colspan=rowspan=1. A colspan running past the
// column count is clamped on a row's last cell and rejected on any other.
// Rowspans reaching beyond the last row are dropped.
func (t *Table) Span() (*Table, error) {
	if len(t.Rows) == 0 {
		return t.Clone(), nil
	}

	ncols := columnCount(t.Rows)
	pending := make(map[gridPos]Cell)
	out := t.withoutRows()
	out.Rows = make([]Row, len(t.Rows))

	for ri, row := range t.Rows {
		cells := make([]Cell, 0, ncols)
		pj := 0
		drain := func() {
			for pj < ncols {
				c, ok := pending[gridPos{ri, pj}]
				if !ok {
					return
				}
				delete(pending, gridPos{ri, pj})
				cells = append(cells, c)
				pj++
			}
		}

		for ci, src := range row.Cells {
			drain()
			unit := src.Clone()
			unit.Colspan, unit.Rowspan = 1, 1

			for range max(src.Colspan, 1) {
				if _, ok := pending[gridPos{ri, pj}]; ok {
					return nil, &OverlapSpanError{Row: ri, Col: pj, Value: src.HTML}
				}
				cells = append(cells, unit.Clone())
				for k := 1; k < src.Rowspan; k++ {
					pending[gridPos{ri + k, pj}] = unit.Clone()
				}
				pj++

				if pj >= ncols {
					if ci == len(row.Cells)-1 {
						break
					}
					return nil, &InvalidCellSpanError{
						Row: ri, Col: pj - 1, Attr: "colspan", Value: strconv.Itoa(src.Colspan),
					}
				}
			}
		}
		drain()

		out.Rows[ri] = Row{Cells: cells, Attrs: maps.Clone(row.Attrs)}
	}
	return out, nil
}
