package table

// Pad appends blank cells to short rows so every row matches the widest one.
// It returns nil when the table is empty or already rectangular. A padding
// cell takes its header flag from the last real cell of its row.
func (t *Table) Pad() *Table {
	if len(t.Rows) == 0 || t.IsRectangular() {
		return nil
	}

	_, width := t.Shape()
	out := t.Clone()
	for i := range out.Rows {
		row := &out.Rows[i]
		header := len(row.Cells) > 0 && row.Cells[len(row.Cells)-1].IsHeader
		for len(row.Cells) < width {
			c := EmptyCell()
			c.IsHeader = header
			row.Cells = append(row.Cells, c)
		}
	}
	return out
}
