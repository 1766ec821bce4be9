package table

import "fmt"

// OverlapSpanError reports a rowspan projected from an earlier row colliding
// with a colspan placement in the current row.
type OverlapSpanError struct {
	Row, Col int
	Value    string
}

func (e *OverlapSpanError) Error() string {
	return fmt.Sprintf("overlapping span at row %d col %d: %q", e.Row, e.Col, e.Value)
}

// InvalidCellSpanError reports an unusable colspan/rowspan: either an
// attribute that is not a number or a span pushing a non-last cell past the
// table's column count.
type InvalidCellSpanError struct {
	Row, Col int
	Attr     string
	Value    string
}

func (e *InvalidCellSpanError) Error() string {
	return fmt.Sprintf("invalid %s at row %d col %d: %q", e.Attr, e.Row, e.Col, e.Value)
}
