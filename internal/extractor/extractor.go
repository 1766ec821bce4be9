// Package extractor finds the tables of an HTML document and turns each into
// a rectangular table.Table with cell rich text and section context.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/tablegest/internal/richtext"
	"github.com/dgallion1/tablegest/internal/section"
	"github.com/dgallion1/tablegest/internal/table"
)

// ErrInvalidURL is returned when the document URL is not absolute.
var ErrInvalidURL = errors.New("invalid document url")

// Options toggles the post-processing passes.
type Options struct {
	AutoSpan       bool
	AutoPad        bool
	ExtractContext bool
}

func DefaultOptions() Options {
	return Options{AutoSpan: true, AutoPad: true, ExtractContext: true}
}

type Extractor struct {
	text    richtext.Options
	context *section.Extractor
	log     *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		text:    cfg.textOptions(),
		context: section.NewExtractor(cfg.contextOptions()),
		log:     log,
	}
}

// ExtractHTML parses src and extracts its tables.
func (e *Extractor) ExtractHTML(docURL, src string, opts Options) ([]*table.Table, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return e.Extract(docURL, doc, opts)
}

type found struct {
	tbl *table.Table
	el  *html.Node
}

// Extract returns the innermost tables of doc in document order. A table
// with unusable span attributes is dropped without failing the others.
func (e *Extractor) Extract(docURL string, doc *html.Node, opts Options) ([]*table.Table, error) {
	base, err := url.Parse(docURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, docURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("%w %q: not absolute", ErrInvalidURL, docURL)
	}

	var tables []found
	for i, el := range innermostTables(doc) {
		tbl, err := e.extractTable(el)
		if err != nil {
			if !isSpanError(err) {
				return nil, err
			}
			e.log.Debug("dropping table", "index", i, "error", err)
			continue
		}
		tables = append(tables, found{tbl: tbl, el: el})
	}

	if opts.AutoSpan {
		kept := tables[:0]
		for i, f := range tables {
			spanned, err := f.tbl.Span()
			if err != nil {
				if !isSpanError(err) {
					return nil, fmt.Errorf("span table %d: %w", i, err)
				}
				e.log.Debug("dropping table", "index", i, "error", err)
				continue
			}
			kept = append(kept, found{tbl: spanned, el: f.el})
		}
		tables = kept
	}

	if opts.AutoPad {
		for i := range tables {
			if padded := tables[i].tbl.Pad(); padded != nil {
				tables[i].tbl = padded
			}
		}
	}

	if opts.ExtractContext {
		for _, f := range tables {
			ctx, err := e.context.Extract(f.el)
			if err != nil {
				return nil, fmt.Errorf("extract context: %w", err)
			}
			f.tbl.Context = ctx
		}
	}

	prefix := "table_no="
	if base.RawQuery != "" {
		prefix = base.RawQuery + "&table_no="
	}
	conv := urlConverter{base: base}
	out := make([]*table.Table, len(tables))
	for i, f := range tables {
		id := *base
		id.RawQuery = prefix + strconv.Itoa(i)
		f.tbl.ID = id.String()
		f.tbl.URL = docURL

		for r := range f.tbl.Rows {
			for c := range f.tbl.Rows[r].Cells {
				conv.richText(&f.tbl.Rows[r].Cells[c].Value)
			}
		}
		conv.context(f.tbl.Context)
		out[i] = f.tbl
	}
	return out, nil
}

// innermostTables selects every table that has no table inside it.
func innermostTables(doc *html.Node) []*html.Node {
	return goquery.NewDocumentFromNode(doc).Find("table").
		FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("table").Length() == 0
		}).Nodes
}

// CountTables is the number of tables Extract considers before any are
// dropped.
func CountTables(doc *html.Node) int {
	return len(innermostTables(doc))
}

func isSpanError(err error) bool {
	var overlap *table.OverlapSpanError
	var invalid *table.InvalidCellSpanError
	return errors.As(err, &overlap) || errors.As(err, &invalid)
}

func (e *Extractor) extractTable(el *html.Node) (*table.Table, error) {
	tbl := &table.Table{Attrs: attrs(el), Rows: []table.Row{}}
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Caption:
			if tbl.Caption == "" {
				tbl.Caption = strings.TrimSpace(richtext.PlainText(c))
			}
		case atom.Thead, atom.Tbody, atom.Tfoot:
			for tr := c.FirstChild; tr != nil; tr = tr.NextSibling {
				if tr.Type != html.ElementNode || tr.DataAtom != atom.Tr {
					continue
				}
				row, err := e.extractRow(tr, len(tbl.Rows))
				if err != nil {
					return nil, err
				}
				tbl.Rows = append(tbl.Rows, row)
			}
		case atom.Tr:
			row, err := e.extractRow(c, len(tbl.Rows))
			if err != nil {
				return nil, err
			}
			tbl.Rows = append(tbl.Rows, row)
		}
	}
	return tbl, nil
}

func (e *Extractor) extractRow(tr *html.Node, ri int) (table.Row, error) {
	row := table.Row{Cells: []table.Cell{}, Attrs: attrs(tr)}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		cell, err := e.extractCell(c, ri, len(row.Cells))
		if err != nil {
			return row, err
		}
		row.Cells = append(row.Cells, cell)
	}
	return row, nil
}

func (e *Extractor) extractCell(n *html.Node, ri, ci int) (table.Cell, error) {
	colspan, err := parseSpan(n, "colspan", ri, ci)
	if err != nil {
		return table.Cell{}, err
	}
	rowspan, err := parseSpan(n, "rowspan", ri, ci)
	if err != nil {
		return table.Cell{}, err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return table.Cell{}, fmt.Errorf("render cell: %w", err)
	}
	return table.Cell{
		IsHeader: n.DataAtom == atom.Th,
		Rowspan:  rowspan,
		Colspan:  colspan,
		Attrs:    attrs(n),
		Value:    richtext.Extract(n, e.text),
		HTML:     buf.String(),
	}, nil
}

// parseSpan reads a colspan/rowspan attribute. Missing or blank means 1 and
// so does 0.
func parseSpan(n *html.Node, key string, ri, ci int) (int, error) {
	raw := ""
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			raw = strings.TrimSpace(a.Val)
			break
		}
	}
	if raw == "" {
		return 1, nil
	}
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, &table.InvalidCellSpanError{Row: ri, Col: ci, Attr: key, Value: raw}
	}
	return max(int(v), 1), nil
}

func attrs(n *html.Node) map[string]string {
	m := richtext.Attrs(n)
	if m == nil {
		m = map[string]string{}
	}
	return m
}
