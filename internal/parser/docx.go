package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
	"golang.org/x/net/html"
)

// DOCXParser handles .docx files. Heading styles become h1-h6, tables keep
// their merged cells as colspan/rowspan.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader) (*html.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var b strings.Builder
	b.WriteString("<html><head></head><body>")
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			writeDocxParagraph(&b, it)
		case *docx.Table:
			writeDocxTable(&b, it)
		}
	}
	b.WriteString("</body></html>")

	return html.Parse(strings.NewReader(b.String()))
}

func writeDocxParagraph(b *strings.Builder, para *docx.Paragraph) {
	text := docxParagraphHTML(para)
	if strings.TrimSpace(text) == "" {
		return
	}
	tag := "p"
	if level := docxHeadingLevel(para); level > 0 {
		tag = "h" + strconv.Itoa(level)
	}
	b.WriteString("<" + tag + ">" + text + "</" + tag + ">")
}

func writeDocxTable(b *strings.Builder, tbl *docx.Table) {
	b.WriteString("<table>")
	for ri, row := range tbl.TableRows {
		b.WriteString("<tr>")
		col := 0
		for _, cell := range row.TableCells {
			span := docxGridSpan(cell)
			if docxMergeContinues(cell) {
				col += span
				continue
			}
			b.WriteString("<td")
			if span > 1 {
				fmt.Fprintf(b, ` colspan="%d"`, span)
			}
			if rows := docxRowspan(tbl, ri, col); rows > 1 {
				fmt.Fprintf(b, ` rowspan="%d"`, rows)
			}
			b.WriteString(">")
			for _, para := range cell.Paragraphs {
				writeDocxParagraph(b, para)
			}
			for _, nested := range cell.Tables {
				writeDocxTable(b, nested)
			}
			b.WriteString("</td>")
			col += span
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
}

func docxGridSpan(cell *docx.WTableCell) int {
	if cell.TableCellProperties == nil || cell.TableCellProperties.GridSpan == nil {
		return 1
	}
	return max(cell.TableCellProperties.GridSpan.Val, 1)
}

// docxMergeContinues reports whether cell continues a vertical merge started
// in a row above.
func docxMergeContinues(cell *docx.WTableCell) bool {
	props := cell.TableCellProperties
	return props != nil && props.VMerge != nil && props.VMerge.Val != "restart"
}

// docxRowspan counts the rows a vertical merge starting at (ri, col) covers.
func docxRowspan(tbl *docx.Table, ri, col int) int {
	first := docxCellAt(tbl.TableRows[ri], col)
	if first == nil || first.TableCellProperties == nil || first.TableCellProperties.VMerge == nil {
		return 1
	}
	n := 1
	for _, row := range tbl.TableRows[ri+1:] {
		c := docxCellAt(row, col)
		if c == nil || !docxMergeContinues(c) {
			break
		}
		n++
	}
	return n
}

// docxCellAt returns the cell whose grid columns start at col.
func docxCellAt(row *docx.WTableRow, col int) *docx.WTableCell {
	at := 0
	for _, cell := range row.TableCells {
		if at == col {
			return cell
		}
		at += docxGridSpan(cell)
		if at > col {
			return nil
		}
	}
	return nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	level, ok := strings.CutPrefix(style, "heading")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(level)
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}

// docxParagraphHTML renders the runs of a paragraph as escaped text with
// bold and italic markup.
func docxParagraphHTML(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeDocxRun(&buf, c)
		case *docx.Hyperlink:
			writeDocxRun(&buf, &c.Run)
		}
	}
	return strings.TrimSpace(buf.String())
}

func writeDocxRun(buf *strings.Builder, run *docx.Run) {
	var text strings.Builder
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			text.WriteString(t.Text)
		case *docx.Tab:
			text.WriteString("\t")
		}
	}
	s := html.EscapeString(text.String())
	if s == "" {
		return
	}
	if props := run.RunProperties; props != nil {
		if props.Italic != nil {
			s = "<i>" + s + "</i>"
		}
		if props.Bold != nil {
			s = "<b>" + s + "</b>"
		}
	}
	buf.WriteString(s)
}
