package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// CSVParser turns a delimited file into a single table. The first record
// becomes the header row.
type CSVParser struct {
	Delimiter rune
}

func (p *CSVParser) Parse(r io.Reader) (*html.Node, error) {
	reader := csv.NewReader(r)
	if p.Delimiter != 0 {
		reader.Comma = p.Delimiter
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var b strings.Builder
	b.WriteString("<html><head></head><body>")
	if len(records) > 0 {
		b.WriteString("<table><thead>")
		writeRow(&b, records[0], "th")
		b.WriteString("</thead><tbody>")
		for _, rec := range records[1:] {
			writeRow(&b, rec, "td")
		}
		b.WriteString("</tbody></table>")
	}
	b.WriteString("</body></html>")

	return html.Parse(strings.NewReader(b.String()))
}

func writeRow(b *strings.Builder, rec []string, tag string) {
	b.WriteString("<tr>")
	for _, field := range rec {
		b.WriteString("<" + tag + ">")
		b.WriteString(html.EscapeString(field))
		b.WriteString("</" + tag + ">")
	}
	b.WriteString("</tr>")
}
