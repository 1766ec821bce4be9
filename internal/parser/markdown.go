package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

// MarkdownParser renders Markdown with goldmark (GFM tables, raw HTML kept)
// and parses the result.
type MarkdownParser struct{}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

func (p *MarkdownParser) Parse(r io.Reader) (*html.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	doc, err := html.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("parse rendered markdown: %w", err)
	}
	return doc, nil
}
