// Package richtext flattens a DOM subtree into plain text plus a formatting
// tree recording which text ranges came from which surviving elements.
package richtext

import (
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/dgallion1/tablegest/internal/tree"
)

// Element marks that Text[Start:End] originated inside a markup element.
// Offsets are byte offsets. A child's range is inside its parent's range and
// siblings are ordered and non-overlapping.
type Element struct {
	Tag   string            `json:"tag"`
	Start int               `json:"start"`
	End   int               `json:"end"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// RichText is flat text with a formatting skeleton. The root element always
// spans the whole text.
type RichText struct {
	Text     string              `json:"text"`
	Elements *tree.Tree[Element] `json:"elements"`
}

// Empty returns a blank RichText with an untagged root.
func Empty() RichText {
	return RichText{Elements: tree.New(Element{})}
}

// IsEmpty reports whether there is neither text nor any element besides the root.
func (rt RichText) IsEmpty() bool {
	return rt.Text == "" && (rt.Elements == nil || rt.Elements.Len() <= 1)
}

// Root returns the root element, or a zero Element for a zero RichText.
func (rt RichText) Root() Element {
	if rt.Elements == nil || rt.Elements.IsEmpty() {
		return Element{}
	}
	return rt.Elements.Root()
}

// Clone deep-copies the formatting tree and its attribute maps.
func (rt RichText) Clone() RichText {
	if rt.Elements == nil {
		return rt
	}
	return RichText{
		Text: rt.Text,
		Elements: rt.Elements.Clone(func(e Element) Element {
			e.Attrs = maps.Clone(e.Attrs)
			return e
		}),
	}
}

func (rt RichText) String() string { return rt.HTML() }

// HTML renders the text with every element wrapped around its range.
// Untagged elements contribute no markup.
func (rt RichText) HTML() string {
	if rt.Elements == nil || rt.Elements.IsEmpty() {
		return html.EscapeString(rt.Text)
	}
	var sb strings.Builder
	rt.render(&sb, rt.Elements.RootID())
	return sb.String()
}

func (rt RichText) render(sb *strings.Builder, id int) {
	el := rt.Elements.Get(id)
	if el.Tag != "" {
		sb.WriteByte('<')
		sb.WriteString(el.Tag)
		for _, k := range slices.Sorted(maps.Keys(el.Attrs)) {
			sb.WriteByte(' ')
			sb.WriteString(k)
			sb.WriteString(`="`)
			sb.WriteString(html.EscapeString(el.Attrs[k]))
			sb.WriteByte('"')
		}
		if voidElements[el.Tag] && el.Start == el.End && len(rt.Elements.ChildIDs(id)) == 0 {
			sb.WriteString("/>")
			return
		}
		sb.WriteByte('>')
	}

	cursor := el.Start
	for _, cid := range rt.Elements.ChildIDs(id) {
		child := rt.Elements.Get(cid)
		sb.WriteString(html.EscapeString(rt.Text[cursor:child.Start]))
		rt.render(sb, cid)
		cursor = child.End
	}
	sb.WriteString(html.EscapeString(rt.Text[cursor:el.End]))

	if el.Tag != "" {
		sb.WriteString("</")
		sb.WriteString(el.Tag)
		sb.WriteByte('>')
	}
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// CollapseSpace returns a copy where each whitespace run becomes a single
// space and leading/trailing whitespace is dropped. Offsets are remapped
// monotonically, so nesting and sibling order are preserved.
func (rt RichText) CollapseSpace() RichText {
	src := rt.Text
	pos := make([]int, len(src)+1)
	out := make([]byte, 0, len(src))
	pending := false

	for i := 0; i < len(src); {
		r, size := utf8.DecodeRuneInString(src[i:])
		if unicode.IsSpace(r) {
			for k := range size {
				pos[i+k] = len(out)
			}
			pending = len(out) > 0
			i += size
			continue
		}
		if pending {
			out = append(out, ' ')
			pending = false
		}
		for k := range size {
			pos[i+k] = len(out)
		}
		out = append(out, src[i:i+size]...)
		i += size
	}
	pos[len(src)] = len(out)

	res := rt.Clone()
	res.Text = string(out)
	if res.Elements != nil {
		for i := range res.Elements.Len() {
			el := res.Elements.Node(i)
			el.Start = pos[el.Start]
			el.End = pos[el.End]
		}
	}
	return res
}

// ReplaceRange rewrites Text[start:end] with s in place and shifts every
// offset at or after end by the length difference. Offsets strictly inside
// the range are clamped to the end of the replacement.
func (rt *RichText) ReplaceRange(start, end int, s string) {
	delta := len(s) - (end - start)
	rt.Text = rt.Text[:start] + s + rt.Text[end:]
	if rt.Elements == nil {
		return
	}
	adjust := func(o int) int {
		switch {
		case o >= end:
			return o + delta
		case o > start:
			return min(o, start+len(s))
		}
		return o
	}
	for i := range rt.Elements.Len() {
		el := rt.Elements.Node(i)
		el.Start = adjust(el.Start)
		el.End = adjust(el.End)
	}
}
