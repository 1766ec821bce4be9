package section

import (
	"golang.org/x/net/html"

	"github.com/dgallion1/tablegest/internal/richtext"
	"github.com/dgallion1/tablegest/internal/tree"
)

type nodeKind int

const (
	skipNode nodeKind = iota
	inlineNode
	headingNode
	leafBlock
	containerBlock
)

func (e *Extractor) kind(n *html.Node) nodeKind {
	switch n.Type {
	case html.TextNode:
		return inlineNode
	case html.ElementNode:
	default:
		return skipNode
	}
	switch {
	case e.opts.Text.DiscardTags[n.Data]:
		return skipNode
	case e.headings[n.Data] > 0:
		return headingNode
	case richtext.IsInline(n.Data):
		return inlineNode
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if e.isBlock(c) {
			return containerBlock
		}
	}
	return leafBlock
}

func (e *Extractor) isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode || e.opts.Text.DiscardTags[n.Data] {
		return false
	}
	return e.headings[n.Data] > 0 || !richtext.IsInline(n.Data)
}

// blockWriter collects blocks, merging consecutive inline nodes into one.
type blockWriter struct {
	opts richtext.Options
	run  *richtext.Builder
	out  []richtext.RichText
}

func (w *blockWriter) inline(n *html.Node) {
	if w.run == nil {
		w.run = richtext.NewBuilder("", nil, w.opts)
	}
	w.run.Append(n)
}

func (w *blockWriter) flush() {
	if w.run != nil {
		w.add(w.run.Build())
		w.run = nil
	}
}

func (w *blockWriter) add(rt richtext.RichText) {
	rt = rt.CollapseSpace()
	if rt.IsEmpty() {
		return
	}
	w.out = append(w.out, rt)
}

func (e *Extractor) heading(n *html.Node) richtext.RichText {
	return richtext.Extract(n, e.opts.Text)
}

func (e *Extractor) leaf(n *html.Node) richtext.RichText {
	b := richtext.NewBuilder("", nil, e.opts.Text)
	b.AppendChildren(n)
	return b.Build()
}

// FlattenNode turns the children of n into an ordered block sequence.
// Containers holding block-level children are descended into; headings keep
// their tag as the block root while other blocks are untagged.
func (e *Extractor) FlattenNode(n *html.Node) []richtext.RichText {
	var nodes []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, c)
	}
	return e.flatten(nodes)
}

func (e *Extractor) flatten(nodes []*html.Node) []richtext.RichText {
	w := &blockWriter{opts: e.opts.Text}
	// nil entries mark the end of a container.
	stack := make([]*html.Node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			w.flush()
			continue
		}
		switch e.kind(n) {
		case inlineNode:
			w.inline(n)
		case headingNode:
			w.flush()
			w.add(e.heading(n))
		case leafBlock:
			w.flush()
			w.add(e.leaf(n))
		case containerBlock:
			w.flush()
			stack = append(stack, nil)
			for c := n.LastChild; c != nil; c = c.PrevSibling {
				stack = append(stack, c)
			}
		}
	}
	w.flush()
	return w.out
}

func (e *Extractor) flattenNodeRecursive(n *html.Node) []richtext.RichText {
	w := &blockWriter{opts: e.opts.Text}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.flattenInto(w, c)
	}
	w.flush()
	return w.out
}

func (e *Extractor) flattenInto(w *blockWriter, n *html.Node) {
	switch e.kind(n) {
	case inlineNode:
		w.inline(n)
	case headingNode:
		w.flush()
		w.add(e.heading(n))
	case leafBlock:
		w.flush()
		w.add(e.leaf(n))
	case containerBlock:
		w.flush()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			e.flattenInto(w, c)
		}
		w.flush()
	}
}

// flattenContent flattens a LocateContent tree in document order. Nodes on
// the ancestor path only contribute the children recorded in the tree; every
// other node is flattened whole.
func (e *Extractor) flattenContent(t *tree.Tree[*html.Node], path map[*html.Node]bool) []richtext.RichText {
	w := &blockWriter{opts: e.opts.Text}
	if !t.IsEmpty() {
		e.flattenContentInto(w, t, t.RootID(), path)
	}
	w.flush()
	return w.out
}

func (e *Extractor) flattenContentInto(w *blockWriter, t *tree.Tree[*html.Node], id int, path map[*html.Node]bool) {
	n := t.Get(id)
	if !path[n] {
		e.flattenInto(w, n)
		return
	}
	w.flush()
	for _, c := range t.ChildIDs(id) {
		e.flattenContentInto(w, t, c, path)
	}
	w.flush()
}
