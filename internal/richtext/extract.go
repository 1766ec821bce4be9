package richtext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/tablegest/internal/tree"
)

// Action is what the extractor does with an element.
type Action int

const (
	// Keep retains the element as a formatting node.
	Keep Action = iota
	// Discard drops the element and its whole subtree.
	Discard
	// AlwaysKeep retains the element even when it would otherwise be unwrapped.
	AlwaysKeep
	// DropWrapper drops the element but still extracts its children.
	DropWrapper
)

// Options selects which elements survive extraction.
type Options struct {
	IgnoredTags map[string]bool
	DiscardTags map[string]bool
	KeepTags    map[string]bool
	// OnlyInline unwraps every element that is not an inline tag.
	OnlyInline bool
}

// TagSet builds a lookup set from tag names.
func TagSet(tags ...string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(t)] = true
	}
	return set
}

// Classify decides how tag is handled. Discard wins over keep, keep wins over
// the unwrapping rules.
func (o Options) Classify(tag string) Action {
	switch {
	case o.DiscardTags[tag]:
		return Discard
	case o.KeepTags[tag]:
		return AlwaysKeep
	case o.IgnoredTags[tag], o.OnlyInline && !IsInline(tag):
		return DropWrapper
	}
	return Keep
}

var inlineTags = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.Acronym: true, atom.B: true, atom.Bdi: true,
	atom.Bdo: true, atom.Big: true, atom.Br: true, atom.Button: true, atom.Cite: true,
	atom.Code: true, atom.Data: true, atom.Del: true, atom.Dfn: true, atom.Em: true,
	atom.Font: true, atom.I: true, atom.Img: true, atom.Input: true, atom.Ins: true,
	atom.Kbd: true, atom.Label: true, atom.Map: true, atom.Mark: true, atom.Meter: true,
	atom.Object: true, atom.Output: true, atom.Q: true, atom.S: true, atom.Samp: true,
	atom.Select: true, atom.Small: true, atom.Span: true, atom.Strike: true,
	atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.Textarea: true,
	atom.Time: true, atom.Tt: true, atom.U: true, atom.Var: true, atom.Wbr: true,
}

// IsInline reports whether tag is an inline (phrasing) element.
func IsInline(tag string) bool {
	return inlineTags[atom.Lookup([]byte(tag))]
}

// Attrs copies an element's attributes into a map, nil when there are none.
func Attrs(n *html.Node) map[string]string {
	if len(n.Attr) == 0 {
		return nil
	}
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		m[key] = a.Val
	}
	return m
}

// Builder accumulates nodes into a single RichText under one root element.
type Builder struct {
	opts  Options
	text  strings.Builder
	elems *tree.Tree[Element]
}

// NewBuilder starts a RichText whose root element has the given tag and attrs.
// An empty tag makes an untagged root that renders without markup.
func NewBuilder(tag string, attrs map[string]string, opts Options) *Builder {
	return &Builder{
		opts:  opts,
		elems: tree.New(Element{Tag: tag, Attrs: attrs}),
	}
}

// Len is the number of text bytes appended so far.
func (b *Builder) Len() int { return b.text.Len() }

// Append extracts n (a text node or element) under the root using an
// explicit stack.
func (b *Builder) Append(n *html.Node) {
	type frame struct {
		node   *html.Node
		parent int
		closes int
	}
	stack := []frame{{node: n, parent: b.elems.RootID()}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node == nil {
			b.elems.Node(f.closes).End = b.text.Len()
			continue
		}
		switch f.node.Type {
		case html.TextNode:
			b.text.WriteString(f.node.Data)
			continue
		case html.ElementNode:
		default:
			continue
		}

		parent := f.parent
		switch b.opts.Classify(f.node.Data) {
		case Discard:
			continue
		case DropWrapper:
		default:
			parent = b.open(f.node, f.parent)
			stack = append(stack, frame{closes: parent})
		}
		for c := f.node.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, frame{node: c, parent: parent})
		}
	}
}

// AppendChildren appends every child of n in document order.
func (b *Builder) AppendChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.Append(c)
	}
}

// subtree extracts n into a standalone element tree. Text goes straight into
// b, so offsets are already absolute. keepRoot is false when n is unwrapped
// and only its children belong in the result.
func (b *Builder) subtree(n *html.Node) (t *tree.Tree[Element], keepRoot bool) {
	switch n.Type {
	case html.TextNode:
		b.text.WriteString(n.Data)
		return tree.Empty[Element](), false
	case html.ElementNode:
	default:
		return tree.Empty[Element](), false
	}

	action := b.opts.Classify(n.Data)
	if action == Discard {
		return tree.Empty[Element](), false
	}
	pos := b.text.Len()
	t = tree.New(Element{Tag: n.Data, Start: pos, End: pos, Attrs: Attrs(n)})
	b.splice(t, t.RootID(), n)
	t.Node(t.RootID()).End = b.text.Len()
	return t, action != DropWrapper
}

// splice merges the subtree of every child of n under parent.
func (b *Builder) splice(t *tree.Tree[Element], parent int, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sub, keepRoot := b.subtree(c)
		if keepRoot {
			t.MergeSubtree(parent, sub)
		} else {
			t.MergeSubtreeNoRoot(parent, sub)
		}
	}
}

func (b *Builder) open(n *html.Node, parent int) int {
	pos := b.text.Len()
	id := b.elems.AddNode(Element{Tag: n.Data, Start: pos, End: pos, Attrs: Attrs(n)})
	b.elems.AddChild(parent, id)
	return id
}

// Build closes the root over all appended text. The builder must not be
// used afterwards.
func (b *Builder) Build() RichText {
	b.elems.Node(b.elems.RootID()).End = b.text.Len()
	return RichText{Text: b.text.String(), Elements: b.elems}
}

// Extract converts the subtree rooted at n. The node itself becomes the root
// element regardless of opts; its descendants are filtered.
func Extract(n *html.Node, opts Options) RichText {
	if n.Type == html.TextNode {
		b := NewBuilder("", nil, opts)
		b.Append(n)
		return b.Build()
	}
	b := NewBuilder(n.Data, Attrs(n), opts)
	b.AppendChildren(n)
	return b.Build()
}

// extractRecursive is Extract built from per-child subtrees.
func extractRecursive(n *html.Node, opts Options) RichText {
	if n.Type == html.TextNode {
		b := NewBuilder("", nil, opts)
		b.text.WriteString(n.Data)
		return b.Build()
	}
	b := NewBuilder(n.Data, Attrs(n), opts)
	b.splice(b.elems, b.elems.RootID(), n)
	return b.Build()
}

// PlainText concatenates every text node under n verbatim.
func PlainText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
