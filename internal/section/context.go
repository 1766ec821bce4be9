package section

import (
	"errors"
	"slices"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/tablegest/internal/richtext"
	"github.com/dgallion1/tablegest/internal/tree"
)

var ErrNotElement = errors.New("section: target is not an element")

type level struct {
	ancestor *html.Node
	before   []*html.Node
	after    []*html.Node
}

// ancestors returns the element ancestors of target from <body> (or the
// topmost element when there is no body) down to target's parent.
func ancestors(target *html.Node) []*html.Node {
	var path []*html.Node
	for p := target.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
		path = append(path, p)
	}
	slices.Reverse(path)
	for i, p := range path {
		if p.DataAtom == atom.Body {
			return path[i:]
		}
	}
	return path
}

func locate(target *html.Node) []level {
	path := ancestors(target)
	levels := make([]level, len(path))
	for i, anc := range path {
		onPath := target
		if i+1 < len(path) {
			onPath = path[i+1]
		}
		lv := level{ancestor: anc}
		seen := false
		for c := anc.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c == onPath:
				seen = true
			case seen:
				lv.after = append(lv.after, c)
			default:
				lv.before = append(lv.before, c)
			}
		}
		levels[i] = lv
	}
	return levels
}

// LocateContent returns the siblings preceding and following target at every
// ancestor level as two trees mirroring the ancestor chain. Each ancestor
// node holds its raw sibling nodes plus the next ancestor, in document order.
func LocateContent(target *html.Node) (before, after *tree.Tree[*html.Node]) {
	levels := locate(target)
	if len(levels) == 0 {
		return tree.Empty[*html.Node](), tree.Empty[*html.Node]()
	}
	before = tree.New(levels[0].ancestor)
	after = tree.New(levels[0].ancestor)
	bp, ap := before.RootID(), after.RootID()

	for i, lv := range levels {
		for _, n := range lv.before {
			before.AddChild(bp, before.AddNode(n))
		}
		nextBefore, nextAfter := -1, -1
		if i+1 < len(levels) {
			next := levels[i+1].ancestor
			nextBefore = before.AddNode(next)
			before.AddChild(bp, nextBefore)
			nextAfter = after.AddNode(next)
			after.AddChild(ap, nextAfter)
		}
		for _, n := range lv.after {
			after.AddChild(ap, after.AddNode(n))
		}
		bp, ap = nextBefore, nextAfter
	}
	return before, after
}

// Extract returns the open sections around target, outermost first. The
// content before target is read in document order: a heading of level N
// closes every open level >= N and opens level N. The content after target
// belongs to the innermost level until the next heading that ends it.
func (e *Extractor) Extract(target *html.Node) ([]ContentHierarchy, error) {
	if target == nil || target.Type != html.ElementNode {
		return nil, ErrNotElement
	}

	path := make(map[*html.Node]bool)
	for _, p := range ancestors(target) {
		path[p] = true
	}
	before, after := LocateContent(target)

	out := []ContentHierarchy{{Heading: richtext.Empty()}}
	for _, b := range e.flattenContent(before, path) {
		n := e.headingLevel(b)
		if n == 0 {
			top := &out[len(out)-1]
			top.ContentBefore = append(top.ContentBefore, b)
			continue
		}
		for len(out) > 1 && out[len(out)-1].Level >= n {
			out = out[:len(out)-1]
		}
		out = append(out, ContentHierarchy{Level: n, Heading: b})
	}

	inner := &out[len(out)-1]
	for _, b := range e.flattenContent(after, path) {
		if n := e.headingLevel(b); n > 0 && (inner.Level == 0 || n <= inner.Level) {
			break
		}
		inner.ContentAfter = append(inner.ContentAfter, b)
	}

	for i := range out {
		out[i].ContentBefore = orEmpty(out[i].ContentBefore)
		out[i].ContentAfter = orEmpty(out[i].ContentAfter)
	}
	return out, nil
}

func orEmpty(in []richtext.RichText) []richtext.RichText {
	if in == nil {
		return []richtext.RichText{}
	}
	return in
}
