// Package tree provides an insertion-ordered arena tree. Nodes live in a flat
// slice and edges are explicit child-index lists, so whole subtrees can be
// spliced by rewriting indices instead of relinking pointers.
//
// Indices are never taken from external input; an out-of-range index is a
// programming error and panics.
package tree

import (
	"encoding/json"
	"iter"
	"strings"
)

// Tree is a vector-backed tree. Node ids are positions in insertion order.
type Tree[N any] struct {
	root     int
	nodes    []N
	children [][]int
}

// Empty returns a tree with no nodes.
func Empty[N any]() *Tree[N] {
	return &Tree[N]{}
}

// New returns a tree holding a single root node.
func New[N any](node N) *Tree[N] {
	return &Tree[N]{
		nodes:    []N{node},
		children: [][]int{nil},
	}
}

func (t *Tree[N]) IsEmpty() bool { return len(t.nodes) == 0 }

func (t *Tree[N]) Len() int { return len(t.nodes) }

func (t *Tree[N]) RootID() int { return t.root }

func (t *Tree[N]) Root() N { return t.nodes[t.root] }

// Get returns a copy of the node with the given id.
func (t *Tree[N]) Get(id int) N { return t.nodes[id] }

// Node returns a pointer to the stored node so it can be mutated in place.
func (t *Tree[N]) Node(id int) *N { return &t.nodes[id] }

// Nodes returns the backing slice in insertion order.
func (t *Tree[N]) Nodes() []N { return t.nodes }

// ChildIDs returns the ordered child ids of a node.
func (t *Tree[N]) ChildIDs(id int) []int { return t.children[id] }

// AddNode appends a detached node and returns its id.
func (t *Tree[N]) AddNode(node N) int {
	id := len(t.nodes)
	t.nodes = append(t.nodes, node)
	t.children = append(t.children, nil)
	return id
}

// AddChild records child under parent. When child is the current root the
// parent becomes the new root, which lets callers build a tree bottom-up.
func (t *Tree[N]) AddChild(parent, child int) {
	if child == t.root {
		t.root = parent
	}
	t.children[parent] = append(t.children[parent], child)
}

// IDs yields node ids in preorder. The sequence can be ranged over repeatedly.
func (t *Tree[N]) IDs() iter.Seq[int] {
	return func(yield func(int) bool) {
		if len(t.nodes) == 0 {
			return
		}
		stack := []int{t.root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(id) {
				return
			}
			kids := t.children[id]
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, kids[i])
			}
		}
	}
}

// Values yields nodes in preorder.
func (t *Tree[N]) Values() iter.Seq[N] {
	return func(yield func(N) bool) {
		for id := range t.IDs() {
			if !yield(t.nodes[id]) {
				return
			}
		}
	}
}

// MergeSubtree appends every node of other and attaches other's root as the
// last child of parent. Ids of other are shifted by the current size.
func (t *Tree[N]) MergeSubtree(parent int, other *Tree[N]) {
	if other.IsEmpty() {
		return
	}
	offset := len(t.nodes)
	t.nodes = append(t.nodes, other.nodes...)
	for _, kids := range other.children {
		t.children = append(t.children, shift(kids, func(c int) int { return c + offset }))
	}
	t.children[parent] = append(t.children[parent], other.root+offset)
}

// MergeSubtreeNoRoot splices other like MergeSubtree but discards other's
// root, reparenting its direct children under parent.
func (t *Tree[N]) MergeSubtreeNoRoot(parent int, other *Tree[N]) {
	if other.IsEmpty() {
		return
	}
	offset := len(t.nodes)
	root := other.root
	remap := func(id int) int {
		if id > root {
			return id + offset - 1
		}
		return id + offset
	}

	for id, node := range other.nodes {
		if id == root {
			continue
		}
		t.nodes = append(t.nodes, node)
	}
	for id, kids := range other.children {
		if id == root {
			continue
		}
		t.children = append(t.children, shift(kids, remap))
	}
	for _, c := range other.children[root] {
		t.children[parent] = append(t.children[parent], remap(c))
	}
}

func shift(ids []int, f func(int) int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = f(id)
	}
	return out
}

// Clone copies the arena. cloneNode deep-copies node values; nil copies them
// by assignment.
func (t *Tree[N]) Clone(cloneNode func(N) N) *Tree[N] {
	if len(t.nodes) == 0 {
		return &Tree[N]{root: t.root}
	}
	out := &Tree[N]{
		root:     t.root,
		nodes:    make([]N, len(t.nodes)),
		children: make([][]int, len(t.children)),
	}
	for i, n := range t.nodes {
		if cloneNode != nil {
			n = cloneNode(n)
		}
		out.nodes[i] = n
	}
	for i, kids := range t.children {
		if kids != nil {
			out.children[i] = append([]int(nil), kids...)
		}
	}
	return out
}

// Validate reports whether every non-root node is the child of exactly one
// node and the root is nobody's child.
func (t *Tree[N]) Validate() bool {
	if len(t.nodes) == 0 {
		return len(t.children) == 0
	}
	if len(t.children) != len(t.nodes) || t.root < 0 || t.root >= len(t.nodes) {
		return false
	}
	parents := make([]int, len(t.nodes))
	for _, kids := range t.children {
		for _, c := range kids {
			if c < 0 || c >= len(t.nodes) {
				return false
			}
			parents[c]++
		}
	}
	for id, n := range parents {
		if id == t.root && n != 0 {
			return false
		}
		if id != t.root && n != 1 {
			return false
		}
	}
	return true
}

// Format renders the structure with one node per line:
//
//	body -> {
//	    h1
//	    div -> {
//	        p
//	    }
//	}
func (t *Tree[N]) Format(label func(id int) string) string {
	if len(t.nodes) == 0 {
		return ""
	}
	var sb strings.Builder
	var walk func(id, depth int)
	walk = func(id, depth int) {
		indent := strings.Repeat("    ", depth)
		sb.WriteString(indent)
		sb.WriteString(label(id))
		if len(t.children[id]) == 0 {
			sb.WriteString("\n")
			return
		}
		sb.WriteString(" -> {\n")
		for _, c := range t.children[id] {
			walk(c, depth+1)
		}
		sb.WriteString(indent)
		sb.WriteString("}\n")
	}
	walk(t.root, 0)
	return sb.String()
}

type jsonTree[N any] struct {
	Root     int     `json:"root"`
	Nodes    []N     `json:"nodes"`
	Children [][]int `json:"children"`
}

func (t *Tree[N]) MarshalJSON() ([]byte, error) {
	nodes := t.nodes
	if nodes == nil {
		nodes = []N{}
	}
	children := make([][]int, len(t.children))
	for i, kids := range t.children {
		if kids == nil {
			kids = []int{}
		}
		children[i] = kids
	}
	return json.Marshal(jsonTree[N]{Root: t.root, Nodes: nodes, Children: children})
}

func (t *Tree[N]) UnmarshalJSON(data []byte) error {
	var j jsonTree[N]
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	t.root = j.Root
	t.nodes = j.Nodes
	t.children = make([][]int, len(j.Nodes))
	for i := range t.children {
		if i < len(j.Children) && len(j.Children[i]) > 0 {
			t.children[i] = j.Children[i]
		}
	}
	if len(t.nodes) == 0 {
		t.nodes = nil
		t.children = nil
	}
	return nil
}
