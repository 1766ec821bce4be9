package tree

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"
)

// bottomUp builds r -> {x, y} where r is inserted after x.
func bottomUp() *Tree[string] {
	t := Empty[string]()
	x := t.AddNode("x")
	r := t.AddNode("r")
	y := t.AddNode("y")
	t.AddChild(r, x)
	t.AddChild(r, y)
	return t
}

func TestTree_AddChildPromotesRoot(t *testing.T) {
	tr := bottomUp()
	if tr.RootID() != 1 {
		t.Fatalf("expected root 1, got %d", tr.RootID())
	}
	if tr.Root() != "r" {
		t.Errorf("expected root value %q, got %q", "r", tr.Root())
	}
	if !tr.Validate() {
		t.Error("expected valid tree")
	}
	got := slices.Collect(tr.Values())
	want := []string{"r", "x", "y"}
	if !slices.Equal(got, want) {
		t.Errorf("preorder: expected %v, got %v", want, got)
	}
}

func TestTree_PreorderIsRestartable(t *testing.T) {
	tr := New("a")
	b := tr.AddNode("b")
	c := tr.AddNode("c")
	d := tr.AddNode("d")
	tr.AddChild(0, b)
	tr.AddChild(b, d)
	tr.AddChild(0, c)

	first := slices.Collect(tr.IDs())
	second := slices.Collect(tr.IDs())
	want := []int{0, 1, 3, 2}
	if !slices.Equal(first, want) || !slices.Equal(second, want) {
		t.Errorf("expected %v twice, got %v and %v", want, first, second)
	}

	// Early break must not disturb later traversals.
	for id := range tr.IDs() {
		if id == 1 {
			break
		}
	}
	if got := slices.Collect(tr.IDs()); !slices.Equal(got, want) {
		t.Errorf("after break: expected %v, got %v", want, got)
	}
}

func TestTree_EmptyTraversal(t *testing.T) {
	tr := Empty[int]()
	if !tr.IsEmpty() {
		t.Fatal("expected empty tree")
	}
	if n := len(slices.Collect(tr.IDs())); n != 0 {
		t.Errorf("expected no ids, got %d", n)
	}
	if !tr.Validate() {
		t.Error("empty tree should validate")
	}
}

func TestTree_MergeSubtree(t *testing.T) {
	tr := New("a")
	tr.MergeSubtree(0, bottomUp())

	if tr.Len() != 4 {
		t.Fatalf("expected 4 nodes, got %d", tr.Len())
	}
	if !slices.Equal(tr.ChildIDs(0), []int{2}) {
		t.Errorf("expected root children [2], got %v", tr.ChildIDs(0))
	}
	if !slices.Equal(tr.ChildIDs(2), []int{1, 3}) {
		t.Errorf("expected merged root children [1 3], got %v", tr.ChildIDs(2))
	}
	got := slices.Collect(tr.Values())
	want := []string{"a", "r", "x", "y"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !tr.Validate() {
		t.Error("expected valid tree after merge")
	}
}

func TestTree_MergeSubtreeNoRoot(t *testing.T) {
	tr := New("a")
	tr.MergeSubtreeNoRoot(0, bottomUp())

	if tr.Len() != 3 {
		t.Fatalf("expected 3 nodes, got %d", tr.Len())
	}
	got := slices.Collect(tr.Values())
	want := []string{"a", "x", "y"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !tr.Validate() {
		t.Error("expected valid tree after merge")
	}
}

func TestTree_MergeNestedNoRoot(t *testing.T) {
	other := New("root")
	p := other.AddNode("p")
	q := other.AddNode("q")
	other.AddChild(0, p)
	other.AddChild(p, q)

	tr := New("a")
	b := tr.AddNode("b")
	tr.AddChild(0, b)
	tr.MergeSubtreeNoRoot(b, other)

	got := slices.Collect(tr.Values())
	want := []string{"a", "b", "p", "q"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !tr.Validate() {
		t.Error("expected valid tree")
	}
}

func TestTree_MergeEmptyIsNoop(t *testing.T) {
	tr := New("a")
	tr.MergeSubtree(0, Empty[string]())
	tr.MergeSubtreeNoRoot(0, Empty[string]())
	if tr.Len() != 1 || len(tr.ChildIDs(0)) != 0 {
		t.Errorf("expected untouched tree, got len=%d children=%v", tr.Len(), tr.ChildIDs(0))
	}
}

func TestTree_CloneIsIndependent(t *testing.T) {
	tr := bottomUp()
	cp := tr.Clone(nil)
	*cp.Node(0) = "changed"
	cp.AddChild(0, cp.AddNode("z"))

	if tr.Get(0) != "x" {
		t.Errorf("original node mutated: %q", tr.Get(0))
	}
	if len(tr.ChildIDs(0)) != 0 {
		t.Errorf("original children mutated: %v", tr.ChildIDs(0))
	}
}

func TestTree_OutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range id")
		}
	}()
	New(1).Get(5)
}

func TestTree_Format(t *testing.T) {
	tr := New("body")
	h := tr.AddNode("h1")
	d := tr.AddNode("div")
	p := tr.AddNode("p")
	tr.AddChild(0, h)
	tr.AddChild(0, d)
	tr.AddChild(d, p)

	got := tr.Format(func(id int) string { return tr.Get(id) })
	want := `
body -> {
    h1
    div -> {
        p
    }
}`
	if strings.TrimSpace(got) != strings.TrimSpace(want) {
		t.Errorf("unexpected format:\n%s", got)
	}
}

func TestTree_JSON(t *testing.T) {
	tr := bottomUp()
	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"root":1,"nodes":["x","r","y"],"children":[[],[0,2],[]]}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	var back Tree[string]
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.RootID() != 1 || !back.Validate() {
		t.Errorf("decoded tree invalid: root=%d", back.RootID())
	}
	if got := slices.Collect(back.Values()); !slices.Equal(got, []string{"r", "x", "y"}) {
		t.Errorf("decoded preorder %v", got)
	}
}
