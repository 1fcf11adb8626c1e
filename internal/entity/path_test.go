package entity

import "testing"

func TestNewRejectsEmptyPart(t *testing.T) {
	if _, err := New("a", "", "b"); err == nil {
		t.Fatal("expected error for empty part")
	}
}

func TestParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"a/b/c", "a/b/c"},
		{"/a/b/", "a/b"},
	}
	for _, c := range cases {
		p, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got := p.String(); got != c.want {
			t.Errorf("Parse(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEqualAndHash(t *testing.T) {
	a := MustNew("x", "y")
	b := MustNew("x", "y")
	c := MustNew("x", "z")
	if !a.Equal(b) {
		t.Fatal("expected a == b")
	}
	if a.Hash() != b.Hash() {
		t.Fatal("expected equal hashes for equal paths")
	}
	if a.Equal(c) {
		t.Fatal("expected a != c")
	}
}

func TestCloneIsCheapAndShared(t *testing.T) {
	a := MustNew("x", "y", "z")
	b := a
	if !a.Equal(b) {
		t.Fatal("copy should be structurally equal")
	}
}

func TestParentAndRoot(t *testing.T) {
	root := Root()
	if !root.IsRoot() {
		t.Fatal("expected root to be root")
	}
	if _, ok := root.Parent(); ok {
		t.Fatal("root has no parent")
	}

	a := MustNew("x", "y")
	parent, ok := a.Parent()
	if !ok {
		t.Fatal("expected a parent")
	}
	if parent.String() != "x" {
		t.Fatalf("got parent %q, want %q", parent.String(), "x")
	}
}

func TestChild(t *testing.T) {
	a := MustNew("x")
	b, err := a.Child("y")
	if err != nil {
		t.Fatal(err)
	}
	if b.String() != "x/y" {
		t.Fatalf("got %q, want %q", b.String(), "x/y")
	}
	if _, err := a.Child(""); err == nil {
		t.Fatal("expected error for empty child name")
	}
}

func TestDescendantAncestorChild(t *testing.T) {
	ab := MustNew("a", "b")
	abc := MustNew("a", "b", "c")
	abcd := MustNew("a", "b", "c", "d")

	if !abc.IsDescendantOf(ab) {
		t.Fatal("abc should be descendant of ab")
	}
	if !ab.IsAncestorOf(abc) {
		t.Fatal("ab should be ancestor of abc")
	}
	if !abc.IsChildOf(ab) {
		t.Fatal("abc should be direct child of ab")
	}
	if abcd.IsChildOf(ab) {
		t.Fatal("abcd should not be a direct child of ab")
	}
	if !abcd.IsDescendantOf(ab) {
		t.Fatal("abcd should be descendant of ab")
	}
	if ab.IsDescendantOf(ab) {
		t.Fatal("a path is not a strict descendant of itself")
	}
}

func TestStartsWith(t *testing.T) {
	ab := MustNew("a", "b")
	abc := MustNew("a", "b", "c")
	if !abc.StartsWith(ab) {
		t.Fatal("abc should start with ab")
	}
	if !ab.StartsWith(ab) {
		t.Fatal("a path starts with itself")
	}
	if ab.StartsWith(abc) {
		t.Fatal("ab should not start with abc")
	}
}

func TestFirstCommonAncestor(t *testing.T) {
	a := MustNew("x", "y", "1")
	b := MustNew("x", "y", "2")
	got := FirstCommonAncestor(a, b)
	if got.String() != "x/y" {
		t.Fatalf("got %q, want %q", got.String(), "x/y")
	}

	unrelated := MustNew("z")
	if got := FirstCommonAncestor(a, unrelated); !got.IsRoot() {
		t.Fatalf("expected root, got %q", got.String())
	}
}

func TestIncrementalWalk(t *testing.T) {
	end := MustNew("foo", "bar", "baz")
	start := MustNew("foo")

	walk := IncrementalWalk(start, end)
	want := []string{"foo/bar", "foo/bar/baz"}
	if len(walk) != len(want) {
		t.Fatalf("got %d entries, want %d", len(walk), len(want))
	}
	for i, w := range want {
		if walk[i].String() != w {
			t.Errorf("walk[%d] = %q, want %q", i, walk[i].String(), w)
		}
	}
}

func TestIncrementalWalkFromRoot(t *testing.T) {
	end := MustNew("a", "b")
	walk := IncrementalWalk(Root(), end)
	want := []string{"a", "a/b"}
	if len(walk) != len(want) {
		t.Fatalf("got %d entries, want %d", len(walk), len(want))
	}
	for i, w := range want {
		if walk[i].String() != w {
			t.Errorf("walk[%d] = %q, want %q", i, walk[i].String(), w)
		}
	}
}

func TestIncrementalWalkUnrelated(t *testing.T) {
	start := MustNew("a")
	end := MustNew("z", "y")
	if walk := IncrementalWalk(start, end); walk != nil {
		t.Fatalf("expected nil walk for unrelated paths, got %v", walk)
	}
}
