package strset

import "testing"

func TestAddHasRemove(t *testing.T) {
	s := New("a", "b")

	if !s.Has("a") || !s.Has("b") {
		t.Fatalf("New didn't add both names")
	}
	if s.Has("c") {
		t.Fatalf("Has(c) true on a set that never saw c")
	}

	s.Remove("a")
	if s.Has("a") {
		t.Fatalf("Remove didn't take")
	}
	if s.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", s.Len())
	}
}

func TestUnionAndDiff(t *testing.T) {
	a := New("x", "y")
	b := New("y", "z")

	u := Union(a, b)
	if !u.Equal(New("x", "y", "z")) {
		t.Fatalf("Union: got %v", u.Sorted())
	}

	d := Diff(a, b)
	if !d.Equal(New("x")) {
		t.Fatalf("Diff: got %v", d.Sorted())
	}
}

func TestEqual(t *testing.T) {
	a := New("a", "b")
	b := New("b", "a")
	c := New("a")

	if !a.Equal(b) {
		t.Fatalf("sets with the same members in different insertion order should be equal")
	}
	if a.Equal(c) {
		t.Fatalf("sets with different membership should not be equal")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := New("a")
	b := a.Clone()
	b.Add("b")

	if a.Has("b") {
		t.Fatalf("mutating the clone mutated the original")
	}
}

func TestSorted(t *testing.T) {
	s := New("c", "a", "b")
	got := s.Sorted()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sorted: got %v, want %v", got, want)
		}
	}
}
