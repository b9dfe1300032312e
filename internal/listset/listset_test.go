package listset

import (
	"testing"
)

func TestAddPreservesFirstSeenOrder(t *testing.T) {
	got := Add([]string{"b", "a", "b"}, "c", "a", "d")
	want := []string{"b", "a", "c", "d"}
	if !Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestAddIdempotent(t *testing.T) {
	a := []string{"e1", "e2"}
	once := Add(a, "e3")
	twice := Add(Add(a, "e3"), "e3")
	if !Equal(once, twice) {
		t.Errorf("expected %v, got %v", once, twice)
	}
	if !Equal(Add(a, Add(a, "e3")...), once) {
		t.Errorf("add(a, add(a, x)) != add(a, x)")
	}
}

func TestRemoveIdempotent(t *testing.T) {
	a := []string{"e1", "e2", "e3"}
	once := Remove(a, "e2")
	twice := Remove(once, "e2")
	if !Equal(once, twice) {
		t.Errorf("expected %v, got %v", once, twice)
	}
	if !Equal(once, []string{"e1", "e3"}) {
		t.Errorf("expected [e1 e3], got %v", once)
	}
}

func TestRemoveAfterAddDropsPreexisting(t *testing.T) {
	a := []string{"x", "e1", "x"}
	got := Remove(Add(a, "x"), "x")
	if Contains(got, "x") {
		t.Errorf("expected x removed, got %v", got)
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	a := []string{"e1"}
	got := Remove(a, "nope")
	if !Equal(got, a) {
		t.Errorf("expected %v, got %v", a, got)
	}
}

func TestNilInputs(t *testing.T) {
	if got := Add[string](nil); len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
	if got := Remove[string](nil, "a"); len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
	if got := Add(nil, "a"); !Equal(got, []string{"a"}) {
		t.Errorf("expected [a], got %v", got)
	}
}

func TestInputsNotMutated(t *testing.T) {
	a := []string{"a", "b"}
	_ = Remove(a, "a")
	_ = Add(a, "c")
	if !Equal(a, []string{"a", "b"}) {
		t.Errorf("input mutated: %v", a)
	}
}
