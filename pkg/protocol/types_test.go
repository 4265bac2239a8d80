package protocol

import "testing"

func TestPositionCompare(t *testing.T) {
	cases := []struct {
		a, b Position
		want int
	}{
		{Position{Line: 0, Character: 0}, Position{Line: 0, Character: 0}, 0},
		{Position{Line: 0, Character: 1}, Position{Line: 0, Character: 3}, -1},
		{Position{Line: 1, Character: 0}, Position{Line: 0, Character: 9}, 1},
		{Position{Line: 2, Character: 4}, Position{Line: 2, Character: 4}, 0},
	}

	for _, c := range cases {
		if got := c.a.Compare(c.b); got != c.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestPositionBefore(t *testing.T) {
	a := Position{Line: 0, Character: 1}
	b := Position{Line: 1, Character: 0}

	if !a.Before(b) {
		t.Error("(0,1) should be before (1,0)")
	}
	if b.Before(a) {
		t.Error("(1,0) should not be before (0,1)")
	}
	if a.Before(a) {
		t.Error("a position is not before itself")
	}
}

func TestRangeContains(t *testing.T) {
	r := NewRange(1, 2, 3, 4)

	if !r.Contains(Position{Line: 2, Character: 0}) {
		t.Error("range should contain interior position")
	}
	if !r.Contains(Position{Line: 1, Character: 2}) {
		t.Error("range should contain its start")
	}
	if !r.Contains(Position{Line: 3, Character: 4}) {
		t.Error("range should contain its end")
	}
	if r.Contains(Position{Line: 3, Character: 5}) {
		t.Error("range should not contain position past its end")
	}
}

func TestRangeOverlaps(t *testing.T) {
	a := NewRange(0, 0, 0, 5)
	b := NewRange(0, 3, 0, 8)
	c := NewRange(0, 5, 0, 9)
	d := NewRange(1, 0, 1, 1)

	if !a.Overlaps(b) {
		t.Error("overlapping ranges should overlap")
	}
	if !a.Overlaps(c) {
		t.Error("adjacent ranges should overlap")
	}
	if a.Overlaps(d) {
		t.Error("disjoint ranges should not overlap")
	}
}

func TestRangeIsEmpty(t *testing.T) {
	if !NewRange(1, 1, 1, 1).IsEmpty() {
		t.Error("zero-width range should be empty")
	}
	if NewRange(1, 1, 1, 2).IsEmpty() {
		t.Error("non-zero-width range should not be empty")
	}
}

func TestSymbolKindValues(t *testing.T) {
	kinds := []SymbolKind{
		SymbolKindFile,
		SymbolKindModule,
		SymbolKindNamespace,
		SymbolKindPackage,
		SymbolKindClass,
		SymbolKindMethod,
		SymbolKindProperty,
		SymbolKindField,
		SymbolKindConstructor,
		SymbolKindEnum,
		SymbolKindInterface,
		SymbolKindFunction,
		SymbolKindVariable,
		SymbolKindConstant,
	}

	for i, kind := range kinds {
		if kind != SymbolKind(i+1) {
			t.Errorf("Kind mismatch: got %d, want %d", kind, i+1)
		}
	}
}
