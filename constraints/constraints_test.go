// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package constraints

import "testing"

func mustParse(t *testing.T, s string) Constraint {
	t.Helper()
	c, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %s", s, err)
	}
	return c
}

func TestAnyAndEmptyLaws(t *testing.T) {
	win := NewAtom("win32", OpEqual)

	if got := Any().Intersect(win); got.String() != win.String() {
		t.Errorf("Any ∩ win32 = %q, want %q", got, win)
	}
	if !Empty().Intersect(win).IsEmpty() {
		t.Error("Empty ∩ win32 should be empty")
	}
	if !Empty().Difference(win).IsEmpty() {
		t.Error("Empty \\ win32 should be empty")
	}
	if !Any().Allows(win) {
		t.Error("Any should allow win32")
	}
	if Empty().Allows(win) {
		t.Error("Empty should not allow win32")
	}
	if !Any().Difference(Any()).IsEmpty() {
		t.Error("Any \\ Any should be empty")
	}
}

func TestAtomIntersect(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"win32", "win32", "win32"},
		{"win32", "linux", "<empty>"},
		{"win32", "!=win32", "<empty>"},
		{"win32", "!=linux", "win32"},
		{"!=win32", "!=linux", "!=linux, !=win32"},
		{"!=win32", "!=win32", "!=win32"},
	}

	for _, tt := range tests {
		a, b := mustParse(t, tt.a), mustParse(t, tt.b)
		if got := a.Intersect(b); got.String() != tt.want {
			t.Errorf("(%s) ∩ (%s) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
		// Intersection must be commutative.
		if got := b.Intersect(a); got.String() != tt.want {
			t.Errorf("(%s) ∩ (%s) = %q, want %q", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestAtomUnion(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"win32", "linux", "linux || win32"},
		{"win32", "!=win32", "*"},
		{"!=win32", "!=linux", "*"},
		{"linux", "!=win32", "!=win32"},
		{"win32", "win32", "win32"},
	}

	for _, tt := range tests {
		a, b := mustParse(t, tt.a), mustParse(t, tt.b)
		if got := a.Union(b); got.String() != tt.want {
			t.Errorf("(%s) ∪ (%s) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
		if got := b.Union(a); got.String() != tt.want {
			t.Errorf("(%s) ∪ (%s) = %q, want %q", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestUnionEqualityIsOrderInsensitive(t *testing.T) {
	u1 := NewUnion(NewAtom("linux", OpEqual), NewAtom("win32", OpEqual))
	u2 := NewUnion(NewAtom("win32", OpEqual), NewAtom("linux", OpEqual))

	if u1.String() != u2.String() {
		t.Errorf("union equality should be order-insensitive: %q != %q", u1, u2)
	}
	if !u1.AllowsAll(u2) || !u2.AllowsAll(u1) {
		t.Error("reordered unions should allow each other entirely")
	}
}

func TestMultiRejectsPositiveAtoms(t *testing.T) {
	_, err := NewMulti(NewAtom("win32", OpNotEqual), NewAtom("linux", OpEqual))
	if err == nil {
		t.Fatal("NewMulti should reject positive atoms")
	}

	m, err := NewMulti(NewAtom("win32", OpNotEqual), NewAtom("linux", OpNotEqual))
	if err != nil {
		t.Fatalf("NewMulti failed: %s", err)
	}
	if m.Allows(NewAtom("win32", OpEqual)) {
		t.Error("multi-constraint should exclude win32")
	}
	if !m.Allows(NewAtom("darwin", OpEqual)) {
		t.Error("multi-constraint should admit darwin")
	}
}

func TestDifference(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{"!=win32", "linux", "!=linux, !=win32"},
		{"win32 || linux", "linux", "win32"},
		{"win32", "win32", "<empty>"},
		{"*", "win32", "!=win32"},
	}

	for _, tt := range tests {
		a, b := mustParse(t, tt.a), mustParse(t, tt.b)
		if got := a.Difference(b); got.String() != tt.want {
			t.Errorf("(%s) \\ (%s) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSubsetTests(t *testing.T) {
	u := mustParse(t, "win32 || linux")
	if !u.AllowsAll(mustParse(t, "win32")) {
		t.Error("win32 should be a subset of win32 || linux")
	}
	if u.AllowsAll(mustParse(t, "darwin")) {
		t.Error("darwin is not a subset of win32 || linux")
	}
	if !mustParse(t, "!=darwin").AllowsAll(u) {
		t.Error("win32 || linux should be a subset of !=darwin")
	}
	if !u.AllowsAny(mustParse(t, "linux || darwin")) {
		t.Error("unions sharing linux should overlap")
	}
	if u.AllowsAny(mustParse(t, "darwin")) {
		t.Error("disjoint constraint reported as overlapping")
	}
}

func TestAllowsAllAcrossForms(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"win32", "win32", true},
		{"win32", "linux", false},
		{"win32", "win32 || linux", false},
		{"!=darwin, !=win32", "linux", true},
		{"!=darwin, !=win32", "win32", false},
		{"!=darwin, !=win32", "!=darwin", false},
		{"!=darwin", "!=darwin, !=win32", true},
		{"win32 || linux", "win32 || linux", true},
		{"win32 || linux", "!=darwin", false},
	}

	for _, tt := range tests {
		if got := mustParse(t, tt.a).AllowsAll(mustParse(t, tt.b)); got != tt.want {
			t.Errorf("(%s).AllowsAll(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
