// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"testing"

	"github.com/Masterminds/semver/v3"
)

func term(name, constraint string, positive bool) *Term {
	return newTerm(NewDependency(name, constraint), positive)
}

func version(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestTermRelation(t *testing.T) {
	tests := []struct {
		name  string
		this  *Term
		other *Term
		want  setRelation
	}{
		{"subset of wider positive", term("foo", "^1.5", true), term("foo", "^1.0", true), relSubset},
		{"equal positive", term("foo", "^1.0", true), term("foo", "^1.0", true), relSubset},
		{"disjoint positive", term("foo", "^1.0", true), term("foo", "^2.0", true), relDisjoint},
		{"overlapping positive", term("foo", ">=1.5.0", true), term("foo", "^1.0", true), relOverlapping},

		{"negative excludes narrower positive", term("foo", "^1.0", false), term("foo", "^1.5", true), relDisjoint},
		{"negative overlaps wider positive", term("foo", "^1.5", false), term("foo", "^1.0", true), relOverlapping},

		{"positive inside negative complement", term("foo", "^2.0", true), term("foo", "^1.0", false), relSubset},
		{"positive conflicting with negative", term("foo", "^1.5", true), term("foo", "^1.0", false), relDisjoint},
		{"positive straddling negative", term("foo", ">=1.0.0", true), term("foo", "^1.0", false), relOverlapping},

		{"negative subset of negative", term("foo", "^1.0", false), term("foo", "^1.5", false), relSubset},
		{"negative overlapping negative", term("foo", "^1.5", false), term("foo", "^1.0", false), relOverlapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.this.relation(tt.other); got != tt.want {
				t.Errorf("relation(%s, %s) = %d, want %d", tt.this, tt.other, got, tt.want)
			}
		})
	}
}

func TestTermSatisfies(t *testing.T) {
	if !term("foo", "^1.5", true).Satisfies(term("foo", "^1.0", true)) {
		t.Error("foo ^1.5 should satisfy foo ^1.0")
	}
	if term("foo", "^1.0", true).Satisfies(term("foo", "^1.5", true)) {
		t.Error("foo ^1.0 should not satisfy foo ^1.5")
	}
	if term("foo", "^1.0", true).Satisfies(term("bar", "^1.0", true)) {
		t.Error("terms about different packages never satisfy each other")
	}
}

func TestTermIntersect(t *testing.T) {
	got := term("foo", ">=1.0.0 <2.0.0", true).intersect(term("foo", ">=1.5.0", true))
	if got == nil || !got.IsPositive() {
		t.Fatalf("intersect = %v, want positive term", got)
	}
	if got.Constraint().String() != ">=1.5.0,<2.0.0" {
		t.Errorf("intersect constraint = %s, want >=1.5.0,<2.0.0", got.Constraint())
	}

	// Positive minus negative keeps the allowed remainder.
	got = term("foo", "^1.0", true).intersect(term("foo", ">=1.5.0", false))
	if got == nil || !got.IsPositive() {
		t.Fatalf("intersect = %v, want positive term", got)
	}
	if got.Constraint().Allows(version(t, "1.7.0")) || !got.Constraint().Allows(version(t, "1.2.0")) {
		t.Errorf("difference constraint = %s, want >=1.0.0,<1.5.0", got.Constraint())
	}

	// Disjoint positives carry no information.
	if got := term("foo", "^1.0", true).intersect(term("foo", "^2.0", true)); got != nil {
		t.Errorf("disjoint intersect = %v, want nil", got)
	}

	// Two negatives union their exclusions.
	got = term("foo", "^1.0", false).intersect(term("foo", "^2.0", false))
	if got == nil || got.IsPositive() {
		t.Fatalf("intersect = %v, want negative term", got)
	}
	if !got.Constraint().Allows(version(t, "1.5.0")) || !got.Constraint().Allows(version(t, "2.5.0")) {
		t.Errorf("union constraint = %s, want to span ^1.0 and ^2.0", got.Constraint())
	}
}

func TestTermInverse(t *testing.T) {
	pos := term("foo", "^1.0", true)
	neg := pos.Inverse()
	if neg.IsPositive() {
		t.Error("inverse of a positive term must be negative")
	}
	if neg.Constraint().String() != pos.Constraint().String() {
		t.Error("inverse must keep the constraint")
	}
	if neg.String() != "not foo (^1.0)" {
		t.Errorf("String() = %q", neg.String())
	}
}
