// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"fmt"

	"github.com/python-poetry/poetry-sub004/versions"
)

// setRelation classifies how the version set allowed by one term relates
// to another's.
type setRelation uint8

const (
	// relSubset: every version this term allows is allowed by the other.
	relSubset setRelation = iota
	// relDisjoint: no version is allowed by both.
	relDisjoint
	// relOverlapping: some versions are shared, some are not.
	relOverlapping
)

// A Term is a polarity-tagged statement about one package: positive means
// "the selected version must satisfy this dependency", negative means "it
// must not". Terms are the atoms of incompatibilities and assignments.
type Term struct {
	dep      Dependency
	positive bool
}

func newTerm(dep Dependency, positive bool) *Term {
	return &Term{dep: dep, positive: positive}
}

func (t *Term) Dependency() Dependency { return t.dep }
func (t *Term) Constraint() versions.Set { return t.dep.Constraint() }
func (t *Term) IsPositive() bool { return t.positive }

// Inverse returns the same constraint with flipped polarity.
func (t *Term) Inverse() *Term {
	return newTerm(t.dep, !t.positive)
}

func (t *Term) String() string {
	if t.positive {
		return t.dep.String()
	}
	return "not " + t.dep.String()
}

// Satisfies reports whether this term being true forces other to be true.
func (t *Term) Satisfies(other *Term) bool {
	return t.dep.CompleteName() == other.dep.CompleteName() &&
		t.relation(other) == relSubset
}

// relation computes the set relation between the versions this term allows
// and those the other allows. Both terms must be about the same package.
func (t *Term) relation(other *Term) setRelation {
	if t.dep.CompleteName() != other.dep.CompleteName() {
		panic(fmt.Sprintf("canary - term %s compared against %s", other, t.dep.CompleteName()))
	}

	oc := other.Constraint()
	switch {
	case other.positive && t.positive:
		if !t.compatibleDependency(other.dep) {
			return relDisjoint
		}
		// foo ^1.5.0 is a subset of foo ^1.0.0.
		if oc.AllowsAll(t.Constraint()) {
			return relSubset
		}
		// foo ^2.0.0 is disjoint with foo ^1.0.0.
		if !t.Constraint().AllowsAny(oc) {
			return relDisjoint
		}
		return relOverlapping

	case other.positive:
		if !t.compatibleDependency(other.dep) {
			return relOverlapping
		}
		// not foo ^1.0.0 is disjoint with foo ^1.5.0.
		if t.Constraint().AllowsAll(oc) {
			return relDisjoint
		}
		return relOverlapping

	case t.positive:
		if !t.compatibleDependency(other.dep) {
			return relSubset
		}
		// foo ^2.0.0 is a subset of not foo ^1.0.0.
		if !oc.AllowsAny(t.Constraint()) {
			return relSubset
		}
		// foo ^1.5.0 is disjoint with not foo ^1.0.0. Unequal transitive
		// markers must stay overlapping so markers get merged later.
		if oc.AllowsAll(t.Constraint()) &&
			t.dep.TransitiveMarker().String() == other.dep.TransitiveMarker().String() {
			return relDisjoint
		}
		return relOverlapping

	default:
		if !t.compatibleDependency(other.dep) {
			return relOverlapping
		}
		// not foo ^1.0.0 is a subset of not foo ^1.5.0.
		if t.Constraint().AllowsAll(oc) {
			return relSubset
		}
		return relOverlapping
	}
}

// intersect returns a term allowing exactly the versions allowed by both,
// or nil when the combination carries no information.
func (t *Term) intersect(other *Term) *Term {
	if t.dep.CompleteName() != other.dep.CompleteName() {
		panic(fmt.Sprintf("canary - term %s intersected with %s", other, t.dep.CompleteName()))
	}

	if t.compatibleDependency(other.dep) {
		switch {
		case t.positive != other.positive:
			// foo ^1.0.0 ∩ not foo ^1.5.0 → foo >=1.0.0 <1.5.0
			pos, neg := t, other
			if !t.positive {
				pos, neg = other, t
			}
			return t.nonEmptyTerm(pos.Constraint().Difference(neg.Constraint()), true, other)
		case t.positive:
			return t.nonEmptyTerm(t.Constraint().Intersect(other.Constraint()), true, other)
		default:
			return t.nonEmptyTerm(t.Constraint().Union(other.Constraint()), false, other)
		}
	}

	if t.positive != other.positive {
		if t.positive {
			return t
		}
		return other
	}
	return nil
}

// difference returns the versions allowed by this term and not the other.
func (t *Term) difference(other *Term) *Term {
	return t.intersect(other.Inverse())
}

// compatibleDependency reports whether the two dependencies can be merged
// into one term: they target the same package from the same source, or
// one is the root, or exactly one is a direct origin pinning of the same
// name (the direct origin wins later).
func (t *Term) compatibleDependency(other Dependency) bool {
	return t.dep.IsRoot() ||
		other.IsRoot() ||
		other.IsSamePackageAs(t.dep) ||
		(t.dep.CompleteName() == other.CompleteName() &&
			t.dep.IsDirectOrigin() != other.IsDirectOrigin())
}

func (t *Term) nonEmptyTerm(constraint versions.Set, positive bool, other *Term) *Term {
	if constraint.IsEmpty() {
		return nil
	}

	// Prefer the direct-origin dependency when building the merged term.
	dep := t.dep
	if !t.dep.IsDirectOrigin() && other.dep.IsDirectOrigin() {
		dep = other.dep
	}
	newDep := dep.WithConstraint(constraint)
	if positive && other.positive {
		newDep = newDep.WithTransitiveMarker(
			t.dep.TransitiveMarker().Union(other.dep.TransitiveMarker()))
	}
	return newTerm(newDep, positive)
}
