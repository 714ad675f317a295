// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package constraints implements a closed algebra of set-like constraints
// over opaque, comparable tag values (platform names, OS names, extra
// names). Every constraint denotes a subset of the tag universe; the
// algebra is closed under intersection, union and difference.
//
// Internally every value normalizes to one of six shapes: the full
// universe, the empty set, a single equality atom, a single inequality
// atom, a conjunction of inequality atoms (a cofinite set), or a
// disjunction of equality atoms (a finite set). This keeps every operation
// a finite/cofinite set computation.
package constraints

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Op is the comparison operator carried by an Atom.
type Op string

const (
	// OpEqual admits exactly the atom's value.
	OpEqual Op = "=="
	// OpNotEqual admits every value except the atom's value.
	OpNotEqual Op = "!="
)

var (
	any   = anyConstraint{}
	empty = emptyConstraint{}
)

// A Constraint is a set of tag values. As with the solver's version
// constraints, the algebra is complete: implementations live in this
// package only.
type Constraint interface {
	fmt.Stringer

	// Allows reports whether the single value admitted by other (which
	// must be an equality atom) is admitted by this constraint.
	Allows(other Constraint) bool
	// AllowsAny reports whether the two constraints share any value.
	AllowsAny(other Constraint) bool
	// AllowsAll reports whether other is a subset of this constraint.
	AllowsAll(other Constraint) bool

	Intersect(other Constraint) Constraint
	Union(other Constraint) Constraint
	// Difference returns this constraint narrowed to exclude everything
	// other allows.
	Difference(other Constraint) Constraint

	IsAny() bool
	IsEmpty() bool

	_private()
}

func (anyConstraint) _private()   {}
func (emptyConstraint) _private() {}
func (Atom) _private()            {}
func (multiConstraint) _private() {}
func (unionConstraint) _private() {}

// Any returns the constraint admitting every tag value.
func Any() Constraint { return any }

// Empty returns the constraint admitting no tag value.
func Empty() Constraint { return empty }

// NewAtom returns the single-comparison constraint "op value".
func NewAtom(value string, op Op) Atom {
	return Atom{value: value, op: op}
}

// NewMulti combines inequality atoms into a conjunction. Combining a
// positive (equality) atom is an error: a conjunction containing "== v"
// collapses to "== v" or to the empty set and must be built via Intersect
// instead.
func NewMulti(atoms ...Atom) (Constraint, error) {
	for _, a := range atoms {
		if a.op != OpNotEqual {
			return nil, errors.Errorf("cannot combine positive atom %q into a multi-constraint", a)
		}
	}
	return newExclusion(atomValues(atoms)), nil
}

// NewUnion returns the disjunction of the given constraints.
func NewUnion(cs ...Constraint) Constraint {
	u := Constraint(empty)
	for _, c := range cs {
		u = u.Union(c)
	}
	return u
}

// anyConstraint is the unbounded constraint. It mirrors the version
// algebra's any type.
type anyConstraint struct{}

func (anyConstraint) String() string { return "*" }
func (anyConstraint) Allows(Constraint) bool { return true }
func (anyConstraint) AllowsAny(other Constraint) bool { return !other.IsEmpty() }
func (anyConstraint) AllowsAll(Constraint) bool { return true }
func (anyConstraint) Intersect(other Constraint) Constraint { return other }
func (anyConstraint) Union(Constraint) Constraint { return any }
func (anyConstraint) IsAny() bool { return true }
func (anyConstraint) IsEmpty() bool { return false }

func (anyConstraint) Difference(other Constraint) Constraint {
	switch tc := other.(type) {
	case anyConstraint:
		return empty
	case emptyConstraint:
		return any
	case Atom:
		return tc.invert()
	case multiConstraint:
		return newInclusion(tc.excluded)
	case unionConstraint:
		return newExclusion(tc.included)
	}
	return empty
}

// emptyConstraint is the empty set. It is absorbing under Intersect and
// Difference.
type emptyConstraint struct{}

func (emptyConstraint) String() string { return "<empty>" }
func (emptyConstraint) Allows(Constraint) bool { return false }
func (emptyConstraint) AllowsAny(Constraint) bool { return false }
func (emptyConstraint) AllowsAll(other Constraint) bool { return other.IsEmpty() }
func (emptyConstraint) Intersect(Constraint) Constraint { return empty }
func (emptyConstraint) Union(other Constraint) Constraint { return other }
func (emptyConstraint) Difference(Constraint) Constraint { return empty }
func (emptyConstraint) IsAny() bool { return false }
func (emptyConstraint) IsEmpty() bool { return true }

// Atom is a single comparison against one tag value.
type Atom struct {
	value string
	op    Op
}

// Value returns the tag value the atom compares against.
func (a Atom) Value() string { return a.value }

// Op returns the atom's comparison operator.
func (a Atom) Op() Op { return a.op }

func (a Atom) String() string {
	if a.op == OpNotEqual {
		return "!=" + a.value
	}
	return a.value
}

func (a Atom) invert() Atom {
	if a.op == OpEqual {
		return Atom{value: a.value, op: OpNotEqual}
	}
	return Atom{value: a.value, op: OpEqual}
}

func (a Atom) admits(value string) bool {
	if a.op == OpEqual {
		return value == a.value
	}
	return value != a.value
}

func (a Atom) Allows(other Constraint) bool {
	o, ok := other.(Atom)
	if !ok || o.op != OpEqual {
		return a.AllowsAll(other)
	}
	return a.admits(o.value)
}

func (a Atom) AllowsAny(other Constraint) bool {
	return !a.Intersect(other).IsEmpty()
}

func (a Atom) AllowsAll(other Constraint) bool {
	return normalize(a).Intersect(normalize(other)).equal(normalize(other))
}

func (a Atom) Intersect(other Constraint) Constraint {
	return normalize(a).Intersect(normalize(other)).constraint()
}

func (a Atom) Union(other Constraint) Constraint {
	return normalize(a).union(normalize(other)).constraint()
}

func (a Atom) Difference(other Constraint) Constraint {
	return a.Intersect(any.Difference(other))
}

func (a Atom) IsAny() bool { return false }
func (a Atom) IsEmpty() bool { return false }

func (a Atom) equal(s tagSet) bool { return normalize(a).equal(s) }

// multiConstraint is a conjunction of inequality atoms: the universe minus
// a finite exclusion set. A multi-constraint never contains a positive
// atom.
type multiConstraint struct {
	excluded []string // sorted, unique, len >= 2
}

func (m multiConstraint) String() string {
	parts := make([]string, len(m.excluded))
	for i, v := range m.excluded {
		parts[i] = "!=" + v
	}
	return strings.Join(parts, ", ")
}

func (m multiConstraint) Allows(other Constraint) bool {
	o, ok := other.(Atom)
	if !ok || o.op != OpEqual {
		return m.AllowsAll(other)
	}
	return !contains(m.excluded, o.value)
}

func (m multiConstraint) AllowsAny(other Constraint) bool {
	return !m.Intersect(other).IsEmpty()
}

func (m multiConstraint) AllowsAll(other Constraint) bool {
	return normalize(m).Intersect(normalize(other)).equal(normalize(other))
}

func (m multiConstraint) Intersect(other Constraint) Constraint {
	return normalize(m).Intersect(normalize(other)).constraint()
}

func (m multiConstraint) Union(other Constraint) Constraint {
	return normalize(m).union(normalize(other)).constraint()
}

func (m multiConstraint) Difference(other Constraint) Constraint {
	return m.Intersect(any.Difference(other))
}

func (m multiConstraint) IsAny() bool { return false }
func (m multiConstraint) IsEmpty() bool { return false }

// unionConstraint is a disjunction of equality atoms: a finite inclusion
// set. Equality is order-independent; members are kept sorted.
type unionConstraint struct {
	included []string // sorted, unique, len >= 2
}

func (u unionConstraint) String() string {
	return strings.Join(u.included, " || ")
}

func (u unionConstraint) Allows(other Constraint) bool {
	o, ok := other.(Atom)
	if !ok || o.op != OpEqual {
		return u.AllowsAll(other)
	}
	return contains(u.included, o.value)
}

func (u unionConstraint) AllowsAny(other Constraint) bool {
	return !u.Intersect(other).IsEmpty()
}

func (u unionConstraint) AllowsAll(other Constraint) bool {
	return normalize(u).Intersect(normalize(other)).equal(normalize(other))
}

func (u unionConstraint) Intersect(other Constraint) Constraint {
	return normalize(u).Intersect(normalize(other)).constraint()
}

func (u unionConstraint) Union(other Constraint) Constraint {
	return normalize(u).union(normalize(other)).constraint()
}

func (u unionConstraint) Difference(other Constraint) Constraint {
	return u.Intersect(any.Difference(other))
}

func (u unionConstraint) IsAny() bool { return false }
func (u unionConstraint) IsEmpty() bool { return false }

// tagSet is the canonical finite/cofinite representation every constraint
// reduces to for computation.
type tagSet struct {
	cofinite bool
	values   []string // sorted, unique
}

func normalize(c Constraint) tagSet {
	switch tc := c.(type) {
	case anyConstraint:
		return tagSet{cofinite: true}
	case emptyConstraint:
		return tagSet{}
	case Atom:
		if tc.op == OpEqual {
			return tagSet{values: []string{tc.value}}
		}
		return tagSet{cofinite: true, values: []string{tc.value}}
	case multiConstraint:
		return tagSet{cofinite: true, values: tc.excluded}
	case unionConstraint:
		return tagSet{values: tc.included}
	}
	panic(fmt.Sprintf("canary - unknown constraint type %T", c))
}

func (s tagSet) constraint() Constraint {
	if s.cofinite {
		return newExclusion(s.values)
	}
	return newInclusion(s.values)
}

func (s tagSet) equal(o tagSet) bool {
	if s.cofinite != o.cofinite || len(s.values) != len(o.values) {
		return false
	}
	for i := range s.values {
		if s.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

func (s tagSet) Intersect(o tagSet) tagSet {
	switch {
	case s.cofinite && o.cofinite:
		return tagSet{cofinite: true, values: mergeSorted(s.values, o.values)}
	case s.cofinite:
		return tagSet{values: subtractSorted(o.values, s.values)}
	case o.cofinite:
		return tagSet{values: subtractSorted(s.values, o.values)}
	default:
		return tagSet{values: intersectSorted(s.values, o.values)}
	}
}

func (s tagSet) union(o tagSet) tagSet {
	switch {
	case s.cofinite && o.cofinite:
		return tagSet{cofinite: true, values: intersectSorted(s.values, o.values)}
	case s.cofinite:
		return tagSet{cofinite: true, values: subtractSorted(s.values, o.values)}
	case o.cofinite:
		return tagSet{cofinite: true, values: subtractSorted(o.values, s.values)}
	default:
		return tagSet{values: mergeSorted(s.values, o.values)}
	}
}

func newInclusion(values []string) Constraint {
	switch len(values) {
	case 0:
		return empty
	case 1:
		return Atom{value: values[0], op: OpEqual}
	default:
		return unionConstraint{included: values}
	}
}

func newExclusion(values []string) Constraint {
	switch len(values) {
	case 0:
		return any
	case 1:
		return Atom{value: values[0], op: OpNotEqual}
	default:
		return multiConstraint{excluded: values}
	}
}

func atomValues(atoms []Atom) []string {
	values := make([]string, 0, len(atoms))
	for _, a := range atoms {
		values = append(values, a.value)
	}
	return dedupeSorted(values)
}

func dedupeSorted(values []string) []string {
	sort.Strings(values)
	out := values[:0]
	for i, v := range values {
		if i == 0 || v != values[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func contains(sorted []string, v string) bool {
	i := sort.SearchStrings(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return dedupeSorted(out)
}

func intersectSorted(a, b []string) []string {
	var out []string
	for _, v := range a {
		if contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func subtractSorted(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

// Members reports the canonical finite/cofinite decomposition of c: the
// listed tag values, and whether they are the excluded complement
// (cofinite) rather than the included members.
func Members(c Constraint) (values []string, cofinite bool) {
	s := normalize(c)
	return s.values, s.cofinite
}

// Parse interprets a constraint expression. "*" and the empty string mean
// any; "||" separates union branches; "," separates conjoined atoms within
// a branch; atoms take an optional "==" or "!=" prefix, defaulting to
// equality.
func Parse(body string) (Constraint, error) {
	body = strings.TrimSpace(body)
	if body == "" || body == "*" {
		return any, nil
	}

	result := Constraint(empty)
	for _, branch := range strings.Split(body, "||") {
		c := Constraint(any)
		for _, part := range strings.Split(branch, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				return nil, errors.Errorf("malformed constraint expression %q", body)
			}
			var a Atom
			switch {
			case strings.HasPrefix(part, "!="):
				a = NewAtom(strings.TrimSpace(part[2:]), OpNotEqual)
			case strings.HasPrefix(part, "=="):
				a = NewAtom(strings.TrimSpace(part[2:]), OpEqual)
			default:
				a = NewAtom(part, OpEqual)
			}
			if a.Value() == "" {
				return nil, errors.Errorf("malformed constraint expression %q", body)
			}
			c = c.Intersect(a)
		}
		result = result.Union(c)
	}

	return result, nil
}
