// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package versions implements a closed set algebra over semantic versions:
// contiguous ranges, finite unions of ranges, the full set and the empty
// set, with intersection, union and difference. The solver's unit
// propagation relies on Intersect being commutative and associative and on
// AllowsAll being a true subset test.
package versions

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// A Set is a set of semantic versions.
type Set interface {
	fmt.Stringer

	// Allows reports whether the set admits the given version.
	Allows(v *semver.Version) bool
	// AllowsAll reports whether other is a subset of this set.
	AllowsAll(other Set) bool
	// AllowsAny reports whether the two sets share any version.
	AllowsAny(other Set) bool

	Intersect(other Set) Set
	Union(other Set) Set
	// Difference returns this set narrowed to exclude everything other
	// allows.
	Difference(other Set) Set

	IsEmpty() bool
	IsAny() bool

	// ranges returns the set as an ordered slice of disjoint ranges. The
	// algebra is complete; implementations live in this package only.
	ranges() []Range
}

var none = emptySet{}

// Empty returns the set admitting no versions.
func Empty() Set { return none }

// Any returns the set admitting every version.
func Any() Set { return Range{} }

// Exact returns the set admitting only v.
func Exact(v *semver.Version) Range {
	return Range{min: v, max: v, includeMin: true, includeMax: true}
}

// NewRange builds a contiguous range between the given bounds. A nil bound
// is unbounded on that side.
func NewRange(min, max *semver.Version, includeMin, includeMax bool) Range {
	return Range{min: min, max: max, includeMin: includeMin, includeMax: includeMax}
}

type emptySet struct{}

func (emptySet) String() string { return "<empty>" }
func (emptySet) Allows(*semver.Version) bool { return false }
func (emptySet) AllowsAll(other Set) bool { return other.IsEmpty() }
func (emptySet) AllowsAny(Set) bool { return false }
func (emptySet) Intersect(Set) Set { return none }
func (emptySet) Union(other Set) Set { return other }
func (emptySet) Difference(Set) Set { return none }
func (emptySet) IsEmpty() bool { return true }
func (emptySet) IsAny() bool { return false }
func (emptySet) ranges() []Range { return nil }

// Range is a contiguous, possibly unbounded span of versions. The zero
// value is the full set.
type Range struct {
	min, max               *semver.Version
	includeMin, includeMax bool
}

// Min returns the lower bound, or nil if unbounded below.
func (r Range) Min() *semver.Version { return r.min }

// Max returns the upper bound, or nil if unbounded above.
func (r Range) Max() *semver.Version { return r.max }

// IsExact reports whether the range admits exactly one version.
func (r Range) IsExact() bool {
	return r.min != nil && r.max != nil && r.includeMin && r.includeMax &&
		r.min.Equal(r.max)
}

func (r Range) String() string {
	if r.IsAny() {
		return "*"
	}
	if r.IsExact() {
		return r.min.String()
	}

	var s string
	if r.min != nil {
		op := ">"
		if r.includeMin {
			op = ">="
		}
		s = op + r.min.String()
	}
	if r.max != nil {
		op := "<"
		if r.includeMax {
			op = "<="
		}
		if s != "" {
			s += ","
		}
		s += op + r.max.String()
	}
	return s
}

func (r Range) Allows(v *semver.Version) bool {
	if r.min != nil {
		cmp := v.Compare(r.min)
		if cmp < 0 || (cmp == 0 && !r.includeMin) {
			return false
		}
	}
	if r.max != nil {
		cmp := v.Compare(r.max)
		if cmp > 0 || (cmp == 0 && !r.includeMax) {
			return false
		}
	}
	return true
}

func (r Range) IsEmpty() bool {
	if r.min == nil || r.max == nil {
		return false
	}
	cmp := r.min.Compare(r.max)
	if cmp > 0 {
		return true
	}
	return cmp == 0 && !(r.includeMin && r.includeMax)
}

func (r Range) IsAny() bool { return r.min == nil && r.max == nil }

func (r Range) ranges() []Range { return []Range{r} }

// allowsLower reports whether r's lower bound admits everything o's does.
func (r Range) allowsLower(o Range) bool {
	if r.min == nil {
		return true
	}
	if o.min == nil {
		return false
	}
	cmp := r.min.Compare(o.min)
	if cmp != 0 {
		return cmp < 0
	}
	return r.includeMin || !o.includeMin
}

func (r Range) allowsHigher(o Range) bool {
	if r.max == nil {
		return true
	}
	if o.max == nil {
		return false
	}
	cmp := r.max.Compare(o.max)
	if cmp != 0 {
		return cmp > 0
	}
	return r.includeMax || !o.includeMax
}

// strictlyLower reports whether every version in r is below every version
// in o.
func (r Range) strictlyLower(o Range) bool {
	if r.max == nil || o.min == nil {
		return false
	}
	cmp := r.max.Compare(o.min)
	if cmp != 0 {
		return cmp < 0
	}
	return !(r.includeMax && o.includeMin)
}

// adjacentTo reports whether r's upper bound meets o's lower bound with no
// gap and no overlap.
func (r Range) adjacentTo(o Range) bool {
	if r.max == nil || o.min == nil || !r.max.Equal(o.min) {
		return false
	}
	return r.includeMax != o.includeMin
}

func (r Range) AllowsAll(other Set) bool {
	for _, o := range other.ranges() {
		if !(r.allowsLower(o) && r.allowsHigher(o)) {
			return false
		}
	}
	return true
}

func (r Range) AllowsAny(other Set) bool {
	for _, o := range other.ranges() {
		if !r.intersectRange(o).IsEmpty() {
			return true
		}
	}
	return false
}

func (r Range) intersectRange(o Range) Range {
	out := r
	if r.allowsLower(o) {
		out.min, out.includeMin = o.min, o.includeMin
	}
	if r.allowsHigher(o) {
		out.max, out.includeMax = o.max, o.includeMax
	}
	return out
}

func (r Range) Intersect(other Set) Set {
	var out []Range
	for _, o := range other.ranges() {
		i := r.intersectRange(o)
		if !i.IsEmpty() {
			out = append(out, i)
		}
	}
	return fromRanges(out)
}

func (r Range) Union(other Set) Set {
	return unionOf(append([]Range{r}, other.ranges()...))
}

func (r Range) Difference(other Set) Set {
	remaining := []Range{r}
	for _, o := range other.ranges() {
		var next []Range
		for _, cur := range remaining {
			next = append(next, cur.subtractRange(o)...)
		}
		remaining = next
	}
	return fromRanges(remaining)
}

// subtractRange removes o from r, yielding zero, one or two ranges.
func (r Range) subtractRange(o Range) []Range {
	if r.intersectRange(o).IsEmpty() {
		return []Range{r}
	}

	var out []Range
	if !o.allowsLower(r) {
		// A piece of r is below o.
		out = append(out, Range{
			min: r.min, includeMin: r.includeMin,
			max: o.min, includeMax: !o.includeMin,
		})
	}
	if !o.allowsHigher(r) {
		// A piece of r is above o.
		out = append(out, Range{
			min: o.max, includeMin: !o.includeMax,
			max: r.max, includeMax: r.includeMax,
		})
	}

	kept := out[:0]
	for _, piece := range out {
		if !piece.IsEmpty() {
			kept = append(kept, piece)
		}
	}
	return kept
}

// Union is an ordered list of two or more disjoint, non-adjacent ranges.
type Union struct {
	spans []Range
}

func (u Union) String() string {
	s := ""
	for i, r := range u.spans {
		if i > 0 {
			s += " || "
		}
		s += r.String()
	}
	return s
}

func (u Union) Allows(v *semver.Version) bool {
	for _, r := range u.spans {
		if r.Allows(v) {
			return true
		}
	}
	return false
}

func (u Union) AllowsAll(other Set) bool {
	// Both slices are ordered, so a single sweep suffices.
	ours := u.spans
	for _, o := range other.ranges() {
		for len(ours) > 0 && ours[0].strictlyLower(o) {
			ours = ours[1:]
		}
		if len(ours) == 0 || !(ours[0].allowsLower(o) && ours[0].allowsHigher(o)) {
			return false
		}
	}
	return true
}

func (u Union) AllowsAny(other Set) bool {
	for _, r := range u.spans {
		if r.AllowsAny(other) {
			return true
		}
	}
	return false
}

func (u Union) Intersect(other Set) Set {
	var out []Range
	for _, r := range u.spans {
		for _, o := range other.ranges() {
			i := r.intersectRange(o)
			if !i.IsEmpty() {
				out = append(out, i)
			}
		}
	}
	return unionOf(out)
}

func (u Union) Union(other Set) Set {
	return unionOf(append(append([]Range{}, u.spans...), other.ranges()...))
}

func (u Union) Difference(other Set) Set {
	var out []Range
	for _, r := range u.spans {
		out = append(out, r.Difference(other).ranges()...)
	}
	return unionOf(out)
}

func (u Union) IsEmpty() bool { return false }
func (u Union) IsAny() bool { return false }

func (u Union) ranges() []Range { return u.spans }

// unionOf normalizes a slice of ranges into the canonical Set: sorted,
// overlapping and adjacent ranges merged.
func unionOf(spans []Range) Set {
	var live []Range
	for _, r := range spans {
		if r.IsAny() {
			return Range{}
		}
		if !r.IsEmpty() {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return none
	}

	sortRanges(live)

	merged := []Range{live[0]}
	for _, r := range live[1:] {
		last := &merged[len(merged)-1]
		if last.strictlyLower(r) && !last.adjacentTo(r) {
			merged = append(merged, r)
			continue
		}
		// Overlapping or adjacent: extend the last range upward.
		if !last.allowsHigher(r) {
			last.max, last.includeMax = r.max, r.includeMax
		}
	}

	return fromRanges(merged)
}

func fromRanges(spans []Range) Set {
	switch len(spans) {
	case 0:
		return none
	case 1:
		return spans[0]
	default:
		return Union{spans: spans}
	}
}

func sortRanges(spans []Range) {
	// Insertion sort on the lower bound; candidate lists are short.
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].allowsLower(spans[j-1]); j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}

// HasUpperBound reports whether the set excludes some upper region of the
// version space. Used by the solver's decision ordering: constraints with
// upper bounds are the likelier conflict sources.
func HasUpperBound(s Set) bool {
	rs := s.ranges()
	if len(rs) == 0 {
		return true
	}
	return rs[len(rs)-1].max != nil
}

// HasPrereleaseBound reports whether any bound of the set mentions a
// prerelease version. A dependency whose constraint cites a prerelease
// implicitly opts into prerelease candidates.
func HasPrereleaseBound(s Set) bool {
	for _, r := range s.ranges() {
		if r.min != nil && r.min.Prerelease() != "" {
			return true
		}
		if r.max != nil && r.max.Prerelease() != "" {
			return true
		}
	}
	return false
}
