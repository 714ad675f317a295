// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"bytes"
	"fmt"
	"strings"
)

// Cause records why an incompatibility exists. It is a closed union; the
// failure writer switches over it to pick narrative phrasing.
type Cause interface {
	_cause()
}

// RootCause marks the seed incompatibility {not root}.
type RootCause struct{}

// NoVersionsCause marks "no candidate matched the constraint".
type NoVersionsCause struct{}

// DependencyCause marks "package A at these versions depends on B".
type DependencyCause struct{}

// PythonCause marks "the package requires a python range the project
// does not span".
type PythonCause struct {
	PythonVersion     string
	RootPythonVersion string
}

// ConflictCause marks a derived incompatibility and remembers the two it
// was derived from, forming the derivation graph walked by the failure
// writer.
type ConflictCause struct {
	Conflict *Incompatibility
	Other    *Incompatibility
}

func (RootCause) _cause()       {}
func (NoVersionsCause) _cause() {}
func (DependencyCause) _cause() {}
func (PythonCause) _cause()     {}
func (ConflictCause) _cause()   {}

// An Incompatibility is a set of terms that cannot all be true at once.
// Incompatibilities are compared by pointer identity: the solver tracks
// them in maps and derivation graphs, so a given fact is one object.
type Incompatibility struct {
	terms []*Term
	cause Cause
}

// NewIncompatibility normalizes terms before storing them: positive root
// terms are dropped from conflicts (the root is always selected), and
// multiple terms about one package are intersected into one.
func NewIncompatibility(terms []*Term, cause Cause) *Incompatibility {
	if len(terms) != 1 {
		if _, isConflict := cause.(ConflictCause); isConflict {
			kept := terms[:0:0]
			for _, t := range terms {
				if !t.IsPositive() || !t.Dependency().IsRoot() {
					kept = append(kept, t)
				}
			}
			if len(kept) > 0 {
				terms = kept
			}
		}
	}

	// Two-term incompatibilities about two different packages (the common
	// dependency shape) need no coalescing.
	if len(terms) != 1 &&
		(len(terms) != 2 ||
			terms[0].Dependency().CompleteName() == terms[1].Dependency().CompleteName()) {
		terms = coalesce(terms)
	}

	return &Incompatibility{terms: terms, cause: cause}
}

// coalesce intersects terms about the same package into a single term,
// preserving first-seen package order.
func coalesce(terms []*Term) []*Term {
	var order []string
	byName := map[string]map[string]*Term{}
	for _, t := range terms {
		name := t.Dependency().CompleteName()
		byRef, ok := byName[name]
		if !ok {
			byRef = map[string]*Term{}
			byName[name] = byRef
			order = append(order, name)
		}
		if prev, ok := byRef[name]; ok {
			merged := prev.intersect(t)
			if merged == nil {
				panic(fmt.Sprintf("package %q is listed as a dependency of itself", name))
			}
			byRef[name] = merged
		} else {
			byRef[name] = t
		}
	}

	var out []*Term
	for _, name := range order {
		byRef := byName[name]
		var positives, all []*Term
		for _, t := range byRef {
			all = append(all, t)
			if t.IsPositive() {
				positives = append(positives, t)
			}
		}
		if len(positives) > 0 {
			out = append(out, positives...)
			continue
		}
		out = append(out, all...)
	}
	return out
}

func (inc *Incompatibility) Terms() []*Term { return inc.terms }
func (inc *Incompatibility) Cause() Cause { return inc.cause }

// IsFailure reports whether this incompatibility proves the whole solve
// impossible: no terms, or a single term about the root.
func (inc *Incompatibility) IsFailure() bool {
	return len(inc.terms) == 0 ||
		(len(inc.terms) == 1 && inc.terms[0].Dependency().IsRoot())
}

// externalIncompatibilities walks the derivation graph and yields the
// leaves, i.e. every non-derived incompatibility this one was built from.
func (inc *Incompatibility) externalIncompatibilities(visit func(*Incompatibility)) {
	if cc, ok := inc.cause.(ConflictCause); ok {
		cc.Conflict.externalIncompatibilities(visit)
		cc.Other.externalIncompatibilities(visit)
		return
	}
	visit(inc)
}

func (inc *Incompatibility) String() string {
	switch cause := inc.cause.(type) {
	case DependencyCause:
		depender, dependee := inc.terms[0], inc.terms[1]
		return fmt.Sprintf("%s depends on %s",
			terse(depender, true), terse(dependee, false))

	case PythonCause:
		return fmt.Sprintf("%s requires Python %s",
			terse(inc.terms[0], true), cause.PythonVersion)

	case NoVersionsCause:
		return fmt.Sprintf("no versions of %s match %s",
			inc.terms[0].Dependency().Name(), inc.terms[0].Constraint())

	case RootCause:
		return fmt.Sprintf("%s is %s",
			inc.terms[0].Dependency().Name(), inc.terms[0].Constraint())
	}

	if inc.IsFailure() {
		return "version solving failed"
	}

	if len(inc.terms) == 1 {
		term := inc.terms[0]
		verb := "required"
		if term.IsPositive() {
			verb = "forbidden"
		}
		return fmt.Sprintf("%s is %s", term.Dependency().Name(), verb)
	}

	if len(inc.terms) == 2 {
		t1, t2 := inc.terms[0], inc.terms[1]
		if t1.IsPositive() == t2.IsPositive() {
			if !t1.IsPositive() {
				return fmt.Sprintf("either %s or %s", terse(t1, false), terse(t2, false))
			}
			p1 := terse(t1, false)
			if t1.Constraint().IsAny() {
				p1 = t1.Dependency().Name()
			}
			p2 := terse(t2, false)
			if t2.Constraint().IsAny() {
				p2 = t2.Dependency().Name()
			}
			return fmt.Sprintf("%s is incompatible with %s", p1, p2)
		}
	}

	var positive, negative []string
	for _, t := range inc.terms {
		if t.IsPositive() {
			positive = append(positive, terse(t, false))
		} else {
			negative = append(negative, terse(t, false))
		}
	}

	switch {
	case len(positive) > 0 && len(negative) > 0:
		if len(positive) != 1 {
			return fmt.Sprintf("if %s then %s",
				strings.Join(positive, " and "), strings.Join(negative, " or "))
		}
		var positiveTerm *Term
		for _, t := range inc.terms {
			if t.IsPositive() {
				positiveTerm = t
				break
			}
		}
		return fmt.Sprintf("%s requires %s",
			terse(positiveTerm, true), strings.Join(negative, " or "))
	case len(positive) > 0:
		return fmt.Sprintf("one of %s must be false", strings.Join(positive, " or "))
	default:
		return fmt.Sprintf("one of %s must be true", strings.Join(negative, " or "))
	}
}

// andToString renders the combination of two incompatibilities as one
// sentence where a natural phrasing exists, falling back to "X and Y".
func (inc *Incompatibility) andToString(other *Incompatibility, thisLine, otherLine int) string {
	if s, ok := inc.tryRequiresBoth(other, thisLine, otherLine); ok {
		return s
	}
	if s, ok := inc.tryRequiresThrough(other, thisLine, otherLine); ok {
		return s
	}
	if s, ok := inc.tryRequiresForbidden(other, thisLine, otherLine); ok {
		return s
	}

	var buf bytes.Buffer
	buf.WriteString(inc.String())
	if thisLine != 0 {
		fmt.Fprintf(&buf, " %d", thisLine)
	}
	fmt.Fprintf(&buf, " and %s", other)
	if otherLine != 0 {
		fmt.Fprintf(&buf, " %d", otherLine)
	}
	return buf.String()
}

// tryRequiresBoth phrases two incompatibilities sharing one positive term
// as "A depends on both B and C".
func (inc *Incompatibility) tryRequiresBoth(other *Incompatibility, thisLine, otherLine int) (string, bool) {
	if len(inc.terms) == 1 || len(other.terms) == 1 {
		return "", false
	}

	thisPositive := inc.singleTermWhere(func(t *Term) bool { return t.IsPositive() })
	otherPositive := other.singleTermWhere(func(t *Term) bool { return t.IsPositive() })
	if thisPositive == nil || otherPositive == nil {
		return "", false
	}
	if !thisPositive.Dependency().IsSamePackageAs(otherPositive.Dependency()) ||
		thisPositive.Dependency().CompleteName() != otherPositive.Dependency().CompleteName() {
		return "", false
	}

	thisNegatives := joinTerse(inc.terms, false)
	otherNegatives := joinTerse(other.terms, false)

	var buf bytes.Buffer
	buf.WriteString(terse(thisPositive, true))
	buf.WriteByte(' ')
	_, thisDep := inc.cause.(DependencyCause)
	_, otherDep := other.cause.(DependencyCause)
	if thisDep && otherDep {
		buf.WriteString("depends on")
	} else {
		buf.WriteString("requires")
	}
	fmt.Fprintf(&buf, " both %s", thisNegatives)
	if thisLine != 0 {
		fmt.Fprintf(&buf, " (%d)", thisLine)
	}
	fmt.Fprintf(&buf, " and %s", otherNegatives)
	if otherLine != 0 {
		fmt.Fprintf(&buf, " (%d)", otherLine)
	}
	return buf.String(), true
}

// tryRequiresThrough phrases a chain "A depends on B (1) which depends on
// C (2)" when one incompatibility's negative term feeds the other's
// positive term.
func (inc *Incompatibility) tryRequiresThrough(other *Incompatibility, thisLine, otherLine int) (string, bool) {
	if len(inc.terms) == 1 || len(other.terms) == 1 {
		return "", false
	}

	thisNegative := inc.singleTermWhere(func(t *Term) bool { return !t.IsPositive() })
	otherNegative := other.singleTermWhere(func(t *Term) bool { return !t.IsPositive() })
	if thisNegative == nil && otherNegative == nil {
		return "", false
	}

	thisPositive := inc.singleTermWhere(func(t *Term) bool { return t.IsPositive() })
	otherPositive := other.singleTermWhere(func(t *Term) bool { return t.IsPositive() })

	var prior, latter *Incompatibility
	var priorNegative *Term
	var priorLine, latterLine int
	switch {
	case thisNegative != nil && otherPositive != nil &&
		thisNegative.Dependency().Name() == otherPositive.Dependency().Name() &&
		thisNegative.Inverse().Satisfies(otherPositive):
		prior, priorNegative, priorLine = inc, thisNegative, thisLine
		latter, latterLine = other, otherLine
	case otherNegative != nil && thisPositive != nil &&
		otherNegative.Dependency().Name() == thisPositive.Dependency().Name() &&
		otherNegative.Inverse().Satisfies(thisPositive):
		prior, priorNegative, priorLine = other, otherNegative, otherLine
		latter, latterLine = inc, thisLine
	default:
		return "", false
	}

	var priorPositives []*Term
	for _, t := range prior.terms {
		if t.IsPositive() {
			priorPositives = append(priorPositives, t)
		}
	}

	var buf bytes.Buffer
	if len(priorPositives) > 1 {
		var parts []string
		for _, t := range priorPositives {
			parts = append(parts, terse(t, false))
		}
		fmt.Fprintf(&buf, "if %s then ", strings.Join(parts, " or "))
	} else {
		verb := "requires"
		if _, ok := prior.cause.(DependencyCause); ok {
			verb = "depends on"
		}
		fmt.Fprintf(&buf, "%s %s ", terse(priorPositives[0], true), verb)
	}

	buf.WriteString(terse(priorNegative, false))
	if priorLine != 0 {
		fmt.Fprintf(&buf, " (%d)", priorLine)
	}

	buf.WriteString(" which ")
	if _, ok := latter.cause.(DependencyCause); ok {
		buf.WriteString("depends on ")
	} else {
		buf.WriteString("requires ")
	}
	buf.WriteString(joinTerse(latter.terms, false))
	if latterLine != 0 {
		fmt.Fprintf(&buf, " (%d)", latterLine)
	}
	return buf.String(), true
}

// tryRequiresForbidden phrases "A depends on B which is forbidden" when
// one side is a single-term incompatibility.
func (inc *Incompatibility) tryRequiresForbidden(other *Incompatibility, thisLine, otherLine int) (string, bool) {
	if len(inc.terms) != 1 && len(other.terms) != 1 {
		return "", false
	}

	prior, latter := inc, other
	priorLine, latterLine := thisLine, otherLine
	if len(inc.terms) == 1 {
		prior, latter = other, inc
		priorLine, latterLine = otherLine, thisLine
	}

	negative := prior.singleTermWhere(func(t *Term) bool { return !t.IsPositive() })
	if negative == nil {
		return "", false
	}
	if !negative.Inverse().Satisfies(latter.terms[0]) {
		return "", false
	}

	var positives []*Term
	for _, t := range prior.terms {
		if t.IsPositive() {
			positives = append(positives, t)
		}
	}

	var buf bytes.Buffer
	if len(positives) > 1 {
		var parts []string
		for _, t := range positives {
			parts = append(parts, terse(t, false))
		}
		fmt.Fprintf(&buf, "if %s then ", strings.Join(parts, " or "))
	} else {
		buf.WriteString(terse(positives[0], true))
		if _, ok := prior.cause.(DependencyCause); ok {
			buf.WriteString(" depends on ")
		} else {
			buf.WriteString(" requires ")
		}
	}

	buf.WriteString(terse(latter.terms[0], false))
	buf.WriteByte(' ')
	if priorLine != 0 {
		fmt.Fprintf(&buf, "(%d) ", priorLine)
	}

	switch cause := latter.cause.(type) {
	case PythonCause:
		fmt.Fprintf(&buf, "which requires Python %s", cause.PythonVersion)
	case NoVersionsCause:
		buf.WriteString("which doesn't match any versions")
	default:
		buf.WriteString("which is forbidden")
	}
	if latterLine != 0 {
		fmt.Fprintf(&buf, " (%d)", latterLine)
	}
	return buf.String(), true
}

// terse renders a term for error text. With allowEvery, an unconstrained
// term reads "every version of foo".
func terse(t *Term, allowEvery bool) string {
	if allowEvery && t.Constraint().IsAny() {
		return "every version of " + t.Dependency().CompleteName()
	}
	if t.Dependency().IsRoot() {
		return t.Dependency().Name()
	}
	if t.Dependency().IsDirectOrigin() {
		return t.Dependency().String()
	}
	return fmt.Sprintf("%s (%s)",
		t.Dependency().CompleteName(), t.Dependency().PrettyConstraint())
}

// joinTerse joins the non-positive terms with " or ".
func joinTerse(terms []*Term, positive bool) string {
	var parts []string
	for _, t := range terms {
		if t.IsPositive() == positive {
			parts = append(parts, terse(t, false))
		}
	}
	return strings.Join(parts, " or ")
}

func (inc *Incompatibility) singleTermWhere(pred func(*Term) bool) *Term {
	var found *Term
	for _, t := range inc.terms {
		if !pred(t) {
			continue
		}
		if found != nil {
			return nil
		}
		found = t
	}
	return found
}
