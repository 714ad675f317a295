// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import "fmt"

// termMap is a map from complete package name to term that remembers
// insertion order, so iteration is deterministic run to run.
type termMap struct {
	order []string
	terms map[string]*Term
}

func newTermMap() *termMap {
	return &termMap{terms: map[string]*Term{}}
}

func (m *termMap) get(name string) (*Term, bool) {
	t, ok := m.terms[name]
	return t, ok
}

func (m *termMap) set(name string, t *Term) {
	if _, ok := m.terms[name]; !ok {
		m.order = append(m.order, name)
	}
	m.terms[name] = t
}

func (m *termMap) delete(name string) {
	if _, ok := m.terms[name]; !ok {
		return
	}
	delete(m.terms, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *termMap) each(visit func(name string, t *Term)) {
	for _, name := range m.order {
		visit(name, m.terms[name])
	}
}

// PartialSolution is the solver's running ledger: every assignment made
// so far in order, plus two derived views per package (the intersection
// of positive assignments, and the union of negative ones). Backtracking
// truncates the ledger and rebuilds the views for the affected packages.
type PartialSolution struct {
	assignments []*Assignment

	decisions     map[string]*Package
	decisionOrder []string

	positive *termMap
	negative *termMap

	attemptedSolutions int
	backtracking       bool
}

func newPartialSolution() *PartialSolution {
	return &PartialSolution{
		decisions:          map[string]*Package{},
		positive:           newTermMap(),
		negative:           newTermMap(),
		attemptedSolutions: 1,
	}
}

// Decisions returns the selected packages in the order they were decided.
func (s *PartialSolution) Decisions() []*Package {
	out := make([]*Package, 0, len(s.decisionOrder))
	for _, name := range s.decisionOrder {
		out = append(out, s.decisions[name])
	}
	return out
}

func (s *PartialSolution) DecisionLevel() int { return len(s.decisions) }

// AttemptedSolutions counts the distinct solution prefixes explored: it
// starts at 1 and grows by one for each decision made after backtracking.
func (s *PartialSolution) AttemptedSolutions() int { return s.attemptedSolutions }

// Unsatisfied returns the dependencies of positive assignments that have
// no decision yet, in assignment order.
func (s *PartialSolution) Unsatisfied() []Dependency {
	var out []Dependency
	s.positive.each(func(name string, t *Term) {
		if _, decided := s.decisions[name]; !decided {
			out = append(out, t.Dependency())
		}
	})
	return out
}

// Decide records the selection of a package and opens a new decision
// level.
func (s *PartialSolution) Decide(pkg *Package) {
	// A decision made while backtracking starts a new candidate solution.
	// Consecutive backtracks without a decision in between count once.
	if s.backtracking {
		s.attemptedSolutions++
	}
	s.backtracking = false

	name := pkg.CompleteName()
	if _, ok := s.decisions[name]; !ok {
		s.decisionOrder = append(s.decisionOrder, name)
	}
	s.decisions[name] = pkg

	s.assign(decisionAssignment(pkg, s.DecisionLevel(), len(s.assignments)))
}

// Derive records a term forced by the given incompatibility.
func (s *PartialSolution) Derive(dep Dependency, positive bool, cause *Incompatibility) {
	s.assign(derivationAssignment(dep, positive, cause, s.DecisionLevel(), len(s.assignments)))
}

func (s *PartialSolution) assign(a *Assignment) {
	s.assignments = append(s.assignments, a)
	s.register(a)
}

// Backtrack drops every assignment above the given decision level and
// rebuilds the derived views for the packages those assignments touched.
func (s *PartialSolution) Backtrack(decisionLevel int) {
	s.backtracking = true

	touched := map[string]bool{}
	for len(s.assignments) > 0 &&
		s.assignments[len(s.assignments)-1].DecisionLevel() > decisionLevel {
		removed := s.assignments[len(s.assignments)-1]
		s.assignments = s.assignments[:len(s.assignments)-1]

		name := removed.Dependency().CompleteName()
		touched[name] = true
		if removed.IsDecision() {
			delete(s.decisions, name)
			for i, n := range s.decisionOrder {
				if n == name {
					s.decisionOrder = append(s.decisionOrder[:i], s.decisionOrder[i+1:]...)
					break
				}
			}
		}
	}

	for name := range touched {
		s.positive.delete(name)
		s.negative.delete(name)
	}
	for _, a := range s.assignments {
		if touched[a.Dependency().CompleteName()] {
			s.register(a)
		}
	}
}

// register folds one assignment into the positive/negative views.
func (s *PartialSolution) register(a *Assignment) {
	name := a.Dependency().CompleteName()

	if oldPositive, ok := s.positive.get(name); ok {
		merged := oldPositive.intersect(a.Term)
		if merged == nil {
			panic(fmt.Sprintf("positive assignments for %s became vacuous", name))
		}
		s.positive.set(name, merged)
		return
	}

	term := a.Term
	if oldNegative, ok := s.negative.get(name); ok {
		term = a.Term.intersect(oldNegative)
		if term == nil {
			panic(fmt.Sprintf("negative assignments for %s became vacuous", name))
		}
	}

	if term.IsPositive() {
		s.negative.delete(name)
		s.positive.set(name, term)
	} else {
		s.negative.set(name, term)
	}
}

// Satisfier returns the earliest assignment such that the ledger prefix
// ending there collectively satisfies term.
func (s *PartialSolution) Satisfier(term *Term) *Assignment {
	var assigned *Term

	for _, a := range s.assignments {
		if a.Dependency().CompleteName() != term.Dependency().CompleteName() {
			continue
		}

		if !a.Dependency().IsRoot() && !a.Dependency().IsSamePackageAs(term.Dependency()) {
			// A positive assignment from a different source refutes a
			// negative term about this package outright.
			if !a.IsPositive() {
				continue
			}
			if term.IsPositive() {
				panic(fmt.Sprintf("mismatched-source assignment cannot satisfy positive term %s", term))
			}
			return a
		}

		if assigned == nil {
			assigned = a.Term
		} else {
			assigned = assigned.intersect(a.Term)
		}
		if assigned != nil && assigned.Satisfies(term) {
			return a
		}
	}

	panic(fmt.Sprintf("term %s is not satisfied by the partial solution", term))
}

// Satisfies reports whether the partial solution forces term to be true.
func (s *PartialSolution) Satisfies(term *Term) bool {
	return s.Relation(term) == relSubset
}

// Relation classifies term against the current derived view of its
// package.
func (s *PartialSolution) Relation(term *Term) setRelation {
	name := term.Dependency().CompleteName()
	if positive, ok := s.positive.get(name); ok {
		return positive.relation(term)
	}
	if negative, ok := s.negative.get(name); ok {
		return negative.relation(term)
	}
	return relOverlapping
}
