// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Solution is a successful outcome: the selected packages (root excluded)
// in decision order, and how many candidate solutions were explored.
type Solution struct {
	Root               *Package
	Packages           []*Package
	AttemptedSolutions int
}

// VersionSolver finds a set of package versions satisfying the root
// package's requirements using conflict-driven clause learning over
// incompatibilities. See the pub solver documentation for the algorithm:
// https://github.com/dart-lang/pub/blob/master/doc/solver.md
type VersionSolver struct {
	root     *Package
	provider *Provider
	cache    *DependencyCache

	incompatibilities   map[string][]*Incompatibility
	contradicted        map[*Incompatibility]bool
	contradictedByLevel map[int][]*Incompatibility

	solution *PartialSolution
}

// NewVersionSolver builds a solver for one solving attempt. Solvers are
// single-use; re-solving (e.g. per override) takes a fresh instance.
func NewVersionSolver(root *Package, provider *Provider) *VersionSolver {
	return &VersionSolver{
		root:                root,
		provider:            provider,
		cache:               newDependencyCache(provider),
		incompatibilities:   map[string][]*Incompatibility{},
		contradicted:        map[*Incompatibility]bool{},
		contradictedByLevel: map[int][]*Incompatibility{},
		solution:            newPartialSolution(),
	}
}

// PartialSolution exposes the solver's ledger, mainly for tests.
func (vs *VersionSolver) PartialSolution() *PartialSolution { return vs.solution }

// Solve runs the solver to completion. On an unsatisfiable input it
// returns a *SolveFailureError carrying the derivation; an
// *OverrideNeededError propagates to the orchestrator for re-solving.
func (vs *VersionSolver) Solve(ctx context.Context) (*Solution, error) {
	start := time.Now()
	defer func() {
		vs.log(fmt.Sprintf("Version solving took %.3f seconds.\nTried %d solutions.",
			time.Since(start).Seconds(), vs.solution.AttemptedSolutions()))
	}()

	rootDep := vs.root.ToDependency()
	vs.addIncompatibility(NewIncompatibility([]*Term{newTerm(rootDep, false)}, RootCause{}))

	next := vs.root.Name()
	for next != "" {
		if err := vs.propagate(next); err != nil {
			return nil, err
		}
		var err error
		next, err = vs.choosePackageVersion(ctx)
		if err != nil {
			return nil, err
		}
	}

	var packages []*Package
	for _, p := range vs.solution.Decisions() {
		if !p.IsRoot() {
			packages = append(packages, p)
		}
	}
	return &Solution{
		Root:               vs.root,
		Packages:           packages,
		AttemptedSolutions: vs.solution.AttemptedSolutions(),
	}, nil
}

// propagate performs unit propagation on incompatibilities transitively
// related to the named package.
func (vs *VersionSolver) propagate(name string) error {
	// A FIFO work queue with a membership set keeps the propagation order
	// stable run to run.
	queue := []string{name}
	queued := map[string]bool{name: true}

	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]
		delete(queued, pkg)

		// Iterate newest first: conflict resolution appends increasingly
		// general incompatibilities, and checking those early derives
		// stronger assignments sooner.
		incs := vs.incompatibilities[pkg]
		for i := len(incs) - 1; i >= 0; i-- {
			inc := incs[i]
			if vs.contradicted[inc] {
				continue
			}

			derived, conflict := vs.propagateIncompatibility(inc)
			if conflict {
				rootCause, err := vs.resolveConflict(inc)
				if err != nil {
					return err
				}

				// Backjumping erased the assignments above the new level,
				// so restart the queue from the newly-derived package.
				derived, conflict = vs.propagateIncompatibility(rootCause)
				if conflict || derived == "" {
					panic("conflict root cause did not propagate")
				}
				queue = queue[:0]
				queued = map[string]bool{derived: true}
				queue = append(queue, derived)
				break
			}
			if derived != "" && !queued[derived] {
				queue = append(queue, derived)
				queued[derived] = true
			}
		}
	}
	return nil
}

// propagateIncompatibility checks one incompatibility against the
// partial solution. If it is almost satisfied (exactly one undetermined
// term), the negation of that term is derived and its package name is
// returned. If every term is satisfied, the incompatibility holds and
// conflict is true. Otherwise nothing can be deduced.
func (vs *VersionSolver) propagateIncompatibility(inc *Incompatibility) (derived string, conflict bool) {
	var unsatisfied *Term

	for _, term := range inc.Terms() {
		switch vs.solution.Relation(term) {
		case relDisjoint:
			// A contradicted term contradicts the whole incompatibility.
			vs.markContradicted(inc)
			return "", false
		case relOverlapping:
			if unsatisfied != nil {
				return "", false
			}
			unsatisfied = term
		}
	}

	if unsatisfied == nil {
		return "", true
	}

	vs.markContradicted(inc)

	adverb := ""
	if unsatisfied.IsPositive() {
		adverb = "not "
	}
	vs.log(fmt.Sprintf("derived: %s%s", adverb, unsatisfied.Dependency()))

	vs.solution.Derive(unsatisfied.Dependency(), !unsatisfied.IsPositive(), inc)
	return unsatisfied.Dependency().CompleteName(), false
}

func (vs *VersionSolver) markContradicted(inc *Incompatibility) {
	if vs.contradicted[inc] {
		return
	}
	vs.contradicted[inc] = true
	level := vs.solution.DecisionLevel()
	vs.contradictedByLevel[level] = append(vs.contradictedByLevel[level], inc)
}

// resolveConflict takes an incompatibility satisfied by the partial
// solution, derives the root cause of the conflict as a new
// incompatibility, and backjumps to the level where the new
// incompatibility lets propagation deduce fresh assignments.
func (vs *VersionSolver) resolveConflict(inc *Incompatibility) (*Incompatibility, error) {
	vs.log(fmt.Sprintf("conflict: %s", inc))

	newIncompatibility := false
	for !inc.IsFailure() {
		var mostRecentTerm *Term
		var mostRecentSatisfier *Assignment
		var difference *Term

		// Level 1 is where the root package was decided. Stopping there
		// rather than at 0 keeps root references near the conclusion of
		// the failure narrative.
		previousSatisfierLevel := 1

		for _, term := range inc.Terms() {
			satisfier := vs.solution.Satisfier(term)

			switch {
			case mostRecentSatisfier == nil:
				mostRecentTerm = term
				mostRecentSatisfier = satisfier
			case mostRecentSatisfier.Index() < satisfier.Index():
				previousSatisfierLevel = max(previousSatisfierLevel, mostRecentSatisfier.DecisionLevel())
				mostRecentTerm = term
				mostRecentSatisfier = satisfier
				difference = nil
			default:
				previousSatisfierLevel = max(previousSatisfierLevel, satisfier.DecisionLevel())
			}

			if mostRecentTerm == term {
				// The satisfier may only partially satisfy the term; the
				// remainder is pinned down by an earlier assignment whose
				// level also bounds the backjump.
				difference = mostRecentSatisfier.Term.difference(mostRecentTerm)
				if difference != nil {
					previousSatisfierLevel = max(previousSatisfierLevel,
						vs.solution.Satisfier(difference.Inverse()).DecisionLevel())
				}
			}
		}

		if previousSatisfierLevel < mostRecentSatisfier.DecisionLevel() ||
			mostRecentSatisfier.Cause() == nil {
			for level := vs.solution.DecisionLevel(); level > previousSatisfierLevel; level-- {
				for _, c := range vs.contradictedByLevel[level] {
					delete(vs.contradicted, c)
				}
				delete(vs.contradictedByLevel, level)
				vs.cache.ClearLevel(level)
			}

			vs.solution.Backtrack(previousSatisfierLevel)
			if newIncompatibility {
				vs.addIncompatibility(inc)
			}
			return inc, nil
		}

		// Combine the incompatibility with the cause of the most recent
		// satisfier. Iterating this builds an incompatibility that is
		// guaranteed true while approximating the conflict's root cause.
		var newTerms []*Term
		for _, term := range inc.Terms() {
			if term != mostRecentTerm {
				newTerms = append(newTerms, term)
			}
		}
		for _, term := range mostRecentSatisfier.Cause().Terms() {
			if !term.Dependency().IsSamePackageAs(mostRecentSatisfier.Dependency()) ||
				term.Dependency().CompleteName() != mostRecentSatisfier.Dependency().CompleteName() {
				newTerms = append(newTerms, term)
			}
		}
		if difference != nil {
			// The partial-satisfaction exception: the learned clause must
			// exempt the region pinned down by earlier assignments. The
			// inverse is skipped only when it restates the satisfier's own
			// dependency, constraint included.
			inverse := difference.Inverse()
			satisfierDep := mostRecentSatisfier.Dependency()
			if inverse.Dependency().CompleteName() != satisfierDep.CompleteName() ||
				inverse.Dependency().Constraint().String() != satisfierDep.Constraint().String() {
				newTerms = append(newTerms, inverse)
			}
		}

		prior := inc
		inc = NewIncompatibility(newTerms, ConflictCause{Conflict: prior, Other: mostRecentSatisfier.Cause()})
		newIncompatibility = true

		partially := ""
		if difference != nil {
			partially = " partially"
		}
		vs.log(fmt.Sprintf("! %s is%s satisfied by %s", mostRecentTerm, partially, mostRecentSatisfier))
		vs.log(fmt.Sprintf("! which is caused by %q", mostRecentSatisfier.Cause().String()))
		vs.log(fmt.Sprintf("! thus: %s", inc))
	}

	return nil, &SolveFailureError{incompatibility: inc}
}

// compKey orders undecided dependencies for decision making. Lower sorts
// first. Direct origins always go first: resolving a registry dependency
// only to later discover a pinned source for the same package wastes
// work. An explicit resolve-order hint dominates everything else; among
// unhinted dependencies, fewer remaining candidates forces conflicts
// sooner; arrival order breaks the remaining ties.
type compKey struct {
	category    int // 0 direct origin, 1 hinted, 2 locked, 3 default
	hint        int
	numPackages int
	index       int
}

func (k compKey) less(o compKey) bool {
	if k.category != o.category {
		return k.category < o.category
	}
	if k.hint != o.hint {
		return k.hint < o.hint
	}
	if k.numPackages != o.numPackages {
		return k.numPackages < o.numPackages
	}
	return k.index < o.index
}

func (vs *VersionSolver) compKeyFor(ctx context.Context, dep Dependency, index int) compKey {
	key := compKey{category: 3, index: index}

	switch {
	case dep.IsDirectOrigin():
		key.category = 0
	case dep.ResolveOrder() != 0:
		key.category = 1
		key.hint = dep.ResolveOrder()
	case vs.provider.Locked(dep) != nil:
		key.category = 2
	}

	if key.category >= 2 {
		packages, err := vs.cache.SearchFor(ctx, dep, vs.solution.DecisionLevel())
		if err == nil {
			key.numPackages = len(packages)
		}
	}
	return key
}

// chooseNext picks the next dependency to decide.
func (vs *VersionSolver) chooseNext(ctx context.Context, unsatisfied []Dependency) Dependency {
	keys := make([]compKey, len(unsatisfied))
	for i, dep := range unsatisfied {
		keys[i] = vs.compKeyFor(ctx, dep, i)
	}
	order := make([]int, len(unsatisfied))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return keys[order[a]].less(keys[order[b]]) })
	return unsatisfied[order[0]]
}

// choosePackageVersion selects a version for one undecided dependency and
// folds its incompatibilities in. It returns the package name whose
// incompatibilities propagate next, or "" when solving is complete.
func (vs *VersionSolver) choosePackageVersion(ctx context.Context) (string, error) {
	unsatisfied := vs.solution.Unsatisfied()
	if len(unsatisfied) == 0 {
		return "", nil
	}

	dep := vs.chooseNext(ctx, unsatisfied)

	pkg := vs.provider.Locked(dep)
	if pkg == nil {
		packages, err := vs.cache.SearchFor(ctx, dep, vs.solution.DecisionLevel())
		if err != nil {
			return "", err
		}
		if len(packages) == 0 {
			vs.addIncompatibility(NewIncompatibility(
				[]*Term{newTerm(dep, true)}, NoVersionsCause{}))
			return dep.CompleteName(), nil
		}

		chosen := *packages[0]
		chosen.Dep = chosen.Dep.WithTransitiveMarker(dep.TransitiveMarker())
		pkg = &chosen
	}

	completed, err := vs.provider.CompletePackage(ctx, pkg)
	if err != nil {
		return "", err
	}

	conflict := false
	for _, inc := range vs.provider.IncompatibilitiesFor(completed) {
		vs.addIncompatibility(inc)

		// If the new incompatibility is already satisfied, deciding this
		// version would conflict. Its dependencies are still added, then
		// unit propagation steers the solver to a better version.
		allSatisfied := true
		for _, term := range inc.Terms() {
			if term.Dependency().CompleteName() == dep.CompleteName() {
				continue
			}
			if !vs.solution.Satisfies(term) {
				allSatisfied = false
				break
			}
		}
		conflict = conflict || allSatisfied
	}

	if !conflict {
		vs.solution.Decide(completed.Pkg)
		vs.log(fmt.Sprintf("selecting %s (%s)",
			completed.Pkg.CompleteName(), completed.Pkg.Version()))
	}
	return dep.CompleteName(), nil
}

func (vs *VersionSolver) addIncompatibility(inc *Incompatibility) {
	vs.log(fmt.Sprintf("fact: %s", inc))

	for _, term := range inc.Terms() {
		name := term.Dependency().CompleteName()
		existing := vs.incompatibilities[name]
		seen := false
		for _, have := range existing {
			if have == inc {
				seen = true
				break
			}
		}
		if !seen {
			vs.incompatibilities[name] = append(existing, inc)
		}
	}
}

func (vs *VersionSolver) log(text string) {
	vs.provider.Debug(text, vs.solution.AttemptedSolutions())
}
