// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

// An Assignment is a term the solver has committed to, stamped with the
// decision level and ledger index it was made at. Decisions carry the
// selected package; derivations carry the incompatibility that forced
// them.
type Assignment struct {
	*Term

	decisionLevel int
	index         int
	cause         *Incompatibility
	pkg           *Package
}

func decisionAssignment(pkg *Package, decisionLevel, index int) *Assignment {
	return &Assignment{
		Term:          newTerm(pkg.ToDependency(), true),
		decisionLevel: decisionLevel,
		index:         index,
		pkg:           pkg,
	}
}

func derivationAssignment(dep Dependency, positive bool, cause *Incompatibility, decisionLevel, index int) *Assignment {
	return &Assignment{
		Term:          newTerm(dep, positive),
		decisionLevel: decisionLevel,
		index:         index,
		cause:         cause,
	}
}

func (a *Assignment) DecisionLevel() int { return a.decisionLevel }
func (a *Assignment) Index() int { return a.index }
func (a *Assignment) Cause() *Incompatibility { return a.cause }
func (a *Assignment) Package() *Package { return a.pkg }
func (a *Assignment) IsDecision() bool { return a.cause == nil }
