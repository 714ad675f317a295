// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import "fmt"

// NameMismatchError means the metadata fetched for a dependency declares
// a different package name than the dependency asked for. This signals a
// misconfigured dependency; it is never retried.
type NameMismatchError struct {
	Expected string
	Found    string
	Source   string
}

func (e *NameMismatchError) Error() string {
	return fmt.Sprintf(
		"the dependency name for %s does not match the actual package name: %s (from %s)",
		e.Expected, e.Found, e.Source)
}

// PackageInfoError means a package's metadata could not be read after
// exhausting every fallback. It aborts the whole solve.
type PackageInfoError struct {
	Path   string
	Reason error
}

func (e *PackageInfoError) Error() string {
	return fmt.Sprintf("unable to determine package info for path: %s: %s", e.Path, e.Reason)
}

func (e *PackageInfoError) Unwrap() error { return e.Reason }

// IncompatibleConstraintsError means a package declares duplicate
// dependencies on one target whose constraints can never hold together.
type IncompatibleConstraintsError struct {
	Package      *Package
	Dependencies []Dependency
}

func (e *IncompatibleConstraintsError) Error() string {
	msg := fmt.Sprintf("incompatible constraints in requirements of %s:", e.Package)
	for _, dep := range e.Dependencies {
		msg += fmt.Sprintf("\n%s", dep)
	}
	return msg
}

// An OverrideMap forces specific dependency entries for packages during a
// re-solve. Keys are the complete names of the packages whose requirement
// lists are overridden.
type OverrideMap map[string]map[string]Dependency

// OverrideNeededError is a control-flow signal, not a failure: a package
// declares duplicate dependencies whose markers can overlap, so the solve
// must be re-run once per override with the requirement forced.
type OverrideNeededError struct {
	Overrides []OverrideMap
}

func (e *OverrideNeededError) Error() string {
	return fmt.Sprintf("solving requires %d overrides", len(e.Overrides))
}
