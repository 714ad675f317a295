// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/python-poetry/poetry-sub004/versions"
)

// A Package is one concrete, immutable candidate: a name at an exact
// version, with the requirements and optional requirements (extras) its
// metadata declares, and the python range it supports.
type Package struct {
	name    string
	version *semver.Version

	kind         Kind
	url          string
	reference    string
	resolvedRef  string
	path         string
	subdirectory string

	requires []Dependency
	extras   map[string][]Dependency

	pythonVersions   string
	pythonConstraint versions.Set

	features []string // extras this instance was selected with
	root     bool
}

// NewPackage builds a registry package at the given exact version.
// Malformed versions panic; package versions come from metadata that has
// already been validated upstream.
func NewPackage(name, version string) *Package {
	v, err := semver.NewVersion(version)
	if err != nil {
		panic(fmt.Sprintf("invalid package version %s@%s: %s", name, version, err))
	}
	return &Package{
		name:             normalizeName(name),
		version:          v,
		extras:           map[string][]Dependency{},
		pythonVersions:   "*",
		pythonConstraint: versions.Any(),
	}
}

// NewRootPackage builds the distinguished package representing the
// project itself. It is always selected; its requirement set spans every
// declared dependency group.
func NewRootPackage(name, version string) *Package {
	p := NewPackage(name, version)
	p.root = true
	return p
}

func (p *Package) Name() string { return p.name }
func (p *Package) Version() *semver.Version { return p.version }
func (p *Package) Kind() Kind { return p.kind }
func (p *Package) URL() string { return p.url }
func (p *Package) Reference() string { return p.reference }
func (p *Package) ResolvedReference() string { return p.resolvedRef }
func (p *Package) Path() string { return p.path }
func (p *Package) Subdirectory() string { return p.subdirectory }
func (p *Package) IsRoot() bool { return p.root }
func (p *Package) Features() []string { return p.features }
func (p *Package) PythonVersions() string { return p.pythonVersions }

// PythonConstraint is the python range the package supports.
func (p *Package) PythonConstraint() versions.Set { return p.pythonConstraint }

// IsDirectOrigin reports whether the package came from a pinned source.
func (p *Package) IsDirectOrigin() bool { return p.kind != KindRegistry }

// IsPrerelease reports whether the exact version is a prerelease.
func (p *Package) IsPrerelease() bool { return p.version.Prerelease() != "" }

// CompleteName includes the extras the package was selected with.
func (p *Package) CompleteName() string {
	if len(p.features) == 0 {
		return p.name
	}
	return fmt.Sprintf("%s[%s]", p.name, strings.Join(p.features, ","))
}

func (p *Package) String() string {
	return fmt.Sprintf("%s (%s)", p.CompleteName(), p.version)
}

// Requires returns the package's declared requirements.
func (p *Package) Requires() []Dependency { return p.requires }

// Extras returns the optional requirement groups keyed by extra name.
func (p *Package) Extras() map[string][]Dependency { return p.extras }

// AddDependency appends a requirement. Packages under construction only;
// packages already handed to the solver are never mutated.
func (p *Package) AddDependency(dep Dependency) *Package {
	p.requires = append(p.requires, dep)
	return p
}

// AddExtra declares an optional requirement group.
func (p *Package) AddExtra(name string, deps ...Dependency) *Package {
	p.extras[normalizeName(name)] = deps
	return p
}

// WithPythonVersions restricts the package to the given python range.
func (p *Package) WithPythonVersions(constraint string) *Package {
	p.pythonVersions = constraint
	p.pythonConstraint = versions.MustParse(constraint)
	return p
}

// WithSource stamps source metadata onto the package.
func (p *Package) WithSource(kind Kind, url, reference, resolvedRef, path, subdirectory string) *Package {
	p.kind = kind
	p.url = url
	p.reference = reference
	p.resolvedRef = resolvedRef
	p.path = path
	p.subdirectory = subdirectory
	return p
}

// Clone returns a deep-enough copy: requirement slices are copied so the
// copy can be extended without aliasing the original.
func (p *Package) Clone() *Package {
	c := *p
	c.requires = append([]Dependency{}, p.requires...)
	c.extras = make(map[string][]Dependency, len(p.extras))
	for k, v := range p.extras {
		c.extras[k] = append([]Dependency{}, v...)
	}
	c.features = append([]string{}, p.features...)
	return &c
}

// WithFeatures returns a copy selected with the given extras activated.
func (p *Package) WithFeatures(features []string) *Package {
	c := p.Clone()
	c.features = append([]string{}, features...)
	return c
}

// WithoutFeatures returns a copy with no extras activated.
func (p *Package) WithoutFeatures() *Package {
	c := p.Clone()
	c.features = nil
	return c
}

// withRequires returns a copy whose requirement list is exactly deps.
func (p *Package) withRequires(deps []Dependency) *Package {
	c := p.Clone()
	c.requires = deps
	return c
}

// ToDependency expresses the package as an exact-version dependency on
// itself, preserving its source.
func (p *Package) ToDependency() Dependency {
	d := NewDependency(p.name, p.version.String())
	d.constraint = versions.Exact(p.version)
	d.kind = p.kind
	d.url = p.url
	d.reference = p.reference
	d.resolvedRef = p.resolvedRef
	d.path = p.path
	d.subdirectory = p.subdirectory
	d.extras = append([]string{}, p.features...)
	d.root = p.root
	return d
}

// Satisfies reports whether this package is an acceptable answer for the
// given dependency: same target, same source, version in range.
func (p *Package) Satisfies(dep Dependency) bool {
	if p.name != dep.Name() {
		return false
	}
	if dep.IsDirectOrigin() {
		if p.kind != dep.Kind() || p.url != dep.URL() || p.path != dep.Path() ||
			p.subdirectory != dep.Subdirectory() {
			return false
		}
		if dep.Reference() != "" && dep.Reference() != p.reference &&
			dep.Reference() != p.resolvedRef {
			return false
		}
		return true
	}
	return p.kind == KindRegistry && dep.Constraint().Allows(p.version)
}

// A DependencyPackage pairs a package with the dependency that selected
// it; the dependency carries the extras and accumulated markers the
// selection was made under.
type DependencyPackage struct {
	Dep Dependency
	Pkg *Package
}

// Clone deep-copies the package half of the pair.
func (dp *DependencyPackage) Clone() *DependencyPackage {
	return &DependencyPackage{Dep: dp.Dep, Pkg: dp.Pkg.Clone()}
}

// WithFeatures activates extras on both halves of the pair.
func (dp *DependencyPackage) WithFeatures(features []string) *DependencyPackage {
	return &DependencyPackage{
		Dep: dp.Dep.WithExtras(features...),
		Pkg: dp.Pkg.WithFeatures(features),
	}
}

func (dp *DependencyPackage) String() string { return dp.Pkg.String() }
