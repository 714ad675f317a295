// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/python-poetry/poetry-sub004/markers"
	"github.com/python-poetry/poetry-sub004/versions"
)

// Kind identifies where a dependency's candidates come from. It is a
// closed union: Provider switches over it exhaustively, so adding a kind
// is a compile-time-visible change.
type Kind uint8

const (
	// KindRegistry dependencies are answered by the repository pool.
	KindRegistry Kind = iota
	// KindGit dependencies name a git remote and optional ref.
	KindGit
	// KindFile dependencies point at a local archive.
	KindFile
	// KindDirectory dependencies point at a local source tree.
	KindDirectory
	// KindURL dependencies name a remote archive to download.
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindRegistry:
		return "registry"
	case KindGit:
		return "git"
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindURL:
		return "url"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// A Dependency is one package requirement: a named target, a version
// constraint, a source kind, and the gates (marker, python range, extras)
// under which it applies. Dependencies are values; deriving a modified
// dependency always returns a new value.
type Dependency struct {
	name             string
	constraint       versions.Set
	prettyConstraint string

	kind         Kind
	url          string // git remote or download URL
	reference    string // requested git ref (branch, tag or rev)
	resolvedRef  string // commit id, once a git ref has been resolved
	path         string // file or directory path
	subdirectory string

	extras []string // sorted feature names to activate on the target

	marker           markers.Marker
	transitiveMarker markers.Marker
	pythonConstraint versions.Set

	group             string
	inExtras          []string // extras of the *owning* package this entry belongs to
	optional          bool
	allowsPrereleases bool
	resolveOrder      int // explicit decision-order hint; 0 means none
	root              bool
}

// NewDependency builds a registry dependency on name with the given
// constraint expression. Malformed constraints panic; use ParseConstraint
// for untrusted input.
func NewDependency(name, constraint string) Dependency {
	return Dependency{
		name:             normalizeName(name),
		constraint:       versions.MustParse(constraint),
		prettyConstraint: constraint,
		marker:           markers.Any(),
		transitiveMarker: markers.Any(),
		pythonConstraint: versions.Any(),
	}
}

// NewGitDependency builds a dependency pinned to a git remote and ref.
func NewGitDependency(name, url, reference, subdirectory string) Dependency {
	d := NewDependency(name, "*")
	d.kind = KindGit
	d.url = url
	d.reference = reference
	d.subdirectory = subdirectory
	return d
}

// NewFileDependency builds a dependency on a local archive.
func NewFileDependency(name, path string) Dependency {
	d := NewDependency(name, "*")
	d.kind = KindFile
	d.path = path
	return d
}

// NewDirectoryDependency builds a dependency on a local source tree.
func NewDirectoryDependency(name, path string) Dependency {
	d := NewDependency(name, "*")
	d.kind = KindDirectory
	d.path = path
	return d
}

// NewURLDependency builds a dependency on a remote archive.
func NewURLDependency(name, url string) Dependency {
	d := NewDependency(name, "*")
	d.kind = KindURL
	d.url = url
	return d
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

func (d Dependency) Name() string { return d.name }

// CompleteName includes activated extras, e.g. "foo[mysql]". Two
// dependencies on the same package with different extras are distinct
// solver facts.
func (d Dependency) CompleteName() string {
	if len(d.extras) == 0 {
		return d.name
	}
	return fmt.Sprintf("%s[%s]", d.name, strings.Join(d.extras, ","))
}

func (d Dependency) Constraint() versions.Set { return d.constraint }
func (d Dependency) Kind() Kind { return d.kind }
func (d Dependency) URL() string { return d.url }
func (d Dependency) Reference() string { return d.reference }
func (d Dependency) ResolvedReference() string { return d.resolvedRef }
func (d Dependency) Path() string { return d.path }
func (d Dependency) Subdirectory() string { return d.subdirectory }
func (d Dependency) Extras() []string { return d.extras }
func (d Dependency) Marker() markers.Marker { return d.marker }
func (d Dependency) Group() string { return d.group }
func (d Dependency) IsOptional() bool { return d.optional }
func (d Dependency) InExtras() []string { return d.inExtras }
func (d Dependency) IsRoot() bool { return d.root }
func (d Dependency) ResolveOrder() int { return d.resolveOrder }
func (d Dependency) TransitiveMarker() markers.Marker { return d.transitiveMarker }

// PythonConstraint is the python-version range this dependency applies
// under: the declared range intersected with whatever the marker implies.
func (d Dependency) PythonConstraint() versions.Set {
	return d.pythonConstraint.Intersect(d.marker.PythonConstraint())
}

// IsDirectOrigin reports whether candidates come from a pinned source
// rather than the registry pool.
func (d Dependency) IsDirectOrigin() bool { return d.kind != KindRegistry }

// AllowsPrereleases reports whether prerelease candidates are eligible.
// Citing a prerelease bound in the constraint is an implicit opt-in.
func (d Dependency) AllowsPrereleases() bool {
	return d.allowsPrereleases || versions.HasPrereleaseBound(d.constraint)
}

// PrettyConstraint is the constraint as the user wrote it, for messages.
func (d Dependency) PrettyConstraint() string {
	if d.prettyConstraint != "" {
		return d.prettyConstraint
	}
	return d.constraint.String()
}

func (d Dependency) String() string {
	if d.IsDirectOrigin() {
		return fmt.Sprintf("%s (%s)", d.CompleteName(), d.sourceString())
	}
	return fmt.Sprintf("%s (%s)", d.CompleteName(), d.PrettyConstraint())
}

func (d Dependency) sourceString() string {
	switch d.kind {
	case KindGit:
		s := "git+" + d.url
		if d.reference != "" {
			s += "@" + d.reference
		}
		return s
	case KindFile, KindDirectory:
		return d.path
	case KindURL:
		return d.url
	}
	return d.kind.String()
}

// identity is the full cache identity of a dependency: two dependencies
// with equal identity must resolve to the same candidate set.
type identity struct {
	name         string
	kind         Kind
	locator      string
	reference    string
	subdirectory string
	extras       string
	marker       string
}

func (d Dependency) identity() identity {
	locator := d.url
	if d.kind == KindFile || d.kind == KindDirectory {
		locator = d.path
	}
	return identity{
		name:         d.name,
		kind:         d.kind,
		locator:      locator,
		reference:    d.reference,
		subdirectory: d.subdirectory,
		extras:       strings.Join(d.extras, ","),
		marker:       d.marker.String(),
	}
}

// IsSamePackageAs reports whether two dependencies target the same
// package from the same source.
func (d Dependency) IsSamePackageAs(o Dependency) bool {
	return d.name == o.name &&
		d.kind == o.kind &&
		d.url == o.url &&
		d.path == o.path &&
		d.subdirectory == o.subdirectory
}

// WithConstraint returns a copy carrying the given constraint.
func (d Dependency) WithConstraint(c versions.Set) Dependency {
	d.constraint = c
	d.prettyConstraint = ""
	return d
}

// WithExtras returns a copy with the given extras activated.
func (d Dependency) WithExtras(extras ...string) Dependency {
	sorted := append([]string{}, extras...)
	sort.Strings(sorted)
	d.extras = sorted
	return d
}

// WithoutExtras returns a copy with no extras activated.
func (d Dependency) WithoutExtras() Dependency {
	d.extras = nil
	return d
}

// WithMarker returns a copy gated by the given marker.
func (d Dependency) WithMarker(m markers.Marker) Dependency {
	d.marker = m
	return d
}

// WithTransitiveMarker returns a copy carrying the accumulated marker of
// the selection path that introduced this dependency.
func (d Dependency) WithTransitiveMarker(m markers.Marker) Dependency {
	d.transitiveMarker = m
	return d
}

// WithResolvedReference returns a copy recording the concrete revision a
// symbolic git reference resolved to.
func (d Dependency) WithResolvedReference(reference, resolvedRef string) Dependency {
	if reference != "" {
		d.reference = reference
	}
	d.resolvedRef = resolvedRef
	return d
}

// WithPythonConstraint returns a copy restricted to the given python
// range.
func (d Dependency) WithPythonConstraint(s versions.Set) Dependency {
	d.pythonConstraint = s
	return d
}

// WithGroup returns a copy assigned to the named dependency group.
func (d Dependency) WithGroup(group string) Dependency {
	d.group = group
	return d
}

// AsOptional returns a copy marked optional, belonging to the named
// extras of its owner.
func (d Dependency) AsOptional(inExtras ...string) Dependency {
	d.optional = true
	d.inExtras = inExtras
	return d
}

// WithPrereleases returns a copy that admits prerelease candidates.
func (d Dependency) WithPrereleases() Dependency {
	d.allowsPrereleases = true
	return d
}

// WithResolveOrder returns a copy carrying an explicit decision-order
// hint. Hinted dependencies are decided before unhinted ones; lower wins.
func (d Dependency) WithResolveOrder(order int) Dependency {
	d.resolveOrder = order
	return d
}

// ParseConstraint parses a constraint expression for use in a dependency.
func ParseConstraint(body string) (versions.Set, error) {
	return versions.Parse(body)
}
