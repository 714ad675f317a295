// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Repository is an in-memory Pool: a named collection of packages with
// their metadata fully loaded. It backs tests and the lock-file replay
// path, and is the reference behavior for remote pools.
type Repository struct {
	name     string
	packages []*Package
}

// NewRepository builds a repository holding the given packages.
func NewRepository(name string, packages ...*Package) *Repository {
	return &Repository{name: name, packages: packages}
}

func (r *Repository) Name() string { return r.name }

// Add registers a package.
func (r *Repository) Add(pkg *Package) *Repository {
	r.packages = append(r.packages, pkg)
	return r
}

// FindPackages returns the candidates whose version satisfies dep.
// Prereleases are excluded unless the dependency admits them, or nothing
// stable matches.
func (r *Repository) FindPackages(_ context.Context, dep Dependency) ([]*Package, error) {
	var stable, prerelease []*Package
	for _, pkg := range r.packages {
		if pkg.Name() != dep.Name() || !dep.Constraint().Allows(pkg.Version()) {
			continue
		}
		if pkg.IsPrerelease() {
			prerelease = append(prerelease, pkg)
		} else {
			stable = append(stable, pkg)
		}
	}
	if dep.AllowsPrereleases() {
		return append(stable, prerelease...), nil
	}
	if len(stable) > 0 {
		return stable, nil
	}
	return prerelease, nil
}

// Package returns the package at the exact version, metadata included.
func (r *Repository) Package(_ context.Context, name, version string) (*Package, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid version %s for %s", version, name)
	}
	name = normalizeName(name)
	for _, pkg := range r.packages {
		if pkg.Name() == name && pkg.Version().Equal(v) {
			return pkg, nil
		}
	}
	return nil, errors.Errorf("package %s (%s) not found in %s", name, version, r.name)
}
