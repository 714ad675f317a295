// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import "context"

// DependencyCache memoizes candidate lookups during one solve. Except at
// backtracking, once a candidate set has been computed for a dependency
// it never needs recomputing, so entries are stacked per decision level:
// backtracking pops the levels that were rolled back and keeps the rest.
//
// ClearLevel must be called in descending level order as the solver
// backtracks so the right entries are popped.
type DependencyCache struct {
	provider *Provider

	cache   map[identity][][]*DependencyPackage
	byLevel map[int][]identity
}

func newDependencyCache(provider *Provider) *DependencyCache {
	return &DependencyCache{
		provider: provider,
		cache:    map[identity][][]*DependencyPackage{},
		byLevel:  map[int][]identity{},
	}
}

// SearchFor returns the eligible candidates for dep at the given decision
// level, latest first. Cache hits are narrowed to dep's constraint; a hit
// that narrows to nothing falls through to the provider, which may admit
// prereleases it previously filtered out.
func (c *DependencyCache) SearchFor(ctx context.Context, dep Dependency, decisionLevel int) ([]*DependencyPackage, error) {
	base := dep
	if len(dep.Extras()) > 0 {
		base = dep.WithoutExtras()
	}
	key := base.identity()

	var packages []*DependencyPackage
	if entries := c.cache[key]; len(entries) > 0 {
		for _, p := range entries[len(entries)-1] {
			if dep.Constraint().Allows(p.Pkg.Version()) {
				packages = append(packages, p)
			}
		}
	}

	if len(packages) == 0 {
		fresh, err := c.provider.SearchFor(ctx, base)
		if err != nil {
			return nil, err
		}
		packages = fresh
	}

	c.cache[key] = append(c.cache[key], packages)
	c.byLevel[decisionLevel] = append(c.byLevel[decisionLevel], key)

	if len(dep.Extras()) > 0 && len(packages) > 0 {
		// Re-tag the candidates with the requested extras; the cached
		// dependency is kept so an explicit source survives.
		tagged := make([]*DependencyPackage, len(packages))
		featured := packages[0].Dep.WithExtras(dep.Extras()...)
		for i, p := range packages {
			tagged[i] = &DependencyPackage{Dep: featured, Pkg: p.Pkg}
		}
		return tagged, nil
	}
	return packages, nil
}

// ClearLevel pops every cache entry recorded at the given decision level.
func (c *DependencyCache) ClearLevel(level int) {
	keys, ok := c.byLevel[level]
	if !ok {
		return
	}
	delete(c.byLevel, level)
	for _, key := range keys {
		entries := c.cache[key]
		c.cache[key] = entries[:len(entries)-1]
	}
}
