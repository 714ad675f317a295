// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

// countingPool wraps a Repository and counts FindPackages calls per name.
type countingPool struct {
	*Repository
	finds map[string]int
}

func newCountingPool(packages ...*Package) *countingPool {
	return &countingPool{
		Repository: NewRepository("pypi", packages...),
		finds:      map[string]int{},
	}
}

func (p *countingPool) FindPackages(ctx context.Context, dep Dependency) ([]*Package, error) {
	p.finds[dep.Name()]++
	return p.Repository.FindPackages(ctx, dep)
}

// stubGitSource serves one canned package for git lookups and counts the
// fetches that reach it.
type stubGitSource struct {
	pkg     *Package
	fetches int
}

func (s *stubGitSource) FromGit(context.Context, Dependency) (*Package, error) {
	s.fetches++
	return s.pkg, nil
}

func (s *stubGitSource) FromFile(context.Context, Dependency) (*Package, error) {
	return nil, errors.New("not supported")
}

func (s *stubGitSource) FromDirectory(context.Context, Dependency) (*Package, error) {
	return nil, errors.New("not supported")
}

func (s *stubGitSource) FromURL(context.Context, Dependency) (*Package, error) {
	return nil, errors.New("not supported")
}

// The same package name from the registry and from a git pin must resolve
// through independent cache entries: different results, no
// cross-contamination, and repeat lookups served from the cache.
func TestDependencyCacheSeparatesSourceIdentities(t *testing.T) {
	ctx := context.Background()

	pool := newCountingPool(NewPackage("demo", "1.0.0"))
	gitPkg := NewPackage("demo", "1.2.0").
		WithSource(KindGit, "https://example.com/demo.git", "main", "9cf87a285425", "", "")
	source := &stubGitSource{pkg: gitPkg}

	root := NewRootPackage("myapp", "1.0.0")
	provider := NewProvider(root, pool, ProviderConfig{Sources: source, Logger: testLogger()})
	cache := newDependencyCache(provider)

	registryDep := NewDependency("demo", "^1.0")
	gitDep := NewGitDependency("demo", "https://example.com/demo.git", "main", "")

	fromRegistry, err := cache.SearchFor(ctx, registryDep, 0)
	if err != nil {
		t.Fatal(err)
	}
	fromGit, err := cache.SearchFor(ctx, gitDep, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(fromRegistry) != 1 || fromRegistry[0].Pkg.Kind() != KindRegistry {
		t.Fatalf("registry lookup = %v, want one registry candidate", fromRegistry)
	}
	if len(fromGit) != 1 || fromGit[0].Pkg.Kind() != KindGit {
		t.Fatalf("git lookup = %v, want one git candidate", fromGit)
	}
	if fromRegistry[0].Pkg.Version().Equal(fromGit[0].Pkg.Version()) {
		t.Error("the two sources returned the same candidate; cache entries are contaminated")
	}
	if got := fromGit[0].Pkg.ResolvedReference(); got != "9cf87a285425" {
		t.Errorf("git candidate resolved reference = %q, want 9cf87a285425", got)
	}
	if got := fromGit[0].Dep.ResolvedReference(); got != "9cf87a285425" {
		t.Errorf("resolved dependency reference = %q, want 9cf87a285425", got)
	}

	// Second round: both answered from caches, no new fetches.
	if _, err := cache.SearchFor(ctx, registryDep, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.SearchFor(ctx, gitDep, 1); err != nil {
		t.Fatal(err)
	}
	if pool.finds["demo"] != 1 {
		t.Errorf("registry fetched %d times, want 1", pool.finds["demo"])
	}
	if source.fetches != 1 {
		t.Errorf("git fetched %d times, want 1", source.fetches)
	}
}

func TestDependencyCacheNarrowsAndClearsByLevel(t *testing.T) {
	ctx := context.Background()

	pool := newCountingPool(
		NewPackage("foo", "1.0.0"),
		NewPackage("foo", "2.0.0"),
	)
	root := NewRootPackage("myapp", "1.0.0")
	provider := NewProvider(root, pool, ProviderConfig{Logger: testLogger()})
	cache := newDependencyCache(provider)

	all, err := cache.SearchFor(ctx, NewDependency("foo", "*"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d candidates, want 2", len(all))
	}

	// A narrower constraint filters the cached list without a new fetch.
	narrowed, err := cache.SearchFor(ctx, NewDependency("foo", "<2.0.0"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(narrowed) != 1 || narrowed[0].Pkg.Version().String() != "1.0.0" {
		t.Fatalf("narrowed = %v, want [foo 1.0.0]", narrowed)
	}
	if pool.finds["foo"] != 1 {
		t.Fatalf("pool fetched %d times, want 1", pool.finds["foo"])
	}

	// Backjumping pops the narrowed entry; the wide one is still served.
	cache.ClearLevel(1)
	again, err := cache.SearchFor(ctx, NewDependency("foo", "*"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 {
		t.Fatalf("got %d candidates after clearing, want 2", len(again))
	}
	if pool.finds["foo"] != 1 {
		t.Errorf("pool fetched %d times, want 1", pool.finds["foo"])
	}
}

func TestDependencyCacheRetagsExtras(t *testing.T) {
	ctx := context.Background()

	pool := newCountingPool(NewPackage("foo", "1.0.0"))
	root := NewRootPackage("myapp", "1.0.0")
	provider := NewProvider(root, pool, ProviderConfig{Logger: testLogger()})
	cache := newDependencyCache(provider)

	withExtras, err := cache.SearchFor(ctx, NewDependency("foo", "*").WithExtras("feature"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(withExtras) != 1 {
		t.Fatalf("got %d candidates, want 1", len(withExtras))
	}
	if got := withExtras[0].Dep.CompleteName(); got != "foo[feature]" {
		t.Errorf("candidate dependency = %s, want foo[feature]", got)
	}

	// The underlying search is shared with the extra-less dependency.
	if _, err := cache.SearchFor(ctx, NewDependency("foo", "*"), 0); err != nil {
		t.Fatal(err)
	}
	if pool.finds["foo"] != 1 {
		t.Errorf("pool fetched %d times, want 1", pool.finds["foo"])
	}
}
