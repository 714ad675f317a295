// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"context"
	"testing"

	"github.com/python-poetry/poetry-sub004/markers"
)

func completeTestPackage(t *testing.T, provider *Provider, dep Dependency, pkg *Package) *DependencyPackage {
	t.Helper()
	completed, err := provider.CompletePackage(context.Background(),
		&DependencyPackage{Dep: dep, Pkg: pkg})
	if err != nil {
		t.Fatalf("complete package: %v", err)
	}
	return completed
}

func TestProviderLockedBias(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	pool := NewRepository("pypi", NewPackage("foo", "1.0.0"), NewPackage("foo", "2.0.0"))

	provider := NewProvider(root, pool, ProviderConfig{
		Locked: []*Package{NewPackage("foo", "1.0.0")},
		Logger: testLogger(),
	})

	if locked := provider.Locked(NewDependency("foo", "^1.0")); locked == nil {
		t.Error("lock entry satisfying the constraint should be returned")
	}
	if locked := provider.Locked(NewDependency("foo", "^2.0")); locked != nil {
		t.Errorf("lock entry outside the constraint returned: %v", locked)
	}

	latest := NewProvider(root, pool, ProviderConfig{
		Locked:    []*Package{NewPackage("foo", "1.0.0")},
		UseLatest: []string{"foo"},
		Logger:    testLogger(),
	})
	if locked := latest.Locked(NewDependency("foo", "^1.0")); locked != nil {
		t.Errorf("use-latest package still served from lock: %v", locked)
	}
}

func TestProviderSearchForTreatsPoolErrorsAsNoVersions(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	provider := NewProvider(root, failingPool{}, ProviderConfig{Logger: testLogger()})

	packages, err := provider.SearchFor(context.Background(), NewDependency("foo", "*"))
	if err != nil {
		t.Fatalf("pool errors must not abort the solve: %v", err)
	}
	if len(packages) != 0 {
		t.Errorf("got %d candidates, want 0", len(packages))
	}
}

type failingPool struct{}

func (failingPool) FindPackages(context.Context, Dependency) ([]*Package, error) {
	return nil, context.DeadlineExceeded
}

func (failingPool) Package(context.Context, string, string) (*Package, error) {
	return nil, context.DeadlineExceeded
}

func TestProviderDirectOriginNameMismatch(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	source := &stubGitSource{pkg: NewPackage("other", "1.0.0")}
	provider := NewProvider(root, NewRepository("pypi"), ProviderConfig{
		Sources: source,
		Logger:  testLogger(),
	})

	_, err := provider.SearchFor(context.Background(),
		NewGitDependency("demo", "https://example.com/demo.git", "", ""))
	if _, ok := err.(*NameMismatchError); !ok {
		t.Fatalf("got %T (%v), want *NameMismatchError", err, err)
	}
}

func TestProviderIncompatibilitiesForPythonMismatch(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0").WithPythonVersions("^3.6")
	provider := NewProvider(root, NewRepository("pypi"), ProviderConfig{Logger: testLogger()})

	pkg := NewPackage("foo", "1.0.0").WithPythonVersions("<3.5")
	incs := provider.IncompatibilitiesFor(&DependencyPackage{
		Dep: NewDependency("foo", "*"),
		Pkg: pkg,
	})

	if len(incs) != 1 {
		t.Fatalf("got %d incompatibilities, want 1", len(incs))
	}
	cause, ok := incs[0].Cause().(PythonCause)
	if !ok {
		t.Fatalf("cause = %T, want PythonCause", incs[0].Cause())
	}
	if cause.PythonVersion != "<3.5" {
		t.Errorf("python version = %q, want <3.5", cause.PythonVersion)
	}
}

func TestProviderCompletePackageFiltersUnsafe(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	pkg := NewPackage("foo", "1.0.0").
		AddDependency(NewDependency("setuptools", "*")).
		AddDependency(NewDependency("bar", "^1.0"))
	pool := NewRepository("pypi", pkg, NewPackage("bar", "1.0.0"))

	provider := NewProvider(root, pool, ProviderConfig{
		Unsafe: []string{"setuptools"},
		Logger: testLogger(),
	})

	completed := completeTestPackage(t, provider, NewDependency("foo", "^1.0"), pkg)
	if len(completed.Pkg.Requires()) != 1 || completed.Pkg.Requires()[0].Name() != "bar" {
		t.Errorf("requires = %v, want only bar", completed.Pkg.Requires())
	}
}

func TestProviderCompletePackageMergesEqualConstraints(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	pkg := NewPackage("foo", "1.0.0").
		AddDependency(NewDependency("bar", "^1.0").
			WithMarker(markers.MustParse(`sys_platform == "linux"`))).
		AddDependency(NewDependency("bar", "^1.0").
			WithMarker(markers.MustParse(`sys_platform == "darwin"`)))
	pool := NewRepository("pypi", pkg, NewPackage("bar", "1.0.0"))

	provider := NewProvider(root, pool, ProviderConfig{Logger: testLogger()})

	completed := completeTestPackage(t, provider, NewDependency("foo", "^1.0"), pkg)
	requires := completed.Pkg.Requires()
	if len(requires) != 1 {
		t.Fatalf("requires = %v, want the duplicates merged into one", requires)
	}
	marker := requires[0].Marker()
	for _, platform := range []string{"linux", "darwin"} {
		env := markers.Environment{Values: map[string]string{"sys_platform": platform}}
		if !marker.Validate(env) {
			t.Errorf("merged marker %s does not hold for %s", marker, platform)
		}
	}
	if marker.Validate(markers.Environment{Values: map[string]string{"sys_platform": "win32"}}) {
		t.Errorf("merged marker %s holds for win32", marker)
	}
}

func TestProviderCompletePackageOverrideNeeded(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	pkg := NewPackage("foo", "1.0.0").
		AddDependency(NewDependency("bar", ">=2.0").
			WithMarker(markers.MustParse(`python_version >= "3.6"`))).
		AddDependency(NewDependency("bar", "<2.0").
			WithMarker(markers.MustParse(`python_version < "3.6"`)))
	pool := NewRepository("pypi", pkg, NewPackage("bar", "1.0.0"), NewPackage("bar", "2.0.0"))

	provider := NewProvider(root, pool, ProviderConfig{Logger: testLogger()})

	_, err := provider.CompletePackage(context.Background(), &DependencyPackage{
		Dep: NewDependency("foo", "^1.0"),
		Pkg: pkg,
	})
	needed, ok := err.(*OverrideNeededError)
	if !ok {
		t.Fatalf("got %T (%v), want *OverrideNeededError", err, err)
	}
	if len(needed.Overrides) != 2 {
		t.Fatalf("got %d overrides, want 2", len(needed.Overrides))
	}
	for _, override := range needed.Overrides {
		forced, ok := override[pkg.String()]
		if !ok {
			t.Fatalf("override %v does not target %s", override, pkg)
		}
		if _, ok := forced["bar"]; !ok {
			t.Errorf("override %v does not force bar", override)
		}
	}
}

func TestProviderOverridesReplaceRequirements(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	pkg := NewPackage("foo", "1.0.0").
		AddDependency(NewDependency("bar", ">=2.0").
			WithMarker(markers.MustParse(`python_version >= "3.6"`))).
		AddDependency(NewDependency("bar", "<2.0").
			WithMarker(markers.MustParse(`python_version < "3.6"`)))
	pool := NewRepository("pypi", pkg, NewPackage("bar", "1.0.0"), NewPackage("bar", "2.0.0"))

	provider := NewProvider(root, pool, ProviderConfig{Logger: testLogger()})
	forced := NewDependency("bar", ">=2.0").
		WithMarker(markers.MustParse(`python_version >= "3.6"`))
	provider.SetOverrides(OverrideMap{
		pkg.String(): {"bar": forced},
	})

	completed := completeTestPackage(t, provider, NewDependency("foo", "^1.0"), pkg)
	requires := completed.Pkg.Requires()
	if len(requires) != 1 {
		t.Fatalf("requires = %v, want only the forced entry", requires)
	}
	if requires[0].Constraint().String() != forced.Constraint().String() {
		t.Errorf("forced constraint = %s, want %s", requires[0].Constraint(), forced.Constraint())
	}
}

func TestProviderResolveOverlappingMarkersExclusiveRegions(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	provider := NewProvider(root, NewRepository("pypi"), ProviderConfig{Logger: testLogger()})

	pkg := NewPackage("foo", "1.0.0")
	deps := []Dependency{
		NewDependency("bar", ">=1.0").
			WithMarker(markers.MustParse(`sys_platform == "win32"`)),
		NewDependency("bar", "<2.0"),
	}

	resolved, err := provider.resolveOverlappingMarkers(pkg, deps, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved = %v, want 2 exclusive regions", resolved)
	}

	// Every pair of resulting markers must be mutually exclusive.
	for i := 0; i < len(resolved); i++ {
		for j := i + 1; j < len(resolved); j++ {
			if !resolved[i].Marker().Intersect(resolved[j].Marker()).IsEmpty() {
				t.Errorf("markers %s and %s overlap", resolved[i].Marker(), resolved[j].Marker())
			}
		}
	}

	// The win32 region carries the intersected constraint.
	for _, d := range resolved {
		env := markers.Environment{Values: map[string]string{"sys_platform": "win32"}}
		if d.Marker().Validate(env) {
			if d.Constraint().Allows(version(t, "0.5.0")) || d.Constraint().Allows(version(t, "2.5.0")) {
				t.Errorf("win32 region constraint = %s, want >=1.0,<2.0", d.Constraint())
			}
		}
	}
}

func TestProviderIncompatibleDuplicateConstraints(t *testing.T) {
	root := NewRootPackage("myapp", "1.0.0")
	provider := NewProvider(root, NewRepository("pypi"), ProviderConfig{Logger: testLogger()})

	pkg := NewPackage("foo", "1.0.0")
	deps := []Dependency{
		NewDependency("bar", "^1.0"),
		NewDependency("bar", "^2.0"),
	}

	_, err := provider.resolveOverlappingMarkers(pkg, deps, nil, false)
	if _, ok := err.(*IncompatibleConstraintsError); !ok {
		t.Fatalf("got %T (%v), want *IncompatibleConstraintsError", err, err)
	}
}
