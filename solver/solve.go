// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import "context"

// Solve resolves the root package's requirements against the provider.
// When duplicate requirements force an environment split, the solve is
// re-run once per override branch and the branch solutions are merged;
// each requirement then applies only under its branch's marker.
func Solve(ctx context.Context, root *Package, provider *Provider) (*Solution, error) {
	solution, err := NewVersionSolver(root, provider).Solve(ctx)
	if err != nil {
		if needed, ok := err.(*OverrideNeededError); ok {
			return solveWithOverrides(ctx, root, provider, needed.Overrides)
		}
		return nil, err
	}
	return solution, nil
}

func solveWithOverrides(ctx context.Context, root *Package, provider *Provider, overrides []OverrideMap) (*Solution, error) {
	var packages []*Package
	seen := map[string]*Package{}
	attempts := 0

	for _, override := range overrides {
		provider.SetOverrides(override)
		// Branches can split further; recursion flattens the tree.
		branch, err := Solve(ctx, root, provider)
		if err != nil {
			return nil, err
		}
		attempts += branch.AttemptedSolutions

		for _, pkg := range branch.Packages {
			key := pkg.CompleteName() + "@" + pkg.Version().String()
			if existing, ok := seen[key]; ok {
				mergeRequires(existing, pkg)
				continue
			}
			merged := pkg.Clone()
			seen[key] = merged
			packages = append(packages, merged)
		}
	}

	return &Solution{Root: root, Packages: packages, AttemptedSolutions: attempts}, nil
}

// mergeRequires folds src's requirements into dst, skipping entries dst
// already carries under the same marker.
func mergeRequires(dst, src *Package) {
	for _, dep := range src.Requires() {
		found := false
		for _, have := range dst.Requires() {
			if have.String() == dep.String() &&
				have.Marker().String() == dep.Marker().String() {
				found = true
				break
			}
		}
		if !found {
			dst.AddDependency(dep)
		}
	}
}
