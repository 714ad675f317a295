// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/python-poetry/poetry-sub004/markers"
	"github.com/python-poetry/poetry-sub004/versions"
)

// Pool answers registry lookups. FindPackages returns every candidate
// satisfying the dependency's constraint (prereleases only when the
// dependency admits them, or when nothing else matches); Package fetches
// one candidate's full metadata, requirements included.
type Pool interface {
	FindPackages(ctx context.Context, dep Dependency) ([]*Package, error)
	Package(ctx context.Context, name string, version string) (*Package, error)
}

// DirectOriginSource resolves pinned dependencies (git, file, directory,
// url) into concrete packages by fetching and reading their metadata.
type DirectOriginSource interface {
	FromGit(ctx context.Context, dep Dependency) (*Package, error)
	FromFile(ctx context.Context, dep Dependency) (*Package, error)
	FromDirectory(ctx context.Context, dep Dependency) (*Package, error)
	FromURL(ctx context.Context, dep Dependency) (*Package, error)
}

// ProviderConfig carries the optional collaborators and session state for
// a Provider.
type ProviderConfig struct {
	// Locked biases candidate ordering: a locked package is preferred
	// while it still satisfies the dependency, never forced.
	Locked []*Package
	// UseLatest names packages whose lock entry is ignored.
	UseLatest []string
	// Unsafe names packages that must never be resolved, such as
	// setuptools. Explicit per session, never global.
	Unsafe []string
	// ActiveRootExtras, when non-nil, is the set of root extras active
	// for this solve; nil means "solving for a lock file", where all
	// root extras stay represented in markers.
	ActiveRootExtras []string
	// Env, when set, filters requirements against a concrete target
	// environment instead of keeping environment splits symbolic.
	Env *markers.Environment
	// Sources resolves direct-origin dependencies. Defaults to a
	// DirectOrigin over git, the local filesystem and HTTP.
	Sources DirectOriginSource
	// Logger receives the solver's debug trace.
	Logger logrus.FieldLogger
}

// Provider mediates between the version solver and the package sources:
// it enumerates candidates, completes chosen packages into their active
// requirement lists, and converts requirements into incompatibilities.
type Provider struct {
	root    *Package
	pool    Pool
	sources DirectOriginSource
	log     logrus.FieldLogger

	env              *markers.Environment
	activeRootExtras []string
	haveRootExtras   bool

	rootPythonConstraint versions.Set
	pythonConstraint     versions.Set
	overridesMarker      markers.Marker
	overrides            OverrideMap

	locked    map[string][]*DependencyPackage
	useLatest map[string]bool
	unsafe    map[string]bool

	// direct-origin results are memoized per dependency identity;
	// distinct subdirectories or markers never share an entry.
	deferred             map[identity]*DependencyPackage
	directOriginPackages map[string]*Package

	poolPackages map[string]*Package
}

// NewProvider builds a provider for one solving session over the given
// root package and pool.
func NewProvider(root *Package, pool Pool, cfg ProviderConfig) *Provider {
	p := &Provider{
		root:                 root,
		pool:                 pool,
		sources:              cfg.Sources,
		log:                  cfg.Logger,
		env:                  cfg.Env,
		activeRootExtras:     cfg.ActiveRootExtras,
		haveRootExtras:       cfg.ActiveRootExtras != nil,
		rootPythonConstraint: root.PythonConstraint(),
		pythonConstraint:     root.PythonConstraint(),
		overridesMarker:      markers.Any(),
		locked:               map[string][]*DependencyPackage{},
		useLatest:            map[string]bool{},
		unsafe:               map[string]bool{},
		deferred:             map[identity]*DependencyPackage{},
		directOriginPackages: map[string]*Package{},
		poolPackages:         map[string]*Package{},
	}
	if p.sources == nil {
		p.sources = NewDirectOrigin(DirectOriginConfig{Logger: cfg.Logger})
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}

	for _, name := range cfg.UseLatest {
		p.useLatest[normalizeName(name)] = true
	}
	for _, name := range cfg.Unsafe {
		p.unsafe[normalizeName(name)] = true
	}
	for _, pkg := range cfg.Locked {
		name := pkg.Name()
		p.locked[name] = append(p.locked[name], &DependencyPackage{
			Dep: pkg.ToDependency(), Pkg: pkg,
		})
	}
	for _, dps := range p.locked {
		sort.SliceStable(dps, func(i, j int) bool {
			return dps[i].Pkg.Version().GreaterThan(dps[j].Pkg.Version())
		})
	}
	return p
}

// SetOverrides installs the override map for a re-solve and narrows the
// session python constraint to the overrides' combined marker.
func (p *Provider) SetOverrides(overrides OverrideMap) {
	p.overrides = overrides
	p.overridesMarker = markers.Any()
	for _, perPackage := range overrides {
		for _, dep := range perPackage {
			p.overridesMarker = p.overridesMarker.Intersect(dep.Marker())
		}
	}
	p.pythonConstraint = p.rootPythonConstraint.Intersect(p.overridesMarker.PythonConstraint())
}

// Overrides returns the override map installed for this session.
func (p *Provider) Overrides() OverrideMap { return p.overrides }

func validatePackageForDependency(dep Dependency, pkg *Package) error {
	if dep.Name() != pkg.Name() {
		return &NameMismatchError{
			Expected: dep.Name(),
			Found:    pkg.Name(),
			Source:   dep.sourceString(),
		}
	}
	return nil
}

// SearchFor returns the candidates matching dep, latest first. Registry
// lookup failures mean zero candidates; metadata failures on pinned
// sources abort the solve.
func (p *Provider) SearchFor(ctx context.Context, dep Dependency) ([]*DependencyPackage, error) {
	if dep.IsRoot() {
		return []*DependencyPackage{{Dep: dep, Pkg: p.root}}, nil
	}

	if dep.IsDirectOrigin() {
		dp, err := p.searchForDirectOrigin(ctx, dep)
		if err != nil {
			return nil, err
		}
		p.directOriginPackages[dep.Name()] = dp.Pkg
		return []*DependencyPackage{dp}, nil
	}

	// A direct-origin package already found for this name wins over the
	// registry. This relies on the solver deciding direct origins first.
	if prior := p.directOriginPackages[dep.Name()]; prior != nil && prior.Satisfies(dep) {
		return []*DependencyPackage{{Dep: dep, Pkg: prior}}, nil
	}

	pkgs, err := p.pool.FindPackages(ctx, dep)
	if err != nil {
		p.log.WithError(err).WithField("package", dep.Name()).
			Warn("repository lookup failed, treating as no versions")
		return nil, nil
	}

	allowPre := dep.AllowsPrereleases()
	sort.SliceStable(pkgs, func(i, j int) bool {
		iStable := !pkgs[i].IsPrerelease() || allowPre
		jStable := !pkgs[j].IsPrerelease() || allowPre
		if iStable != jStable {
			return iStable
		}
		return pkgs[i].Version().GreaterThan(pkgs[j].Version())
	})

	out := make([]*DependencyPackage, len(pkgs))
	for i, pkg := range pkgs {
		out[i] = &DependencyPackage{Dep: dep, Pkg: pkg}
	}
	return out, nil
}

// searchForDirectOrigin resolves a pinned dependency into its concrete
// package, memoized per full identity so the same ref is never cloned or
// downloaded twice.
func (p *Provider) searchForDirectOrigin(ctx context.Context, dep Dependency) (*DependencyPackage, error) {
	key := dep.identity()
	if dp, ok := p.deferred[key]; ok {
		return dp, nil
	}

	var pkg *Package
	var err error
	switch dep.Kind() {
	case KindGit:
		pkg, err = p.sources.FromGit(ctx, dep)
	case KindFile:
		pkg, err = p.sources.FromFile(ctx, dep)
	case KindDirectory:
		pkg, err = p.sources.FromDirectory(ctx, dep)
	case KindURL:
		pkg, err = p.sources.FromURL(ctx, dep)
	default:
		err = errors.Errorf("%s: not a direct origin dependency", dep)
	}
	if err != nil {
		return nil, err
	}
	if err := validatePackageForDependency(dep, pkg); err != nil {
		return nil, err
	}

	resolved := dep.WithConstraint(versions.Exact(pkg.Version()))
	if dep.Kind() == KindGit {
		resolved = resolved.WithResolvedReference(pkg.Reference(), pkg.ResolvedReference())
	}

	dp := &DependencyPackage{Dep: resolved, Pkg: pkg}
	p.deferred[key] = dp
	return dp, nil
}

// Locked returns the locked candidate for dep, if one exists and still
// satisfies it. Packages named in UseLatest ignore their lock entry.
func (p *Provider) Locked(dep Dependency) *DependencyPackage {
	if p.useLatest[dep.Name()] {
		return nil
	}
	for _, dpkg := range p.locked[dep.Name()] {
		if dpkg.Pkg.Satisfies(dep) {
			return &DependencyPackage{Dep: dep, Pkg: dpkg.Pkg}
		}
	}
	return nil
}

// IncompatibilitiesFor converts a completed package's requirements into
// incompatibilities. A package whose supported python range cannot cover
// the session constraint yields a single python incompatibility instead.
func (p *Provider) IncompatibilitiesFor(dp *DependencyPackage) []*Incompatibility {
	pkg := dp.Pkg
	deps := pkg.Requires()

	if !pkg.IsRoot() && !pkg.PythonConstraint().AllowsAll(p.pythonConstraint) {
		transitive := dp.Dep.TransitiveMarker().PythonConstraint()
		intersection := pkg.PythonConstraint().Intersect(transitive)

		// The uncovered part only matters if it intersects the session's
		// own python constraint.
		difference := transitive.Difference(intersection).Intersect(p.pythonConstraint)

		if transitive.IsAny() ||
			p.pythonConstraint.Intersect(dp.Dep.PythonConstraint()).IsEmpty() ||
			intersection.IsEmpty() ||
			!difference.IsEmpty() {
			return []*Incompatibility{NewIncompatibility(
				[]*Term{newTerm(pkg.ToDependency(), true)},
				PythonCause{
					PythonVersion:     pkg.PythonVersions(),
					RootPythonVersion: p.pythonConstraint.String(),
				})}
		}
	}

	deps = p.withOverrides(deps, pkg)
	out := make([]*Incompatibility, 0, len(deps))
	for _, dep := range deps {
		out = append(out, NewIncompatibility(
			[]*Term{newTerm(pkg.ToDependency(), true), newTerm(dep, false)},
			DependencyCause{}))
	}
	return out
}

// withOverrides substitutes the session's forced requirements for the
// package's own. An empty-constraint override marks a requirement already
// handled by another branch of the split.
func (p *Provider) withOverrides(deps []Dependency, pkg *Package) []Dependency {
	overrides := p.overrides[pkg.String()]
	if len(overrides) == 0 {
		return deps
	}
	var out []Dependency
	overridden := map[string]bool{}
	for _, d := range deps {
		o, ok := overrides[d.Name()]
		if !ok {
			out = append(out, d)
			continue
		}
		if overridden[d.Name()] {
			continue
		}
		overridden[d.Name()] = true
		if !o.Constraint().IsEmpty() {
			out = append(out, o)
		}
	}
	return out
}

// CompletePackage normalizes a chosen candidate into its final active
// requirement list: extras are expanded, requirements are filtered by
// python range, marker and unsafety, duplicates are reconciled, and the
// parent's transitive marker and python constraint are folded in.
//
// It returns *OverrideNeededError when duplicate requirements with
// overlapping markers force the solve to split.
func (p *Provider) CompletePackage(ctx context.Context, dp *DependencyPackage) (*DependencyPackage, error) {
	pkg, dep := dp.Pkg, dp.Dep

	switch {
	case pkg.IsRoot():
		dp = dp.Clone()
		pkg, dep = dp.Pkg, dp.Dep
	case pkg.IsDirectOrigin():
		// Metadata was read when the origin was resolved.
	default:
		full, err := p.packageFromPool(ctx, pkg)
		if err != nil {
			return nil, err
		}
		dp = &DependencyPackage{Dep: dep, Pkg: full}
		pkg = dp.Pkg
	}
	requires := pkg.Requires()

	foundExtras := map[string]bool{}
	optional := map[string]bool{}
	var deps []Dependency

	if len(dep.Extras()) > 0 {
		// Walk the wanted extras, allowing self-referential ones such as
		// foo[all] -> foo[bar].
		stack := append([]string{}, dep.Extras()...)
		sort.Strings(stack)
		for len(stack) > 0 {
			extra := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if foundExtras[extra] {
				continue
			}
			foundExtras[extra] = true

			for _, extraDep := range pkg.Extras()[extra] {
				if extraDep.Name() == dep.Name() {
					more := append([]string{}, extraDep.Extras()...)
					sort.Strings(more)
					stack = append(stack, more...)
				} else {
					optional[extraDep.Name()] = true
				}
			}
		}

		dp = dp.WithFeatures(dep.Extras())
		pkg, dep = dp.Pkg, dp.Dep

		// foo[extra] depends on its own base package.
		base := pkg.WithoutFeatures().ToDependency().WithMarker(dep.Marker())
		deps = append(deps, base)
	}

	for _, d := range requires {
		if !p.pythonConstraint.AllowsAny(d.PythonConstraint()) {
			continue
		}
		if p.unsafe[d.Name()] {
			continue
		}
		if p.env != nil {
			env := *p.env
			if pkg.IsRoot() && p.haveRootExtras {
				env.Extras = p.activeRootExtras
			}
			if !d.Marker().Validate(env) {
				continue
			}
		}
		if !pkg.IsRoot() {
			if d.IsOptional() && !optional[d.Name()] {
				continue
			}
			if len(d.InExtras()) > 0 && !anyActivated(d.InExtras(), foundExtras) {
				continue
			}
		}

		// Root extras must show up in markers so mutually exclusive
		// splits like extra == "foo" vs extra != "foo" are detectable.
		if p.env == nil && pkg.IsRoot() && len(d.InExtras()) > 0 {
			clauses := make([]string, len(d.InExtras()))
			for i, extra := range d.InExtras() {
				clauses[i] = fmt.Sprintf("extra == %q", extra)
			}
			extraMarker := markers.MustParse(strings.Join(clauses, " or "))
			d = d.WithMarker(d.Marker().Intersect(extraMarker))
		}

		deps = append(deps, d)
	}

	// Resolve direct origins now so their constraints are exact. A lock
	// entry for the exact same source needs no re-analysis.
	for i, d := range deps {
		if !d.IsDirectOrigin() {
			continue
		}
		if locked := p.Locked(d); locked != nil && locked.Pkg.Satisfies(d) {
			continue
		}
		resolved, err := p.searchForDirectOrigin(ctx, d)
		if err != nil {
			return nil, err
		}
		deps[i] = resolved.Dep
	}

	deps = p.withOverrides(deps, pkg)

	final, err := p.reconcileDuplicates(pkg, dep, deps)
	if err != nil {
		return nil, err
	}

	var clean []Dependency
	for _, d := range final {
		if !dep.TransitiveMarker().WithoutExtras().IsAny() {
			intersection := dep.TransitiveMarker().WithoutExtras().
				Intersect(d.Marker().WithoutExtras())
			if intersection.IsEmpty() {
				// The markers under which the parent was selected can
				// never activate this requirement.
				continue
			}
			d = d.WithTransitiveMarker(intersection)
		}

		if !dep.PythonConstraint().IsAny() &&
			d.PythonConstraint().Intersect(dep.PythonConstraint()).IsEmpty() {
			continue
		}

		clean = append(clean, d)
	}

	return &DependencyPackage{Dep: dep, Pkg: pkg.withRequires(clean)}, nil
}

func anyActivated(inExtras []string, found map[string]bool) bool {
	for _, e := range inExtras {
		if found[e] {
			return true
		}
	}
	return false
}

// reconcileDuplicates handles multiple requirements on one target name:
// identical constraints merge by unioning markers; distinguishable marker
// splits stay side by side; genuinely overlapping splits raise
// OverrideNeededError so the orchestrator re-solves per branch.
func (p *Provider) reconcileDuplicates(pkg *Package, dep Dependency, deps []Dependency) ([]Dependency, error) {
	var order []string
	byName := map[string][]Dependency{}
	for _, d := range deps {
		if _, ok := byName[d.Name()]; !ok {
			order = append(order, d.Name())
		}
		byName[d.Name()] = append(byName[d.Name()], d)
	}

	var out []Dependency
	for _, name := range order {
		group := byName[name]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}

		p.Debug(fmt.Sprintf("duplicate dependencies for %s", name), 0)

		// Requirements with differing extras are distinct solver facts;
		// reconcile marker overlaps within each extras variant first.
		var extrasOrder []string
		byExtras := map[string][]Dependency{}
		for _, d := range group {
			cn := d.CompleteName()
			if _, ok := byExtras[cn]; !ok {
				extrasOrder = append(extrasOrder, cn)
			}
			byExtras[cn] = append(byExtras[cn], d)
		}

		if len(byExtras) == 1 {
			// Equal constraints union their markers; if that settles the
			// group, no marker regions need computing.
			group = mergeByConstraint(group)
			if len(group) > 1 {
				activeExtras, known := dep.Extras(), true
				if pkg.IsRoot() {
					activeExtras, known = p.activeRootExtras, p.haveRootExtras
				}
				resolved, err := p.resolveOverlappingMarkers(pkg, group, activeExtras, known)
				if err != nil {
					return nil, err
				}
				group = resolved
			}
		} else {
			for _, cn := range extrasOrder {
				if len(byExtras[cn]) > 1 {
					merged := mergeByConstraint(byExtras[cn])
					if len(merged) > 1 {
						resolved, err := p.resolveOverlappingMarkers(pkg, merged, nil, false)
						if err != nil {
							return nil, err
						}
						merged = resolved
					}
					byExtras[cn] = merged
				}
			}

			exclusive := true
			for i := 0; exclusive && i < len(extrasOrder); i++ {
				if len(byExtras[extrasOrder[i]]) != 1 {
					exclusive = false
					break
				}
				for j := i + 1; j < len(extrasOrder); j++ {
					a := byExtras[extrasOrder[i]][0]
					b := byExtras[extrasOrder[j]][0]
					if !a.Marker().Intersect(b.Marker()).IsEmpty() {
						exclusive = false
						break
					}
				}
			}
			if !exclusive {
				// Too entangled for overrides; let genuine conflicts
				// surface during solving.
				for _, cn := range extrasOrder {
					out = append(out, byExtras[cn]...)
				}
				continue
			}
			group = nil
			for _, cn := range extrasOrder {
				group = append(group, byExtras[cn]...)
			}
		}

		if len(group) == 1 {
			p.Debug(fmt.Sprintf("merging requirements for %s", name), 0)
			out = append(out, group[0])
			continue
		}

		// Entries whose markers cannot hold under the current overrides
		// are irrelevant for this branch.
		var relevant []Dependency
		for _, d := range group {
			if !p.overridesMarker.Intersect(d.Marker()).IsEmpty() {
				relevant = append(relevant, d)
			}
		}
		if len(relevant) < 2 {
			if len(relevant) == 1 && !relevant[0].Constraint().IsEmpty() {
				out = append(out, relevant[0])
			}
			continue
		}

		overrides := make([]OverrideMap, 0, len(relevant))
		for _, d := range relevant {
			override := OverrideMap{}
			for k, v := range p.overrides {
				forPkg := map[string]Dependency{}
				for n, od := range v {
					forPkg[n] = od
				}
				override[k] = forPkg
			}
			forPkg := override[pkg.String()]
			if forPkg == nil {
				forPkg = map[string]Dependency{}
				override[pkg.String()] = forPkg
			}
			forPkg[d.Name()] = d
			overrides = append(overrides, override)
		}
		return nil, &OverrideNeededError{Overrides: overrides}
	}
	return out, nil
}

// mergeByConstraint merges requirements from the same source with equal
// constraints by unioning their markers.
func mergeByConstraint(deps []Dependency) []Dependency {
	var groups [][]Dependency
	for _, d := range deps {
		placed := false
		for i, g := range groups {
			if sameSource(d, g[0]) {
				groups[i] = append(g, d)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []Dependency{d})
		}
	}

	var merged []Dependency
	for _, g := range groups {
		var keys []string
		byConstraint := map[string][]Dependency{}
		for _, d := range g {
			key := d.Constraint().String()
			if _, ok := byConstraint[key]; !ok {
				keys = append(keys, key)
			}
			byConstraint[key] = append(byConstraint[key], d)
		}
		for _, key := range keys {
			ds := byConstraint[key]
			d := ds[0]
			if len(ds) > 1 {
				ms := make([]markers.Marker, len(ds))
				for i, dd := range ds {
					ms[i] = dd.Marker()
				}
				d = d.WithMarker(markers.Union(ms...))
			}
			merged = append(merged, d)
		}
	}
	return merged
}

func sameSource(a, b Dependency) bool {
	return a.Kind() == b.Kind() && a.URL() == b.URL() &&
		a.Path() == b.Path() && a.Subdirectory() == b.Subdirectory()
}

// isRelevantMarker reports whether a reconciled marker split can ever
// apply: non-empty, inside the session python constraint, compatible with
// the active extras, and valid for the target environment if one is set.
func (p *Provider) isRelevantMarker(m markers.Marker, activeExtras []string, extrasKnown bool) bool {
	if m.IsEmpty() {
		return false
	}
	if !p.pythonConstraint.AllowsAny(m.PythonConstraint()) {
		return false
	}
	if extrasKnown && !m.Validate(markers.Environment{Extras: activeExtras}) {
		return false
	}
	if p.env != nil && !m.Validate(*p.env) {
		return false
	}
	return true
}

// resolveOverlappingMarkers converts duplicate requirements with possibly
// overlapping markers into requirements with mutually exclusive markers:
// for every subset of the entries, intersect the chosen markers with the
// inverses of the rest; where that region is relevant, the intersection
// of the chosen constraints applies there.
func (p *Provider) resolveOverlappingMarkers(pkg *Package, deps []Dependency, activeExtras []string, extrasKnown bool) ([]Dependency, error) {
	deps = mergeByConstraint(deps)

	n := len(deps)
	var out []Dependency
	for mask := (1 << n) - 1; mask >= 0; mask-- {
		used := func(i int) bool { return mask&(1<<(n-1-i)) != 0 }

		// Intersect non-inverted markers first: inverted markers overlap
		// more often, so this finds empty regions early.
		region := markers.Any()
		for i, d := range deps {
			if used(i) {
				region = region.Intersect(d.Marker())
			}
		}
		for i, d := range deps {
			if !used(i) {
				region = region.Intersect(d.Marker().Invert())
			}
		}
		if !p.isRelevantMarker(region, activeExtras, extrasKnown) {
			continue
		}

		constraint := versions.Any()
		var usedDeps []Dependency
		var specificSource *Dependency
		for i := range deps {
			if !used(i) {
				continue
			}
			d := deps[i]
			if d.IsDirectOrigin() {
				if specificSource != nil && !sameSource(d, *specificSource) {
					return nil, &IncompatibleConstraintsError{
						Package:      pkg,
						Dependencies: []Dependency{d, *specificSource},
					}
				}
				dd := d
				specificSource = &dd
			}
			constraint = constraint.Intersect(d.Constraint())
			usedDeps = append(usedDeps, d)
		}
		if constraint.IsEmpty() {
			return nil, &IncompatibleConstraintsError{Package: pkg, Dependencies: usedDeps}
		}

		if len(usedDeps) == 0 {
			// The all-inverted region needs an explicit "not required"
			// entry, or requirements on other packages scoped to this
			// region would be lost.
			constraint = versions.Empty()
			usedDeps = deps
		}

		base := usedDeps[0]
		if specificSource != nil {
			base = *specificSource
		}
		out = append(out, base.WithConstraint(constraint).WithMarker(region))
	}

	// Resolution can reintroduce equal constraints; merge once more to
	// keep the override count down.
	return mergeByConstraint(out), nil
}

// packageFromPool fetches a package's full metadata, memoized per
// name@version.
func (p *Provider) packageFromPool(ctx context.Context, pkg *Package) (*Package, error) {
	key := pkg.Name() + "@" + pkg.Version().String()
	if cached, ok := p.poolPackages[key]; ok {
		return cached, nil
	}
	full, err := p.pool.Package(ctx, pkg.Name(), pkg.Version().String())
	if err != nil {
		return nil, err
	}
	p.poolPackages[key] = full
	return full, nil
}

// Debug emits one entry of the solver trace; depth is the attempted
// solution count at the time of the entry.
func (p *Provider) Debug(message string, depth int) {
	log := p.log
	if depth > 0 {
		log = log.WithField("attempt", depth)
	}
	for _, line := range strings.Split(message, "\n") {
		log.Debug(line)
	}
}
