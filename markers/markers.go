// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package markers implements environment markers: boolean predicates over
// the target environment (python version, platform tags, activated extras)
// that gate whether a dependency applies.
//
// A marker is kept in disjunctive normal form: a union of groups, each
// group a conjunction of per-variable constraints. Version-valued
// variables (python_version, python_full_version) carry a versions.Set;
// every other variable carries a generic tag constraint. Keeping the form
// normalized makes intersection, union, inversion and emptiness checks
// exact, which the provider's duplicate-requirement reconciliation depends
// on.
package markers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/python-poetry/poetry-sub004/constraints"
	"github.com/python-poetry/poetry-sub004/versions"
)

// versionVariables are the marker variables whose values are versions, not
// opaque tags.
var versionVariables = map[string]bool{
	"python_version":      true,
	"python_full_version": true,
}

// An Environment supplies concrete marker values at validation time.
type Environment struct {
	// Values maps marker variable names (sys_platform, os_name,
	// python_full_version, ...) to their concrete values.
	Values map[string]string
	// Extras is the set of activated extras, consulted by the special
	// "extra" variable.
	Extras []string
}

// Marker is an environment predicate. The zero value is not valid; use
// Any, Empty or Parse.
type Marker struct {
	// groups in DNF. nil with any=true is the trivially true marker; nil
	// with any=false is the contradiction.
	groups []group
	any    bool
}

type group struct {
	// atoms ordered by variable name, one per variable.
	atoms []atom
}

type atom struct {
	variable string
	// exactly one of the two constraints is set, per variable kind.
	vset versions.Set
	tags constraints.Constraint
}

// Any returns the trivially true marker.
func Any() Marker { return Marker{any: true} }

// Empty returns the unsatisfiable marker.
func Empty() Marker { return Marker{} }

func (m Marker) IsAny() bool { return m.any }
func (m Marker) IsEmpty() bool { return !m.any && len(m.groups) == 0 }

func (a atom) isEmpty() bool {
	if a.vset != nil {
		return a.vset.IsEmpty()
	}
	return a.tags.IsEmpty()
}

func (a atom) isAny() bool {
	if a.vset != nil {
		return a.vset.IsAny()
	}
	return a.tags.IsAny()
}

func (a atom) intersect(b atom) atom {
	if a.vset != nil {
		return atom{variable: a.variable, vset: a.vset.Intersect(b.vset)}
	}
	return atom{variable: a.variable, tags: a.tags.Intersect(b.tags)}
}

func (a atom) invert() atom {
	if a.vset != nil {
		return atom{variable: a.variable, vset: versions.Any().Difference(a.vset)}
	}
	return atom{variable: a.variable, tags: constraints.Any().Difference(a.tags)}
}

func (a atom) String() string {
	if a.vset != nil {
		return fmt.Sprintf("%s %q", a.variable, a.vset.String())
	}
	return fmt.Sprintf("%s %q", a.variable, a.tags.String())
}

func (g group) String() string {
	parts := make([]string, len(g.atoms))
	for i, a := range g.atoms {
		parts[i] = a.String()
	}
	return strings.Join(parts, " and ")
}

func (m Marker) String() string {
	if m.any {
		return "*"
	}
	if len(m.groups) == 0 {
		return "<empty>"
	}
	parts := make([]string, len(m.groups))
	for i, g := range m.groups {
		s := g.String()
		if len(m.groups) > 1 && len(g.atoms) > 1 {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, " or ")
}

// newMarker normalizes: drops empty groups, collapses to Any when a group
// is unconditionally true.
func newMarker(groups []group) Marker {
	var live []group
	for _, g := range groups {
		g, empty := g.normalize()
		if empty {
			continue
		}
		if len(g.atoms) == 0 {
			return Marker{any: true}
		}
		live = append(live, g)
	}
	return Marker{groups: live}
}

func (g group) normalize() (group, bool) {
	var atoms []atom
	for _, a := range g.atoms {
		if a.isEmpty() {
			return group{}, true
		}
		if !a.isAny() {
			atoms = append(atoms, a)
		}
	}
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].variable < atoms[j].variable })
	return group{atoms: atoms}, false
}

func (g group) intersect(o group) group {
	byVar := map[string]atom{}
	order := []string{}
	for _, a := range g.atoms {
		byVar[a.variable] = a
		order = append(order, a.variable)
	}
	for _, b := range o.atoms {
		if a, ok := byVar[b.variable]; ok {
			byVar[b.variable] = a.intersect(b)
		} else {
			byVar[b.variable] = b
			order = append(order, b.variable)
		}
	}
	atoms := make([]atom, 0, len(order))
	for _, name := range order {
		atoms = append(atoms, byVar[name])
	}
	return group{atoms: atoms}
}

// Intersect returns the conjunction of two markers.
func (m Marker) Intersect(o Marker) Marker {
	if m.any {
		return o
	}
	if o.any {
		return m
	}
	var out []group
	for _, g := range m.groups {
		for _, h := range o.groups {
			out = append(out, g.intersect(h))
		}
	}
	return newMarker(out)
}

// Union returns the disjunction of two markers.
func (m Marker) Union(o Marker) Marker {
	if m.any || o.any {
		return Marker{any: true}
	}
	return newMarker(append(append([]group{}, m.groups...), o.groups...))
}

// Invert returns the logical negation.
func (m Marker) Invert() Marker {
	if m.any {
		return Marker{}
	}
	if m.IsEmpty() {
		return Marker{any: true}
	}

	// Negate each group into a union of negated atoms, then conjoin the
	// results.
	result := Marker{any: true}
	for _, g := range m.groups {
		var branches []group
		for _, a := range g.atoms {
			branches = append(branches, group{atoms: []atom{a.invert()}})
		}
		result = result.Intersect(newMarker(branches))
	}
	return result
}

// Validate reports whether the marker holds in the given environment.
// Variables absent from the environment are treated as satisfying any
// constraint, so partial environments only rule out what they can see.
func (m Marker) Validate(env Environment) bool {
	if m.any {
		return true
	}
	for _, g := range m.groups {
		if g.validate(env) {
			return true
		}
	}
	return false
}

func (g group) validate(env Environment) bool {
	for _, a := range g.atoms {
		if !a.validate(env) {
			return false
		}
	}
	return true
}

func (a atom) validate(env Environment) bool {
	if a.variable == "extra" {
		return a.validateExtra(env.Extras)
	}

	value, ok := env.Values[a.variable]
	if !ok {
		return true
	}
	if a.vset != nil {
		v, err := versions.Parse(value)
		if err != nil {
			return false
		}
		return a.vset.AllowsAll(v)
	}
	return a.tags.Allows(constraints.NewAtom(value, constraints.OpEqual))
}

// validateExtra treats "extra" as set-valued: an equality atom holds when
// the named extra is activated, an inequality atom holds when it is not,
// including when no extra is active at all.
func (a atom) validateExtra(extras []string) bool {
	values, cofinite := constraints.Members(a.tags)
	if cofinite {
		for _, e := range extras {
			for _, v := range values {
				if e == v {
					return false
				}
			}
		}
		return true
	}
	for _, e := range extras {
		for _, v := range values {
			if e == v {
				return true
			}
		}
	}
	return false
}

// WithoutExtras returns the marker with every "extra" atom dropped.
func (m Marker) WithoutExtras() Marker {
	if m.any {
		return m
	}
	out := make([]group, 0, len(m.groups))
	for _, g := range m.groups {
		var atoms []atom
		for _, a := range g.atoms {
			if a.variable != "extra" {
				atoms = append(atoms, a)
			}
		}
		out = append(out, group{atoms: atoms})
	}
	return newMarker(out)
}

// Extras returns the extra names the marker requires via equality atoms,
// deduplicated in first-seen order.
func (m Marker) Extras() []string {
	var names []string
	seen := map[string]bool{}
	for _, g := range m.groups {
		for _, a := range g.atoms {
			if a.variable != "extra" || a.tags == nil {
				continue
			}
			values, cofinite := constraints.Members(a.tags)
			if cofinite {
				continue
			}
			for _, v := range values {
				if !seen[v] {
					seen[v] = true
					names = append(names, v)
				}
			}
		}
	}
	return names
}

// PythonConstraint extracts the python-version requirement implied by the
// marker: the union across groups of each group's python atoms.
func (m Marker) PythonConstraint() versions.Set {
	if m.any || m.IsEmpty() {
		return versions.Any()
	}
	result := versions.Empty()
	for _, g := range m.groups {
		c := versions.Any()
		for _, a := range g.atoms {
			if a.vset != nil {
				c = c.Intersect(a.vset)
			}
		}
		result = result.Union(c)
	}
	return result
}

// Union combines markers, treating the zero-length input as empty.
func Union(ms ...Marker) Marker {
	out := Empty()
	for _, m := range ms {
		out = out.Union(m)
	}
	return out
}

// Parse reads a marker expression such as
//
//	python_version >= "3.6" and sys_platform == "win32"
//	extra == "mysql" or extra == "pgsql"
//
// Comparison operators ==, !=, <, <=, >, >= and ~= are accepted;
// version-valued variables admit the ordered operators, tag variables only
// (in)equality. Parenthesized subexpressions, "and" and "or" compose.
func Parse(text string) (Marker, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Any(), nil
	}
	p := &parser{tokens: lex(text)}
	m, err := p.parseOr()
	if err != nil {
		return Marker{}, errors.Wrapf(err, "malformed marker %q", text)
	}
	if !p.eof() {
		return Marker{}, errors.Errorf("malformed marker %q: trailing input near %q", text, p.peek())
	}
	return m, nil
}

// MustParse is Parse, panicking on malformed input.
func MustParse(text string) Marker {
	m, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return m
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) eof() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() string {
	if p.eof() {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseOr() (Marker, error) {
	m, err := p.parseAnd()
	if err != nil {
		return Marker{}, err
	}
	for p.peek() == "or" {
		p.next()
		n, err := p.parseAnd()
		if err != nil {
			return Marker{}, err
		}
		m = m.Union(n)
	}
	return m, nil
}

func (p *parser) parseAnd() (Marker, error) {
	m, err := p.parseFactor()
	if err != nil {
		return Marker{}, err
	}
	for p.peek() == "and" {
		p.next()
		n, err := p.parseFactor()
		if err != nil {
			return Marker{}, err
		}
		m = m.Intersect(n)
	}
	return m, nil
}

func (p *parser) parseFactor() (Marker, error) {
	if p.peek() == "(" {
		p.next()
		m, err := p.parseOr()
		if err != nil {
			return Marker{}, err
		}
		if p.next() != ")" {
			return Marker{}, errors.New("unbalanced parenthesis")
		}
		return m, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (Marker, error) {
	left := p.next()
	op := p.next()
	right := p.next()
	if left == "" || op == "" || right == "" {
		return Marker{}, errors.New("truncated marker atom")
	}

	// Allow the reversed '"3.6" < python_version' form.
	variable, value := left, right
	if strings.HasPrefix(left, `"`) && !strings.HasPrefix(right, `"`) {
		variable, value = right, left
		op = flipOp(op)
	}
	if !strings.HasPrefix(value, `"`) {
		return Marker{}, errors.Errorf("marker value %q must be quoted", value)
	}
	value = strings.Trim(value, `"`)

	a, err := makeAtom(variable, op, value)
	if err != nil {
		return Marker{}, err
	}
	return newMarker([]group{{atoms: []atom{a}}}), nil
}

func makeAtom(variable, op, value string) (atom, error) {
	if versionVariables[variable] {
		set, err := versionAtomSet(variable, op, value)
		if err != nil {
			return atom{}, err
		}
		return atom{variable: variable, vset: set}, nil
	}

	switch op {
	case "==":
		return atom{variable: variable, tags: constraints.NewAtom(value, constraints.OpEqual)}, nil
	case "!=":
		return atom{variable: variable, tags: constraints.NewAtom(value, constraints.OpNotEqual)}, nil
	default:
		return atom{}, errors.Errorf("operator %q is not valid for tag variable %q", op, variable)
	}
}

func versionAtomSet(variable, op, value string) (versions.Set, error) {
	switch op {
	case "==":
		// python_version carries only major.minor; an equality against it
		// spans the whole patch series.
		if variable == "python_version" && strings.Count(value, ".") < 2 {
			return versions.Parse(value + ".*")
		}
		return versions.Parse("==" + value)
	case "!=", ">=", ">", "<=", "<", "~=":
		return versions.Parse(op + value)
	default:
		return nil, errors.Errorf("unknown version operator %q", op)
	}
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op
	}
}

// lex splits a marker expression into parenthesis, operator, identifier
// and quoted-string tokens.
func lex(text string) []string {
	var tokens []string
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(text) && text[j] != c {
				j++
			}
			if j < len(text) {
				j++
			}
			tokens = append(tokens, `"`+strings.Trim(text[i:j], `"'`)+`"`)
			i = j
		case strings.ContainsRune("=!<>~", rune(c)):
			j := i
			for j < len(text) && strings.ContainsRune("=!<>~", rune(text[j])) {
				j++
			}
			tokens = append(tokens, text[i:j])
			i = j
		default:
			j := i
			for j < len(text) && !strings.ContainsRune(" \t()=!<>~\"'", rune(text[j])) {
				j++
			}
			tokens = append(tokens, text[i:j])
			i = j
		}
	}
	return tokens
}
