// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Parse interprets a version constraint expression into a Set.
//
// Supported forms, composable with "||" for unions and "," or whitespace
// for intersections within a branch:
//
//	*               any version
//	1.2.3           exactly 1.2.3 (partial versions are zero-padded)
//	=1.2.3, ==1.2.3 same
//	!=1.2.3         everything but 1.2.3
//	>1.2, >=1.2, <2.0, <=2.0
//	^1.2            >=1.2.0 <2.0.0 (caret: up to the next breaking change)
//	~1.2.3          >=1.2.3 <1.3.0 (tilde: patch-level changes)
//	1.2.*           >=1.2.0 <1.3.0 (wildcard)
func Parse(body string) (Set, error) {
	body = strings.TrimSpace(body)
	if body == "" || body == "*" {
		return Any(), nil
	}

	result := Empty()
	for _, branch := range strings.Split(body, "||") {
		set, err := parseBranch(branch)
		if err != nil {
			return nil, err
		}
		result = result.Union(set)
	}
	return result, nil
}

// MustParse is Parse, panicking on malformed input. For fixtures and
// declarations of known-good constraints.
func MustParse(body string) Set {
	s, err := Parse(body)
	if err != nil {
		panic(err)
	}
	return s
}

func parseBranch(branch string) (Set, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return nil, errors.New("empty constraint branch")
	}

	set := Any()
	for _, part := range splitParts(branch) {
		c, err := parseSimple(part)
		if err != nil {
			return nil, err
		}
		set = set.Intersect(c)
	}
	return set, nil
}

func splitParts(branch string) []string {
	fields := strings.FieldsFunc(branch, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	return fields
}

func parseSimple(part string) (Set, error) {
	switch {
	case part == "*":
		return Any(), nil
	case strings.HasPrefix(part, "^"):
		return parseCaret(part[1:])
	case strings.HasPrefix(part, "~="):
		return parseTilde(part[2:])
	case strings.HasPrefix(part, "~"):
		return parseTilde(part[1:])
	case strings.HasPrefix(part, ">="):
		return parseBound(part[2:], func(v *semver.Version) Range {
			return Range{min: v, includeMin: true}
		})
	case strings.HasPrefix(part, ">"):
		return parseBound(part[1:], func(v *semver.Version) Range {
			return Range{min: v}
		})
	case strings.HasPrefix(part, "<="):
		return parseBound(part[1:], func(v *semver.Version) Range {
			return Range{max: v, includeMax: true}
		})
	case strings.HasPrefix(part, "<"):
		return parseBound(part[1:], func(v *semver.Version) Range {
			return Range{max: v}
		})
	case strings.HasPrefix(part, "!="):
		v, err := parseVersion(part[2:])
		if err != nil {
			return nil, err
		}
		return Any().Difference(Exact(v)), nil
	case strings.HasPrefix(part, "=="):
		return parseExact(part[2:])
	case strings.HasPrefix(part, "="):
		return parseExact(part[1:])
	default:
		return parseExact(part)
	}
}

func parseBound(text string, mk func(*semver.Version) Range) (Set, error) {
	// Bound operators tolerate a stray "=" remnant (">=" handled by caller).
	text = strings.TrimPrefix(text, "=")
	v, err := parseVersion(text)
	if err != nil {
		return nil, err
	}
	return mk(v), nil
}

func parseExact(text string) (Set, error) {
	if segs, wild := splitWildcard(text); wild {
		return wildcardRange(segs)
	}
	v, err := parseVersion(text)
	if err != nil {
		return nil, err
	}
	return Exact(v), nil
}

// parseCaret maps ^X.Y.Z to [X.Y.Z, next-breaking). The next breaking
// change is the next major version, or the next minor/patch version while
// the leading segments are zero.
func parseCaret(text string) (Set, error) {
	v, err := parseVersion(text)
	if err != nil {
		return nil, err
	}

	var upper semver.Version
	switch {
	case v.Major() > 0:
		upper = v.IncMajor()
	case v.Minor() > 0:
		upper = v.IncMinor()
	default:
		upper = v.IncPatch()
	}
	return Range{min: v, includeMin: true, max: &upper}, nil
}

// parseTilde maps ~X.Y.Z to [X.Y.Z, X.Y+1.0) and ~X to [X.0.0, X+1.0.0):
// only the least-specified segment may move.
func parseTilde(text string) (Set, error) {
	v, err := parseVersion(text)
	if err != nil {
		return nil, err
	}

	var upper semver.Version
	if countSegments(text) >= 2 {
		upper = v.IncMinor()
	} else {
		upper = v.IncMajor()
	}
	return Range{min: v, includeMin: true, max: &upper}, nil
}

func wildcardRange(segs []string) (Set, error) {
	base := strings.Join(segs, ".")
	if base == "" {
		return Any(), nil
	}
	v, err := parseVersion(base)
	if err != nil {
		return nil, err
	}

	var upper semver.Version
	if len(segs) >= 2 {
		upper = v.IncMinor()
	} else {
		upper = v.IncMajor()
	}
	return Range{min: v, includeMin: true, max: &upper}, nil
}

// splitWildcard strips a trailing ".*" (or lone "*") segment, reporting
// whether one was present.
func splitWildcard(text string) ([]string, bool) {
	segs := strings.Split(text, ".")
	for i, s := range segs {
		if s == "*" || s == "x" || s == "X" {
			return segs[:i], true
		}
	}
	return segs, false
}

func countSegments(text string) int {
	if i := strings.IndexAny(text, "-+"); i >= 0 {
		text = text[:i]
	}
	return len(strings.Split(text, "."))
}

func parseVersion(text string) (*semver.Version, error) {
	text = strings.TrimSpace(text)
	v, err := semver.NewVersion(text)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed version %q", text)
	}
	return v, nil
}
