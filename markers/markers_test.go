// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package markers

import "testing"

func TestParseAndValidate(t *testing.T) {
	env := Environment{
		Values: map[string]string{
			"python_version":      "3.6",
			"python_full_version": "3.6.1",
			"sys_platform":        "linux",
			"os_name":             "posix",
		},
	}

	tests := []struct {
		marker string
		want   bool
	}{
		{`python_version >= "3.6"`, true},
		{`python_version < "3.5"`, false},
		{`python_version == "3.6"`, true},
		{`python_version == "3.7"`, false},
		{`sys_platform == "linux"`, true},
		{`sys_platform == "win32"`, false},
		{`sys_platform != "win32"`, true},
		{`python_version >= "3.6" and sys_platform == "linux"`, true},
		{`python_version >= "3.6" and sys_platform == "win32"`, false},
		{`sys_platform == "win32" or os_name == "posix"`, true},
		{`(sys_platform == "win32" or sys_platform == "linux") and python_version < "4.0"`, true},
		{`"3.6" <= python_version`, true},
		{``, true},
	}

	for _, tt := range tests {
		m, err := Parse(tt.marker)
		if err != nil {
			t.Errorf("Parse(%q) failed: %s", tt.marker, err)
			continue
		}
		if got := m.Validate(env); got != tt.want {
			t.Errorf("Validate(%q) = %v, want %v", tt.marker, got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		`sys_platform >= "win32"`,
		`python_version == 3.6`,
		`(python_version == "3.6"`,
		`python_version ==`,
	} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should have failed", in)
		}
	}
}

func TestExtraValidation(t *testing.T) {
	eq := MustParse(`extra == "mysql"`)
	ne := MustParse(`extra != "mysql"`)

	withExtra := Environment{Extras: []string{"mysql"}}
	without := Environment{}
	other := Environment{Extras: []string{"pgsql"}}

	if !eq.Validate(withExtra) || eq.Validate(without) || eq.Validate(other) {
		t.Error(`extra == "mysql" should hold exactly when mysql is activated`)
	}
	if ne.Validate(withExtra) || !ne.Validate(without) || !ne.Validate(other) {
		t.Error(`extra != "mysql" should hold exactly when mysql is not activated`)
	}
}

func TestIntersectAndEmptiness(t *testing.T) {
	a := MustParse(`sys_platform == "win32"`)
	b := MustParse(`sys_platform == "linux"`)
	if !a.Intersect(b).IsEmpty() {
		t.Error("win32 ∧ linux should be empty")
	}

	c := MustParse(`python_version >= "3.6"`)
	d := MustParse(`python_version < "3.5"`)
	if !c.Intersect(d).IsEmpty() {
		t.Error(">=3.6 ∧ <3.5 should be empty")
	}

	e := MustParse(`python_version >= "3.6"`).Intersect(MustParse(`python_version < "3.8"`))
	if e.IsEmpty() {
		t.Error(">=3.6 ∧ <3.8 should be satisfiable")
	}
	if !e.Validate(Environment{Values: map[string]string{"python_version": "3.7"}}) {
		t.Error("3.7 should satisfy >=3.6 ∧ <3.8")
	}
}

func TestInvert(t *testing.T) {
	m := MustParse(`python_version >= "3.6"`)
	inv := m.Invert()

	env35 := Environment{Values: map[string]string{"python_version": "3.5"}}
	env37 := Environment{Values: map[string]string{"python_version": "3.7"}}

	if inv.Validate(env37) {
		t.Error("inverse of >=3.6 should reject 3.7")
	}
	if !inv.Validate(env35) {
		t.Error("inverse of >=3.6 should accept 3.5")
	}

	// Negation must be disjoint from the original.
	if !m.Intersect(inv).IsEmpty() {
		t.Error("marker ∧ ¬marker should be empty")
	}

	// De Morgan over a conjunction.
	and := MustParse(`python_version >= "3.6" and sys_platform == "win32"`)
	both := and.Intersect(and.Invert())
	if !both.IsEmpty() {
		t.Error("conjunction ∧ its inverse should be empty")
	}

	if !Any().Invert().IsEmpty() {
		t.Error("¬any should be empty")
	}
	if !Empty().Invert().IsAny() {
		t.Error("¬empty should be any")
	}
}

func TestPythonConstraint(t *testing.T) {
	m := MustParse(`python_version >= "3.6" and sys_platform == "win32"`)
	if got := m.PythonConstraint().String(); got != ">=3.6.0" {
		t.Errorf("python constraint = %q, want >=3.6.0", got)
	}

	m = MustParse(`sys_platform == "win32"`)
	if !m.PythonConstraint().IsAny() {
		t.Error("platform-only marker should not constrain python")
	}

	m = MustParse(`python_version >= "3.6" or sys_platform == "win32"`)
	if !m.PythonConstraint().IsAny() {
		t.Error("disjunction with an unconstrained branch spans all pythons")
	}
}

func TestWithoutExtras(t *testing.T) {
	m := MustParse(`extra == "mysql" and python_version >= "3.6"`)
	stripped := m.WithoutExtras()

	if !stripped.Validate(Environment{Values: map[string]string{"python_version": "3.7"}}) {
		t.Error("stripped marker should only check python_version")
	}
	if stripped.Validate(Environment{Values: map[string]string{"python_version": "3.5"}}) {
		t.Error("stripped marker should still constrain python_version")
	}

	if !MustParse(`extra == "mysql"`).WithoutExtras().IsAny() {
		t.Error("an extras-only marker strips to any")
	}
}
