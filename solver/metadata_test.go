// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/python-poetry/poetry-sub004/markers"
	"github.com/python-poetry/poetry-sub004/versions"
)

const testProjectFile = `
[tool.poetry]
name = "demo"
version = "1.2.3"

[tool.poetry.dependencies]
python = "^3.6"
requests = "^2.24"
pendulum = { version = ">=1.0", markers = "sys_platform == \"win32\"" }
tomlkit = { version = "^0.7", optional = true }
cleo = { version = "^0.8", python = "<3.8", allow-prereleases = true }
cachy = { version = "^0.3", extras = ["msgpack"] }
pygit = { git = "https://example.com/pygit.git", branch = "main", subdirectory = "lib" }
local-pkg = { path = "../local-pkg" }
wheel-pkg = { path = "../dist/wheel_pkg-1.0-py3-none-any.whl" }
hosted = { url = "https://example.com/hosted-1.0.tar.gz" }

[tool.poetry.extras]
toml = ["tomlkit"]
`

func TestParseProject(t *testing.T) {
	pkg, err := parseProject([]byte(testProjectFile))
	if err != nil {
		t.Fatal(err)
	}

	if pkg.Name() != "demo" || pkg.Version().String() != "1.2.3" {
		t.Fatalf("package = %s, want demo 1.2.3", pkg)
	}
	if pkg.PythonVersions() != "^3.6" {
		t.Errorf("python versions = %q, want ^3.6", pkg.PythonVersions())
	}

	byName := map[string]Dependency{}
	for _, d := range pkg.Requires() {
		byName[d.Name()] = d
	}

	if d := byName["requests"]; !d.Constraint().Allows(version(t, "2.25.0")) {
		t.Errorf("requests constraint = %s, want ^2.24", d.Constraint())
	}

	pendulum := byName["pendulum"]
	if pendulum.Marker().Validate(markers.Environment{Values: map[string]string{"sys_platform": "linux"}}) {
		t.Errorf("pendulum marker = %s, want win32 only", pendulum.Marker())
	}

	if !byName["tomlkit"].IsOptional() {
		t.Error("tomlkit is declared optional")
	}
	if toml := pkg.Extras()["toml"]; len(toml) != 1 || toml[0].Name() != "tomlkit" {
		t.Errorf("toml extra = %v, want [tomlkit]", pkg.Extras()["toml"])
	}

	cleo := byName["cleo"]
	if !cleo.AllowsPrereleases() {
		t.Error("cleo allows prereleases")
	}
	if cleo.PythonConstraint().AllowsAll(versions.MustParse("3.9.0")) {
		t.Errorf("cleo python constraint = %s, want <3.8", cleo.PythonConstraint())
	}

	cachy := byName["cachy"]
	if len(cachy.Extras()) != 1 || cachy.Extras()[0] != "msgpack" {
		t.Errorf("cachy extras = %v, want [msgpack]", cachy.Extras())
	}

	pygit := byName["pygit"]
	if pygit.Kind() != KindGit || pygit.URL() != "https://example.com/pygit.git" {
		t.Errorf("pygit = kind %v url %q, want git dependency", pygit.Kind(), pygit.URL())
	}
	if pygit.Reference() != "main" || pygit.Subdirectory() != "lib" {
		t.Errorf("pygit ref = %q subdirectory = %q", pygit.Reference(), pygit.Subdirectory())
	}

	if d := byName["local-pkg"]; d.Kind() != KindDirectory {
		t.Errorf("local-pkg kind = %v, want directory", d.Kind())
	}
	if d := byName["wheel-pkg"]; d.Kind() != KindFile {
		t.Errorf("wheel-pkg kind = %v, want file (archive path)", d.Kind())
	}
	if d := byName["hosted"]; d.Kind() != KindURL {
		t.Errorf("hosted kind = %v, want url", d.Kind())
	}
}

func TestParseProjectRejectsIncompleteMetadata(t *testing.T) {
	for _, data := range []string{
		`[tool.other]`,
		"[tool.poetry]\nname = \"demo\"",
		"[tool.poetry]\nversion = \"1.0.0\"",
	} {
		if _, err := parseProject([]byte(data)); err == nil {
			t.Errorf("parseProject(%q) succeeded, want error", data)
		}
	}
}

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		req        string
		name       string
		allows     string
		rejects    string
		extras     []string
		inExtras   []string
		markerEnvs map[string]bool
	}{
		{
			req:    "requests (>=2.24,<3.0)",
			name:   "requests",
			allows: "2.25.0", rejects: "3.1.0",
		},
		{
			req:    "requests>=2.24",
			name:   "requests",
			allows: "2.25.0", rejects: "2.23.0",
		},
		{
			req:  "pytest",
			name: "pytest",
		},
		{
			req:    "cachy[msgpack] (^0.3)",
			name:   "cachy",
			allows: "0.3.5", rejects: "0.4.0",
			extras: []string{"msgpack"},
		},
		{
			req:  `pendulum (>=1.0) ; sys_platform == "win32"`,
			name: "pendulum",
			markerEnvs: map[string]bool{
				"win32": true,
				"linux": false,
			},
		},
		{
			req:      `msgpack-python (>=0.5) ; extra == "msgpack"`,
			name:     "msgpack-python",
			inExtras: []string{"msgpack"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.req, func(t *testing.T) {
			dep, err := parseRequirement(tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if dep.Name() != tt.name {
				t.Errorf("name = %q, want %q", dep.Name(), tt.name)
			}
			if tt.allows != "" && !dep.Constraint().Allows(version(t, tt.allows)) {
				t.Errorf("constraint %s rejects %s", dep.Constraint(), tt.allows)
			}
			if tt.rejects != "" && dep.Constraint().Allows(version(t, tt.rejects)) {
				t.Errorf("constraint %s allows %s", dep.Constraint(), tt.rejects)
			}
			if len(tt.extras) > 0 && strings.Join(dep.Extras(), ",") != strings.Join(tt.extras, ",") {
				t.Errorf("extras = %v, want %v", dep.Extras(), tt.extras)
			}
			if len(tt.inExtras) > 0 {
				if !dep.IsOptional() {
					t.Error("an extra-gated requirement is optional")
				}
				if strings.Join(dep.InExtras(), ",") != strings.Join(tt.inExtras, ",") {
					t.Errorf("in extras = %v, want %v", dep.InExtras(), tt.inExtras)
				}
			}
			for platform, want := range tt.markerEnvs {
				env := markers.Environment{Values: map[string]string{"sys_platform": platform}}
				if got := dep.Marker().Validate(env); got != want {
					t.Errorf("marker %s on %s = %v, want %v", dep.Marker(), platform, got, want)
				}
			}
		})
	}

	for _, req := range []string{"demo[", "demo (>=1.0"} {
		if _, err := parseRequirement(req); err == nil {
			t.Errorf("parseRequirement(%q) succeeded, want error", req)
		}
	}
}

func TestReadCoreMetadata(t *testing.T) {
	data := strings.Join([]string{
		"Metadata-Version: 2.1",
		"Name: demo",
		"Version: 1.2.3",
		"Requires-Python: >=3.6",
		"Requires-Dist: requests (>=2.24,<3.0)",
		`Requires-Dist: pendulum (>=1.0) ; sys_platform == "win32"`,
		"",
		"Name: not-a-header-anymore",
	}, "\n")

	pkg, err := readCoreMetadata(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Name() != "demo" || pkg.Version().String() != "1.2.3" {
		t.Fatalf("package = %s, want demo 1.2.3", pkg)
	}
	if pkg.PythonVersions() != ">=3.6" {
		t.Errorf("python versions = %q, want >=3.6", pkg.PythonVersions())
	}
	if len(pkg.Requires()) != 2 {
		t.Fatalf("requires = %v, want 2 entries", pkg.Requires())
	}

	if _, err := readCoreMetadata(strings.NewReader("Version: 1.0.0\n")); err == nil {
		t.Error("metadata without a Name must be rejected")
	}
}

func TestReadDirectory(t *testing.T) {
	dir := t.TempDir()
	project := `
[tool.poetry]
name = "demo"
version = "0.1.0"

[tool.poetry.dependencies]
python = "^3.6"
requests = "^2.24"
`
	if err := os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(project), 0644); err != nil {
		t.Fatal(err)
	}

	pkg, err := NewMetadataReader().ReadDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Name() != "demo" || pkg.Version().String() != "0.1.0" {
		t.Fatalf("package = %s, want demo 0.1.0", pkg)
	}
	if len(pkg.Requires()) != 1 || pkg.Requires()[0].Name() != "requests" {
		t.Errorf("requires = %v, want [requests]", pkg.Requires())
	}
}

func TestReadDirectoryFallsBackToCoreMetadata(t *testing.T) {
	dir := t.TempDir()
	egg := filepath.Join(dir, "demo.egg-info")
	if err := os.MkdirAll(egg, 0755); err != nil {
		t.Fatal(err)
	}
	data := "Name: demo\nVersion: 2.0.0\n"
	if err := os.WriteFile(filepath.Join(egg, "PKG-INFO"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	pkg, err := NewMetadataReader().ReadDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Name() != "demo" || pkg.Version().String() != "2.0.0" {
		t.Fatalf("package = %s, want demo 2.0.0", pkg)
	}

	empty := t.TempDir()
	if _, err := NewMetadataReader().ReadDirectory(empty); err == nil {
		t.Error("a directory without metadata must be rejected")
	}
}
