// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/python-poetry/poetry-sub004/markers"
)

// A MetadataReader extracts a package's name, version and requirements
// from a source tree or a distribution archive.
type MetadataReader interface {
	ReadDirectory(path string) (*Package, error)
	ReadArchive(path string) (*Package, error)
}

// fileMetadataReader is the default reader. It falls back through the
// recognized formats: a build description (pyproject.toml) first, then
// static core metadata (PKG-INFO / METADATA).
type fileMetadataReader struct{}

// NewMetadataReader returns the default metadata reader.
func NewMetadataReader() MetadataReader { return fileMetadataReader{} }

func (fileMetadataReader) ReadDirectory(path string) (*Package, error) {
	if pkg, err := readProjectFile(filepath.Join(path, "pyproject.toml")); err == nil {
		return pkg, nil
	} else if !os.IsNotExist(errors.Cause(err)) {
		return nil, &PackageInfoError{Path: path, Reason: err}
	}

	// No build description at the root; scan for core metadata left by a
	// previous build, or a nested build description.
	var found string
	walkErr := godirwalk.Walk(path, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			name := de.Name()
			if name == "PKG-INFO" || name == "METADATA" || name == "pyproject.toml" {
				if found == "" || osPathname < found {
					found = osPathname
				}
			}
			return nil
		},
		Unsorted: true,
	})
	if walkErr != nil {
		return nil, &PackageInfoError{Path: path, Reason: walkErr}
	}
	if found == "" {
		return nil, &PackageInfoError{Path: path, Reason: errors.New("no recognizable package metadata")}
	}
	if filepath.Base(found) == "pyproject.toml" {
		pkg, err := readProjectFile(found)
		if err != nil {
			return nil, &PackageInfoError{Path: path, Reason: err}
		}
		return pkg, nil
	}
	f, err := os.Open(found)
	if err != nil {
		return nil, &PackageInfoError{Path: path, Reason: err}
	}
	defer f.Close()
	pkg, err := readCoreMetadata(f)
	if err != nil {
		return nil, &PackageInfoError{Path: path, Reason: err}
	}
	return pkg, nil
}

func (fileMetadataReader) ReadArchive(path string) (*Package, error) {
	lower := strings.ToLower(path)
	var pkg *Package
	var err error
	switch {
	case strings.HasSuffix(lower, ".whl") || strings.HasSuffix(lower, ".zip"):
		pkg, err = readZipArchive(path)
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		pkg, err = readTarArchive(path)
	default:
		err = errors.Errorf("unrecognized archive format: %s", filepath.Base(path))
	}
	if err != nil {
		return nil, &PackageInfoError{Path: path, Reason: err}
	}
	return pkg, nil
}

func readZipArchive(path string) (*Package, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// Prefer core metadata (wheels always carry it), fall back to a
	// bundled build description (sdists shipped as zip).
	var metadata, project *zip.File
	for _, f := range r.File {
		base := filepath.Base(f.Name)
		switch {
		case base == "METADATA" || base == "PKG-INFO":
			if metadata == nil {
				metadata = f
			}
		case base == "pyproject.toml":
			if project == nil {
				project = f
			}
		}
	}
	if metadata != nil {
		rc, err := metadata.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return readCoreMetadata(rc)
	}
	if project != nil {
		rc, err := project.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return parseProject(data)
	}
	return nil, errors.New("archive carries no recognizable metadata")
}

func readTarArchive(path string) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var projectData []byte
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		base := filepath.Base(hdr.Name)
		if base == "PKG-INFO" || base == "METADATA" {
			return readCoreMetadata(tr)
		}
		if base == "pyproject.toml" && projectData == nil {
			projectData, err = io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
		}
	}
	if projectData != nil {
		return parseProject(projectData)
	}
	return nil, errors.New("archive carries no recognizable metadata")
}

func readProjectFile(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseProject(data)
}

// parseProject reads a pyproject.toml build description.
func parseProject(data []byte) (*Package, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "malformed pyproject.toml")
	}
	section, ok := tree.GetPath([]string{"tool", "poetry"}).(*toml.Tree)
	if !ok {
		return nil, errors.New("pyproject.toml has no tool.poetry section")
	}
	poetry := section.ToMap()

	name, _ := poetry["name"].(string)
	version, _ := poetry["version"].(string)
	if name == "" || version == "" {
		return nil, errors.New("tool.poetry must declare name and version")
	}
	pkg := NewPackage(name, version)

	if deps, ok := poetry["dependencies"].(map[string]interface{}); ok {
		for _, depName := range sortedKeys(deps) {
			if normalizeName(depName) == "python" {
				if expr, ok := deps[depName].(string); ok {
					pkg.WithPythonVersions(expr)
				}
				continue
			}
			dep, err := parseProjectDependency(depName, deps[depName])
			if err != nil {
				return nil, err
			}
			pkg.AddDependency(dep)
		}
	}

	if extras, ok := poetry["extras"].(map[string]interface{}); ok {
		for _, extraName := range sortedKeys(extras) {
			targets, _ := extras[extraName].([]interface{})
			var extraDeps []Dependency
			for _, t := range targets {
				targetName, _ := t.(string)
				for _, d := range pkg.Requires() {
					if d.Name() == normalizeName(targetName) {
						extraDeps = append(extraDeps, d)
					}
				}
			}
			pkg.AddExtra(extraName, extraDeps...)
		}
	}
	return pkg, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseProjectDependency(name string, spec interface{}) (Dependency, error) {
	switch v := spec.(type) {
	case string:
		return NewDependency(name, v), nil
	case map[string]interface{}:
		var dep Dependency
		switch {
		case v["git"] != nil:
			url, _ := v["git"].(string)
			ref := firstString(v, "rev", "tag", "branch")
			sub, _ := v["subdirectory"].(string)
			dep = NewGitDependency(name, url, ref, sub)
		case v["path"] != nil:
			path, _ := v["path"].(string)
			if isArchivePath(path) {
				dep = NewFileDependency(name, path)
			} else {
				dep = NewDirectoryDependency(name, path)
			}
		case v["url"] != nil:
			url, _ := v["url"].(string)
			dep = NewURLDependency(name, url)
		default:
			expr, _ := v["version"].(string)
			if expr == "" {
				expr = "*"
			}
			dep = NewDependency(name, expr)
		}
		if m, ok := v["markers"].(string); ok {
			marker, err := markers.Parse(m)
			if err != nil {
				return Dependency{}, err
			}
			dep = dep.WithMarker(marker)
		}
		if py, ok := v["python"].(string); ok {
			set, err := ParseConstraint(py)
			if err != nil {
				return Dependency{}, err
			}
			dep = dep.WithPythonConstraint(set)
		}
		if raw, ok := v["extras"].([]interface{}); ok {
			extras := make([]string, 0, len(raw))
			for _, e := range raw {
				if s, ok := e.(string); ok {
					extras = append(extras, s)
				}
			}
			dep = dep.WithExtras(extras...)
		}
		if optional, _ := v["optional"].(bool); optional {
			dep = dep.AsOptional()
		}
		if pre, _ := v["allow-prereleases"].(bool); pre {
			dep = dep.WithPrereleases()
		}
		return dep, nil
	}
	return Dependency{}, errors.Errorf("dependency %s has an unrecognized specification", name)
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func isArchivePath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".whl") || strings.HasSuffix(lower, ".zip") ||
		strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// readCoreMetadata parses static core metadata: RFC 822 style headers
// with Name, Version, Requires-Python and Requires-Dist entries.
func readCoreMetadata(r io.Reader) (*Package, error) {
	var name, version, requiresPython string
	var requires []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			// Headers end at the first blank line; the body is the
			// package description.
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Name":
			name = value
		case "Version":
			version = value
		case "Requires-Python":
			requiresPython = value
		case "Requires-Dist":
			requires = append(requires, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if name == "" || version == "" {
		return nil, errors.New("metadata is missing Name or Version")
	}

	pkg := NewPackage(name, version)
	if requiresPython != "" {
		pkg.WithPythonVersions(requiresPython)
	}
	for _, req := range requires {
		dep, err := parseRequirement(req)
		if err != nil {
			return nil, err
		}
		pkg.AddDependency(dep)
	}
	return pkg, nil
}

// parseRequirement reads one requirement line of the form
//
//	name[extra1,extra2] (>=1.0,<2.0) ; python_version >= "3.6"
//	name>=1.0 ; extra == "feature"
func parseRequirement(req string) (Dependency, error) {
	spec, markerText, hasMarker := strings.Cut(req, ";")
	spec = strings.TrimSpace(spec)

	var extras []string
	if open := strings.IndexByte(spec, '['); open >= 0 {
		end := strings.IndexByte(spec, ']')
		if end < open {
			return Dependency{}, errors.Errorf("malformed requirement %q", req)
		}
		for _, e := range strings.Split(spec[open+1:end], ",") {
			if e = strings.TrimSpace(e); e != "" {
				extras = append(extras, e)
			}
		}
		spec = spec[:open] + spec[end+1:]
	}

	name := spec
	constraint := "*"
	if open := strings.IndexByte(spec, '('); open >= 0 {
		end := strings.LastIndexByte(spec, ')')
		if end < open {
			return Dependency{}, errors.Errorf("malformed requirement %q", req)
		}
		name = strings.TrimSpace(spec[:open])
		constraint = strings.TrimSpace(spec[open+1 : end])
	} else if i := strings.IndexAny(spec, "<>=!~"); i >= 0 {
		name = strings.TrimSpace(spec[:i])
		constraint = strings.TrimSpace(spec[i:])
	} else {
		name = strings.TrimSpace(spec)
	}
	if constraint == "" {
		constraint = "*"
	}

	set, err := ParseConstraint(constraint)
	if err != nil {
		return Dependency{}, errors.Wrapf(err, "malformed requirement %q", req)
	}
	dep := NewDependency(name, "*").WithConstraint(set)
	if len(extras) > 0 {
		dep = dep.WithExtras(extras...)
	}

	if hasMarker {
		marker, err := markers.Parse(strings.TrimSpace(markerText))
		if err != nil {
			return Dependency{}, errors.Wrapf(err, "malformed requirement %q", req)
		}
		dep = dep.WithMarker(marker)
		// A requirement gated on an extra is an optional requirement of
		// that extra.
		if inExtras := marker.Extras(); len(inExtras) > 0 {
			dep = dep.AsOptional(inExtras...)
		}
	}
	return dep, nil
}
