// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	flock "github.com/theckman/go-flock"
	shutil "github.com/termie/go-shutil"
)

// DirectOriginConfig configures the default direct-origin source.
type DirectOriginConfig struct {
	// CacheDir is where clones, snapshots and downloads land. Defaults
	// to a per-user directory under the OS temp dir.
	CacheDir string
	// Reader extracts metadata from trees and archives. Defaults to the
	// pyproject/core-metadata fallback reader.
	Reader MetadataReader
	// Client performs URL downloads. Defaults to http.DefaultClient.
	Client *http.Client

	Logger logrus.FieldLogger
}

// DirectOrigin resolves pinned dependencies by fetching their sources:
// git dependencies are cloned and checked out, file and directory
// dependencies are read in place, URL dependencies are downloaded. The
// cache directory is guarded by a file lock so concurrent processes do
// not corrupt each other's clones.
type DirectOrigin struct {
	cacheDir string
	reader   MetadataReader
	client   *http.Client
	log      logrus.FieldLogger
	lock     *flock.Flock
}

// NewDirectOrigin builds the default direct-origin source.
func NewDirectOrigin(cfg DirectOriginConfig) *DirectOrigin {
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "poetry-solver-sources")
	}
	reader := cfg.Reader
	if reader == nil {
		reader = NewMetadataReader()
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DirectOrigin{
		cacheDir: cacheDir,
		reader:   reader,
		client:   client,
		log:      log,
		lock:     flock.NewFlock(filepath.Join(cacheDir, "sources.lock")),
	}
}

// withLock runs fn while holding the cache directory lock.
func (o *DirectOrigin) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(o.cacheDir, 0o777); err != nil {
		return errors.Wrap(err, "failed to create source cache directory")
	}
	for {
		locked, err := o.lock.TryLock()
		if err != nil {
			return errors.Wrap(err, "failed to lock source cache")
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	defer o.lock.Unlock()
	return fn()
}

// FromGit clones (or updates) the remote, checks out the requested ref
// and reads the package metadata at that ref. The returned package
// records the resolved commit id.
func (o *DirectOrigin) FromGit(ctx context.Context, dep Dependency) (*Package, error) {
	var pkg *Package
	err := o.withLock(ctx, func() error {
		dest := filepath.Join(o.cacheDir, "git", sanitizePath(dep.URL()))

		repo, err := vcs.NewGitRepo(dep.URL(), dest)
		if err != nil {
			return errors.Wrapf(err, "unable to set up repository %s", dep.URL())
		}

		if repo.CheckLocal() {
			if err := repo.Update(); err != nil {
				return errors.Wrapf(err, "unable to update repository %s", dep.URL())
			}
		} else {
			o.log.WithField("url", dep.URL()).Debug("cloning repository")
			if err := repo.Get(); err != nil {
				// A broken local copy can make clones fail; discard it
				// and clone from scratch once.
				os.RemoveAll(dest)
				if err := repo.Get(); err != nil {
					return errors.Wrapf(err, "unable to clone repository %s", dep.URL())
				}
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		reference := dep.Reference()
		if reference != "" {
			if err := repo.UpdateVersion(reference); err != nil {
				return errors.Wrapf(err, "unable to check out %s of %s", reference, dep.URL())
			}
		} else if reference, err = repo.Current(); err != nil {
			return errors.Wrapf(err, "unable to determine current ref of %s", dep.URL())
		}

		commit, err := repo.Version()
		if err != nil {
			return errors.Wrapf(err, "unable to resolve commit id of %s", dep.URL())
		}

		srcDir := dest
		if dep.Subdirectory() != "" {
			srcDir = filepath.Join(dest, dep.Subdirectory())
		}
		pkg, err = o.reader.ReadDirectory(srcDir)
		if err != nil {
			return err
		}
		pkg.WithSource(KindGit, dep.URL(), reference, commit, "", dep.Subdirectory())
		return nil
	})
	return pkg, err
}

// FromFile reads metadata from a local distribution archive.
func (o *DirectOrigin) FromFile(_ context.Context, dep Dependency) (*Package, error) {
	path, err := filepath.Abs(dep.Path())
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &PackageInfoError{Path: dep.Path(), Reason: err}
	}
	pkg, err := o.reader.ReadArchive(path)
	if err != nil {
		return nil, err
	}
	pkg.WithSource(KindFile, "", "", "", dep.Path(), "")
	return pkg, nil
}

// FromDirectory snapshots a local source tree into the cache and reads
// its metadata there, so edits made mid-solve cannot shift the result.
func (o *DirectOrigin) FromDirectory(ctx context.Context, dep Dependency) (*Package, error) {
	var pkg *Package
	err := o.withLock(ctx, func() error {
		path, err := filepath.Abs(dep.Path())
		if err != nil {
			return err
		}
		if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
			return &PackageInfoError{Path: dep.Path(), Reason: errors.New("not a directory")}
		}

		snapshot := filepath.Join(o.cacheDir, "dirs", sanitizePath(path))
		os.RemoveAll(snapshot)
		if err := shutil.CopyTree(path, snapshot, nil); err != nil {
			return errors.Wrapf(err, "unable to snapshot %s", dep.Path())
		}

		srcDir := snapshot
		if dep.Subdirectory() != "" {
			srcDir = filepath.Join(snapshot, dep.Subdirectory())
		}
		pkg, err = o.reader.ReadDirectory(srcDir)
		if err != nil {
			return err
		}
		pkg.WithSource(KindDirectory, "", "", "", dep.Path(), dep.Subdirectory())
		return nil
	})
	return pkg, err
}

// FromURL downloads the archive and treats it as a file dependency.
func (o *DirectOrigin) FromURL(ctx context.Context, dep Dependency) (*Package, error) {
	var pkg *Package
	err := o.withLock(ctx, func() error {
		name, err := archiveFileName(dep.URL())
		if err != nil {
			return err
		}
		dest := filepath.Join(o.cacheDir, "url", sanitizePath(dep.URL()), name)

		if _, err := os.Stat(dest); err != nil {
			if err := o.download(ctx, dep.URL(), dest); err != nil {
				return err
			}
		}

		pkg, err = o.reader.ReadArchive(dest)
		if err != nil {
			return err
		}
		pkg.WithSource(KindURL, dep.URL(), "", "", "", "")
		return nil
	})
	return pkg, err
}

func (o *DirectOrigin) download(ctx context.Context, rawURL, dest string) error {
	o.log.WithField("url", rawURL).Debug("downloading archive")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "unable to download %s", rawURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unable to download %s: %s", rawURL, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "unable to download %s", rawURL)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func archiveFileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "malformed url %s", rawURL)
	}
	name := filepath.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", errors.Errorf("url %s does not name an archive", rawURL)
	}
	return name, nil
}

// sanitizePath flattens a URL or absolute path into a single cache
// directory component.
func sanitizePath(s string) string {
	replacer := strings.NewReplacer(
		"://", "-",
		":", "-",
		"/", "-",
		"\\", "-",
		"@", "-",
	)
	return strings.Trim(replacer.Replace(s), "-")
}
