// Copyright 2026 The Poetry Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/python-poetry/poetry-sub004/markers"
	"github.com/python-poetry/poetry-sub004/versions"
)

// BoltSourceCache is a DirectOriginSource backed by a persistent BoltDB
// file. Git and URL lookups are expensive (clone, checkout, download), so
// their results are stored across runs. Stored values are timestamped and
// the epoch field limits the age of returned values: symbolic git refs
// move, so entries older than the epoch are re-fetched. File and
// directory dependencies are local and cheap; they pass through.
//
// Layout:
//
//	Bucket: "git:<url>@<ref>#<subdirectory>" or "url:<url>"
//	Sub-Bucket: "pkg:<timestamp>"
//	Keys/Values: package fields
//	Sub-Bucket: "req" (sequence-numbered dependency buckets)
//	Sub-Bucket: "ext:<extra>" (sequence-numbered dependency buckets)
type BoltSourceCache struct {
	db     *bolt.DB
	epoch  int64 // getters will not return values older than this unix timestamp
	source DirectOriginSource
	log    logrus.FieldLogger
}

// NewBoltSourceCache opens (creating if needed) the BoltDB file at path
// and wraps source with it.
func NewBoltSourceCache(path string, epoch int64, source DirectOriginSource, logger logrus.FieldLogger) (*BoltSourceCache, error) {
	dir := filepath.Dir(path)
	if fi, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, os.ModeDir|os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "failed to create metadata cache directory: %s", dir)
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to check metadata cache directory: %s", dir)
	} else if !fi.IsDir() {
		return nil, errors.Errorf("metadata cache path is not a directory: %s", dir)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BoltSourceCache{db: db, epoch: epoch, source: source, log: logger}, nil
}

// Close releases all database resources.
// Must not be called concurrently with any other methods.
func (c *BoltSourceCache) Close() error {
	return errors.Wrapf(c.db.Close(), "error closing Bolt database %q", c.db.String())
}

// FromGit answers from the cache when a fresh entry exists, otherwise
// fetches through the underlying source and stores the result.
func (c *BoltSourceCache) FromGit(ctx context.Context, dep Dependency) (*Package, error) {
	key := fmt.Sprintf("git:%s@%s#%s", dep.URL(), dep.Reference(), dep.Subdirectory())
	return c.cached(ctx, key, dep, c.source.FromGit)
}

// FromURL answers from the cache when a fresh entry exists, otherwise
// downloads through the underlying source and stores the result.
func (c *BoltSourceCache) FromURL(ctx context.Context, dep Dependency) (*Package, error) {
	return c.cached(ctx, "url:"+dep.URL(), dep, c.source.FromURL)
}

// FromFile passes through; local archives are cheap to re-read.
func (c *BoltSourceCache) FromFile(ctx context.Context, dep Dependency) (*Package, error) {
	return c.source.FromFile(ctx, dep)
}

// FromDirectory passes through; local trees change between runs.
func (c *BoltSourceCache) FromDirectory(ctx context.Context, dep Dependency) (*Package, error) {
	return c.source.FromDirectory(ctx, dep)
}

func (c *BoltSourceCache) cached(ctx context.Context, key string, dep Dependency, fetch func(context.Context, Dependency) (*Package, error)) (*Package, error) {
	var pkg *Package
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(key))
		if b == nil {
			return nil
		}
		pb := cacheFindLatestValid(b, "pkg:", c.epoch)
		if pb == nil {
			return nil
		}
		var err error
		pkg, err = cacheGetPackage(pb)
		return err
	})
	if err != nil {
		c.log.WithField("source", key).Warnf("failed to read metadata cache: %v", err)
	}
	if pkg != nil {
		return pkg, nil
	}

	pkg, err = fetch(ctx, dep)
	if err != nil {
		return nil, err
	}
	if err := c.updateBucket(key, func(b *bolt.Bucket) error {
		if err := cachePrefixDelete(b, "pkg:"); err != nil {
			return err
		}
		pb, err := b.CreateBucket(cacheTimestampedKey("pkg:", time.Now()))
		if err != nil {
			return err
		}
		return cachePutPackage(pb, pkg)
	}); err != nil {
		c.log.WithField("source", key).Warnf("failed to update metadata cache: %v", err)
	}
	return pkg, nil
}

// updateBucket executes updates in the named bucket, creating it first if
// necessary.
func (c *BoltSourceCache) updateBucket(name string, fn func(b *bolt.Bucket) error) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return errors.Wrapf(err, "failed to create bucket: %s", name)
		}
		return fn(b)
	})
}

func cachePutPackage(b *bolt.Bucket, pkg *Package) error {
	if err := cachePutString(b, "nm", pkg.Name()); err != nil {
		return err
	}
	if err := cachePutString(b, "vr", pkg.Version().String()); err != nil {
		return err
	}
	if err := cachePutString(b, "py", pkg.PythonVersions()); err != nil {
		return err
	}
	if err := b.Put([]byte("kd"), []byte{byte(pkg.Kind())}); err != nil {
		return err
	}
	for k, v := range map[string]string{
		"url": pkg.URL(),
		"ref": pkg.Reference(),
		"rrf": pkg.ResolvedReference(),
		"pth": pkg.Path(),
		"sub": pkg.Subdirectory(),
	} {
		if err := cachePutString(b, k, v); err != nil {
			return err
		}
	}

	if len(pkg.Requires()) > 0 {
		rb, err := b.CreateBucket([]byte("req"))
		if err != nil {
			return err
		}
		if err := cachePutDependencies(rb, pkg.Requires()); err != nil {
			return errors.Wrap(err, "failed to put requirements")
		}
	}
	for extra, deps := range pkg.Extras() {
		eb, err := b.CreateBucket([]byte("ext:" + extra))
		if err != nil {
			return err
		}
		if err := cachePutDependencies(eb, deps); err != nil {
			return errors.Wrapf(err, "failed to put extra %s", extra)
		}
	}
	return nil
}

func cacheGetPackage(b *bolt.Bucket) (*Package, error) {
	name := string(b.Get([]byte("nm")))
	version := string(b.Get([]byte("vr")))
	if name == "" || version == "" {
		return nil, errors.New("cached package is missing name or version")
	}
	pkg := NewPackage(name, version)
	if py := string(b.Get([]byte("py"))); py != "" {
		pkg.WithPythonVersions(py)
	}
	var kind Kind
	if kd := b.Get([]byte("kd")); len(kd) == 1 {
		kind = Kind(kd[0])
	}
	pkg.WithSource(kind,
		string(b.Get([]byte("url"))),
		string(b.Get([]byte("ref"))),
		string(b.Get([]byte("rrf"))),
		string(b.Get([]byte("pth"))),
		string(b.Get([]byte("sub"))))

	if rb := b.Bucket([]byte("req")); rb != nil {
		deps, err := cacheGetDependencies(rb)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			pkg.AddDependency(dep)
		}
	}
	err := b.ForEach(func(k, _ []byte) error {
		if !bytes.HasPrefix(k, []byte("ext:")) {
			return nil
		}
		deps, err := cacheGetDependencies(b.Bucket(k))
		if err != nil {
			return err
		}
		pkg.AddExtra(string(k[len("ext:"):]), deps...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func cachePutDependencies(b *bolt.Bucket, deps []Dependency) error {
	for i, dep := range deps {
		var k [8]byte
		binary.BigEndian.PutUint64(k[:], uint64(i))
		db, err := b.CreateBucket(k[:])
		if err != nil {
			return err
		}
		if err := cachePutDependency(db, dep); err != nil {
			return err
		}
	}
	return nil
}

func cacheGetDependencies(b *bolt.Bucket) ([]Dependency, error) {
	var deps []Dependency
	err := b.ForEach(func(k, _ []byte) error {
		dep, err := cacheGetDependency(b.Bucket(k))
		if err != nil {
			return err
		}
		deps = append(deps, dep)
		return nil
	})
	return deps, err
}

func cachePutDependency(b *bolt.Bucket, dep Dependency) error {
	fields := map[string]string{
		"nm":  dep.Name(),
		"cs":  dep.Constraint().String(),
		"pv":  dep.PythonConstraint().String(),
		"ex":  strings.Join(dep.Extras(), ","),
		"ox":  strings.Join(dep.InExtras(), ","),
		"url": dep.URL(),
		"ref": dep.Reference(),
		"rrf": dep.ResolvedReference(),
		"pth": dep.Path(),
		"sub": dep.Subdirectory(),
		"gr":  dep.Group(),
	}
	if !dep.Marker().IsAny() {
		fields["mk"] = dep.Marker().String()
	}
	if dep.IsOptional() {
		fields["op"] = "1"
	}
	if dep.AllowsPrereleases() {
		fields["pr"] = "1"
	}
	for k, v := range fields {
		if err := cachePutString(b, k, v); err != nil {
			return err
		}
	}
	return b.Put([]byte("kd"), []byte{byte(dep.Kind())})
}

func cacheGetDependency(b *bolt.Bucket) (Dependency, error) {
	name := string(b.Get([]byte("nm")))
	if name == "" {
		return Dependency{}, errors.New("cached dependency is missing a name")
	}

	var dep Dependency
	var kind Kind
	if kd := b.Get([]byte("kd")); len(kd) == 1 {
		kind = Kind(kd[0])
	}
	switch kind {
	case KindGit:
		dep = NewGitDependency(name, string(b.Get([]byte("url"))),
			string(b.Get([]byte("ref"))), string(b.Get([]byte("sub"))))
		if rrf := string(b.Get([]byte("rrf"))); rrf != "" {
			dep = dep.WithResolvedReference("", rrf)
		}
	case KindFile:
		dep = NewFileDependency(name, string(b.Get([]byte("pth"))))
	case KindDirectory:
		dep = NewDirectoryDependency(name, string(b.Get([]byte("pth"))))
	case KindURL:
		dep = NewURLDependency(name, string(b.Get([]byte("url"))))
	default:
		dep = NewDependency(name, "*")
	}

	if cs := string(b.Get([]byte("cs"))); cs != "" {
		set, err := versions.Parse(cs)
		if err != nil {
			return Dependency{}, errors.Wrapf(err, "cached constraint for %s", name)
		}
		dep = dep.WithConstraint(set)
	}
	if pv := string(b.Get([]byte("pv"))); pv != "" {
		set, err := versions.Parse(pv)
		if err != nil {
			return Dependency{}, errors.Wrapf(err, "cached python constraint for %s", name)
		}
		dep = dep.WithPythonConstraint(set)
	}
	if mk := string(b.Get([]byte("mk"))); mk != "" {
		marker, err := markers.Parse(mk)
		if err != nil {
			return Dependency{}, errors.Wrapf(err, "cached marker for %s", name)
		}
		dep = dep.WithMarker(marker)
	}
	if ex := string(b.Get([]byte("ex"))); ex != "" {
		dep = dep.WithExtras(splitString(ex, ",")...)
	}
	if string(b.Get([]byte("op"))) == "1" {
		dep = dep.AsOptional(splitString(string(b.Get([]byte("ox"))), ",")...)
	}
	if string(b.Get([]byte("pr"))) == "1" {
		dep = dep.WithPrereleases()
	}
	if gr := string(b.Get([]byte("gr"))); gr != "" {
		dep = dep.WithGroup(gr)
	}
	return dep, nil
}

func cachePutString(b *bolt.Bucket, key, value string) error {
	if value == "" {
		return nil
	}
	return b.Put([]byte(key), []byte(value))
}

// cacheTimestampedKey returns a prefixed key with a trailing timestamp.
func cacheTimestampedKey(pre string, t time.Time) []byte {
	b := make([]byte, len(pre)+8)
	copy(b, pre)
	binary.BigEndian.PutUint64(b[len(pre):], uint64(t.Unix()))
	return b
}

// cachePrefixDelete prefix scans and deletes each bucket.
func cachePrefixDelete(b *bolt.Bucket, pre string) error {
	c := b.Cursor()
	p := []byte(pre)
	for k, _ := c.Seek(p); bytes.HasPrefix(k, p); k, _ = c.Next() {
		if err := b.DeleteBucket(k); err != nil {
			return errors.Wrapf(err, "failed to delete bucket: %s", k)
		}
	}
	return nil
}

// cacheFindLatestValid prefix scans for the latest bucket which is
// timestamped >= epoch, or returns nil if none exists.
func cacheFindLatestValid(b *bolt.Bucket, pre string, epoch int64) *bolt.Bucket {
	c := b.Cursor()
	p := []byte(pre)
	var latest []byte
	for k, _ := c.Seek(p); bytes.HasPrefix(k, p); k, _ = c.Next() {
		latest = k
	}
	if latest == nil {
		return nil
	}
	ts := latest[len(pre):]
	if len(ts) != 8 || int64(binary.BigEndian.Uint64(ts)) < epoch {
		return nil
	}
	return b.Bucket(latest)
}

// splitString is strings.Split with empty mapped to nil.
func splitString(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
