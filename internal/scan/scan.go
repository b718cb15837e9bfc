package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileVisit carries per-entry metadata to user callbacks.
type FileVisit struct {
	// Root-relative path using forward slashes (e.g., "meshes/link1.dae").
	Path string
	// Absolute filesystem path.
	AbsPath string
	// True when the entry is a directory.
	IsDir bool
	// Lowercased extension (e.g., ".dae", ".urdf"); empty for dirs or no-ext files.
	Ext string
}

// Options tune a walk.
type Options struct {
	// Exclude holds doublestar patterns matched against the root-relative
	// path. Matching files are skipped; matching directories are pruned.
	Exclude []string
	// CaseSensitiveExt makes FilesWithExtensions compare extensions as given
	// instead of lowercasing both sides.
	CaseSensitiveExt bool
}

// VisitFunc is invoked for every visited entry. Returning an error stops the walk.
type VisitFunc func(f FileVisit) error

// Walk visits every entry under root in lexical order within each directory,
// which is the same as ordering by path components. The root itself is not
// reported. Unlike a best-effort index, read errors abort the walk.
func Walk(root string, opts Options, cb VisitFunc) error {
	for _, pat := range opts.Exclude {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("scan: invalid exclude pattern %q", pat)
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if excluded(opts.Exclude, rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		fv := FileVisit{Path: rel, AbsPath: path, IsDir: d.IsDir()}
		if !d.IsDir() {
			fv.Ext = strings.ToLower(filepath.Ext(rel))
		}
		return cb(fv)
	})
}

func excluded(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
