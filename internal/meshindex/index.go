// Package meshindex maps mesh files in a staged fixture to the single path a
// reference to them should resolve to.
package meshindex

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"fixtureprep/internal/scan"
)

// Extensions lists the mesh formats that participate in the index.
var Extensions = []string{".dae", ".stl", ".obj"}

// Key identifies a mesh by lowercased stem and lowercased extension
// (with the leading dot).
type Key struct {
	Stem string
	Ext  string
}

func (k Key) String() string { return k.Stem + k.Ext }

// Index is a read-only lookup from Key to a root-relative, forward-slash path.
// The zero value is an empty index.
type Index struct {
	paths map[Key]string
}

// Build walks root and indexes every .dae/.stl/.obj file. When two files share
// a key, the one with fewer path separators wins; at equal depth the first in
// walk order is kept.
func Build(root string) (Index, error) {
	paths := make(map[Key]string)
	err := scan.Walk(root, scan.Options{}, func(fv scan.FileVisit) error {
		if fv.IsDir {
			return nil
		}
		key, ok := KeyFor(fv.Path)
		if !ok {
			return nil
		}
		if prev, seen := paths[key]; seen && depth(fv.Path) >= depth(prev) {
			return nil
		}
		paths[key] = fv.Path
		return nil
	})
	if err != nil {
		return Index{}, fmt.Errorf("index meshes under %s: %w", root, err)
	}
	return Index{paths: paths}, nil
}

// New builds an index from an explicit key→path table.
func New(paths map[Key]string) Index {
	cp := make(map[Key]string, len(paths))
	for k, v := range paths {
		cp[k] = v
	}
	return Index{paths: cp}
}

// KeyFor returns the index key for a mesh path, or false when the file is not
// a recognized mesh.
func KeyFor(p string) (Key, bool) {
	stem, ext := SplitName(baseName(p))
	ext = strings.ToLower(ext)
	if !slices.Contains(Extensions, ext) {
		return Key{}, false
	}
	return Key{Stem: strings.ToLower(stem), Ext: ext}, true
}

// Lookup returns the indexed path for (stem, ext). Both are compared
// case-insensitively; ext must include the leading dot.
func (ix Index) Lookup(stem, ext string) (string, bool) {
	p, ok := ix.paths[Key{Stem: strings.ToLower(stem), Ext: strings.ToLower(ext)}]
	return p, ok
}

// Len reports the number of keys.
func (ix Index) Len() int { return len(ix.paths) }

// Keys returns all keys sorted by stem then extension.
func (ix Index) Keys() []Key {
	keys := make([]Key, 0, len(ix.paths))
	for k := range ix.paths {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Stem != keys[j].Stem {
			return keys[i].Stem < keys[j].Stem
		}
		return keys[i].Ext < keys[j].Ext
	})
	return keys
}

// SplitName splits a file name into stem and extension. A leading dot does
// not start an extension and neither does a trailing one, so ".dae" has no
// extension and "mesh." keeps its dot in the stem.
func SplitName(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i:]
}

// Stem returns the lowercased base name of a reference with directories and
// extension removed. Both '/' and '\' separate directories.
func Stem(ref string) string {
	stem, _ := SplitName(baseName(ref))
	return strings.ToLower(stem)
}

// baseName returns the last path element, treating backslashes as
// separators and skipping empty and "." elements. ".." is kept as a name.
func baseName(p string) string {
	parts := strings.Split(strings.ReplaceAll(p, `\`, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" && parts[i] != "." {
			return parts[i]
		}
	}
	return ""
}

func depth(rel string) int { return strings.Count(rel, "/") }
