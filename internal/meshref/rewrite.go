// Package meshref repairs filename="..." mesh references in description files
// so they point at meshes present in a staged fixture.
package meshref

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"fixtureprep/internal/meshindex"
)

// refPattern matches the only reference shape that is rewritten. Single
// quotes, escapes and empty values are deliberately not matched.
var refPattern = regexp.MustCompile(`filename="([^"]+)"`)

const resolverCacheSize = 1024

var ErrNotUTF8 = errors.New("description file is not valid UTF-8")

// Outcome counts matched references in one file or across a run.
type Outcome struct {
	Updated    int `json:"updated"`
	Unresolved int `json:"unresolved"`
}

// Add accumulates o2 into o.
func (o *Outcome) Add(o2 Outcome) {
	o.Updated += o2.Updated
	o.Unresolved += o2.Unresolved
}

// FileStore is the subset of a rooted filesystem the rewriter needs.
type FileStore interface {
	SafeReadFile(path string) ([]byte, error)
	SafeWriteFile(path string, data []byte) error
}

type resolution struct {
	path string
	ok   bool
}

// Resolver resolves references against one index for one format. Results are
// memoized by stem; the cache is safe for concurrent use.
type Resolver struct {
	index    meshindex.Index
	priority []string
	cache    *lru.Cache[string, resolution]
}

// NewResolver binds an index and a format.
func NewResolver(idx meshindex.Index, f Format) (*Resolver, error) {
	priority := f.Priority()
	if priority == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
	cache, err := lru.New[string, resolution](resolverCacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{index: idx, priority: priority, cache: cache}, nil
}

// Resolve maps a referenced filename to an indexed path. The reference's own
// extension is ignored; only its stem and the format's priority order matter.
func (r *Resolver) Resolve(ref string) (string, bool) {
	stem := meshindex.Stem(ref)
	if res, ok := r.cache.Get(stem); ok {
		return res.path, res.ok
	}
	var res resolution
	for _, ext := range r.priority {
		if p, ok := r.index.Lookup(stem, ext); ok {
			res = resolution{path: p, ok: true}
			break
		}
	}
	r.cache.Add(stem, res)
	return res.path, res.ok
}

// Rewrite substitutes every resolvable reference in text. Unresolved
// occurrences are left byte-for-byte unchanged.
func (r *Resolver) Rewrite(text string) (string, Outcome) {
	var out Outcome
	rewritten := refPattern.ReplaceAllStringFunc(text, func(m string) string {
		ref := refPattern.FindStringSubmatch(m)[1]
		p, ok := r.Resolve(ref)
		if !ok {
			out.Unresolved++
			return m
		}
		out.Updated++
		return `filename="` + p + `"`
	})
	return rewritten, out
}

// RewriteFile rewrites one description file in place. The file is written
// back even when nothing matched. Line endings are left as they are.
func (r *Resolver) RewriteFile(fsys FileStore, rel string) (Outcome, error) {
	b, err := fsys.SafeReadFile(rel)
	if err != nil {
		return Outcome{}, fmt.Errorf("read %s: %w", rel, err)
	}
	if !utf8.Valid(b) {
		return Outcome{}, fmt.Errorf("read %s: %w", rel, ErrNotUTF8)
	}
	text, out := r.Rewrite(string(b))
	if err := fsys.SafeWriteFile(rel, []byte(text)); err != nil {
		return Outcome{}, fmt.Errorf("write %s: %w", rel, err)
	}
	return out, nil
}

// Rewrite is a convenience wrapper for a single text.
func Rewrite(text string, idx meshindex.Index, f Format) (string, Outcome, error) {
	r, err := NewResolver(idx, f)
	if err != nil {
		return "", Outcome{}, err
	}
	s, out := r.Rewrite(text)
	return s, out, nil
}
