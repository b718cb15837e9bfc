package scan

import (
	"path"
	"strings"
)

// FilesWithExtensions walks root and returns root-relative paths of regular
// files whose extensions match any entry in exts. Extensions are
// case-insensitive unless opts.CaseSensitiveExt is set, and may be provided
// with or without a leading dot. Results come back in walk order.
func FilesWithExtensions(root string, exts []string, opts Options) ([]string, error) {
	allowed := normalizeExts(exts, !opts.CaseSensitiveExt)
	if len(allowed) == 0 {
		return nil, nil
	}

	var files []string
	err := Walk(root, opts, func(fv FileVisit) error {
		if fv.IsDir {
			return nil
		}
		if !matchExt(allowed, path.Base(fv.Path), fv.Ext, opts.CaseSensitiveExt) {
			return nil
		}
		files = append(files, fv.Path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// matchExt reports whether a file name carries one of the allowed
// extensions. In case-sensitive mode a name matches on its literal suffix,
// so ".urdf" on its own counts.
func matchExt(allowed map[string]struct{}, name, lowerExt string, caseSensitive bool) bool {
	if !caseSensitive {
		_, ok := allowed[lowerExt]
		return ok
	}
	for ext := range allowed {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func normalizeExts(exts []string, fold bool) map[string]struct{} {
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if fold {
			ext = strings.ToLower(ext)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return allowed
}
