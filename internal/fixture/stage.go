package fixture

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fixtureprep/internal/safeio"
)

// UnityNestedDescription is a duplicate URDF shipped inside the unity export.
// It is dropped before indexing.
const UnityNestedDescription = "miro_robot_unity_description/miro_robot.urdf"

// Stage replaces dst with a recursive copy of src. An existing dst is always
// replaced; clear only removes it before the parent is created.
func Stage(src, dst string, clear bool) error {
	if clear {
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("clear %s: %w", dst, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	return copyTree(src, dst)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		// Symlinks are followed, so the staged tree holds plain files and
		// directories. WalkDir does not descend into linked directories.
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() && d.Type()&fs.ModeSymlink != 0 {
			return copyTree(path, target)
		}
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// RemoveUnityNested deletes the nested unity description if present and
// reports whether it existed. Running it twice is harmless.
func RemoveUnityNested(fsys *safeio.SafeFS) (bool, error) {
	removed, err := fsys.SafeRemove(UnityNestedDescription)
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", UnityNestedDescription, err)
	}
	return removed, nil
}

// overlaps reports whether either path contains the other.
func overlaps(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	return a == b || within(a, b) || within(b, a)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isDir(p string) (bool, error) {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
