package vos

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

// hasExecBit reports whether any of the owner, group or other execute bits
// is set on a regular file.
func hasExecBit(mode fs.FileMode) bool {
	return mode.IsRegular() && mode&0111 != 0
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if !hasExecBit(d.Mode()) {
		return fs.ErrPermission
	}
	if err := unix.Access(file, unix.X_OK); err != nil {
		return fs.ErrPermission
	}
	return nil
}

// SplitPath splits a PATH style list. An empty element means the working
// directory.
func SplitPath(pathList string) []string {
	if pathList == "" {
		return nil
	}
	dirs := filepath.SplitList(pathList)
	for i, dir := range dirs {
		if dir == "" {
			dirs[i] = "."
		}
	}
	return dirs
}

// LookPath searches for an executable named file in the directories of
// pathList. If file contains a slash, it is tried directly and the PATH is
// not consulted. Relative names are resolved against dir.
func LookPath(pathList, dir, file string) (string, error) {
	if strings.Contains(file, "/") {
		if err := findExecutable(resolve(dir, file)); err != nil {
			return "", err
		}
		return file, nil
	}
	for _, pathDir := range SplitPath(pathList) {
		path := filepath.Join(pathDir, file)
		if err := findExecutable(resolve(dir, path)); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// EachExecutable calls f with the name of every regular file in the
// directories of pathList that has an execute bit set. Directories are
// visited in order; names found in more than one directory are reported
// once per directory. Unreadable directories are skipped.
func EachExecutable(pathList, dir string, f func(name string)) {
	for _, pathDir := range SplitPath(pathList) {
		pathDir = resolve(dir, pathDir)
		entries, err := os.ReadDir(pathDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			// Stat rather than use the entry's type so symlinks are followed.
			info, err := os.Stat(filepath.Join(pathDir, entry.Name()))
			if err != nil || !hasExecBit(info.Mode()) {
				continue
			}
			f(entry.Name())
		}
	}
}

// resolve makes path absolute relative to dir.
func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

// Resolve makes path absolute relative to dir, cleaning the result.
func Resolve(dir, path string) string {
	return filepath.Clean(resolve(dir, path))
}
