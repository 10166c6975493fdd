// Package project finds the directory the recorder and package manager must
// run from.
package project

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// ResolveRoot returns cwd when it holds both src and package.json, its
// parent when the parent holds src, and cwd otherwise. Any kind of entry
// named src counts, including a file or a symlink. The GUI may be
// launched from the project itself or from a nested directory such as gui/.
func ResolveRoot(fsys afero.Fs, cwd string) string {
	if exists(fsys, filepath.Join(cwd, "src")) && exists(fsys, filepath.Join(cwd, "package.json")) {
		return cwd
	}
	parent := filepath.Dir(cwd)
	if parent != cwd && exists(fsys, filepath.Join(parent, "src")) {
		return parent
	}
	return cwd
}

func exists(fsys afero.Fs, p string) bool {
	ok, err := afero.Exists(fsys, p)
	return err == nil && ok
}

