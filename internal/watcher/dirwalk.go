package watcher

import (
	"os"
	"path/filepath"
)

func osStat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// listDirs returns the absolute paths of dir's direct subdirectories.
// A missing dir is not an error: a collection root that hasn't been
// created yet on disk simply has nothing to watch until it is.
func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}

	return dirs, nil
}
