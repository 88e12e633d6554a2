package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFile is one enumerated file, with its path relative to the walk
// root so callers can mirror the layout on the remote side.
type LocalFile struct {
	Path    string
	RelPath string
	Size    int64
}

// Walk enumerates regular files under root, descending into
// subdirectories only when recursive is set, and keeps files whose base
// name matches the patterns.
func Walk(root string, recursive bool, patterns []string) ([]LocalFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read source dir %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", root)
	}

	var files []LocalFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !MatchesAny(d.Name(), patterns) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, LocalFile{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Size:    fi.Size(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return files, nil
}
