package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// skippedDirs are macOS system folders that never hold pictures worth
// archiving. They are not descended into and do not count towards maxDepth.
var skippedDirs = map[string]bool{
	".Spotlight-V100": true,
	".fseventsd":      true,
	".Trashes":        true,
}

// visitFunc is called for every regular file found by walkSource.
type visitFunc func(path string, info fs.FileInfo)

// walkErrFunc receives paths that could not be read during the walk.
type walkErrFunc func(path string, err error)

// walkSource walks root top-down, handing each directory's files to visit
// before descending into its subdirectories. With maxDepth > 0 the walk stops
// once maxDepth directories have been yielded. That counts directories
// visited, not nesting levels, so siblings use up the same budget as children.
func walkSource(root string, maxDepth int, visit visitFunc, onErr walkErrFunc) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source does not exist: %w", err)
		}
		return fmt.Errorf("error accessing source: %w", err)
	}

	if !info.IsDir() {
		if info.Mode().IsRegular() {
			visit(root, info)
		}
		return nil
	}

	yielded := 0
	var walkDir func(dir string) bool
	walkDir = func(dir string) bool {
		if maxDepth > 0 && yielded >= maxDepth {
			return false
		}
		yielded++

		entries, err := os.ReadDir(dir)
		if err != nil {
			onErr(dir, fmt.Errorf("error reading directory: %w", err))
			// ReadDir returns what it could read before failing
		}

		var subdirs []string
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				if !skippedDirs[entry.Name()] {
					subdirs = append(subdirs, path)
				}
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}
			fi, err := entry.Info()
			if err != nil {
				onErr(path, fmt.Errorf("error accessing file: %w", err))
				continue
			}
			visit(path, fi)
		}

		for _, sub := range subdirs {
			if !walkDir(sub) {
				return false
			}
		}
		return true
	}

	walkDir(root)
	return nil
}

// destinationDir returns <destRoot>/<YYYY>/<MM> for the given time.
func destinationDir(destRoot string, taken time.Time) string {
	return filepath.Join(destRoot, taken.Format("2006"), taken.Format("01"))
}

// dirCache remembers destination folders already created during a run.
type dirCache map[string]bool

// ensure creates dir and any missing parents. An existing directory is not
// an error.
func (c dirCache) ensure(dir string) error {
	if c[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	c[dir] = true
	return nil
}

// exists reports whether destPath is known to exist. Errors other than
// not-exist are left for the transfer to run into and report.
func exists(destPath string) bool {
	_, err := os.Lstat(destPath)
	return err == nil
}

// sameFile reports whether both paths name the same file on disk.
func sameFile(a, b string) bool {
	aInfo, err := os.Stat(a)
	if err != nil {
		return false
	}
	bInfo, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(aInfo, bInfo)
}

func calculateXXHash(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	hash := xxhash.New()
	if _, err := io.Copy(hash, file); err != nil {
		return 0, err
	}

	return hash.Sum64(), nil
}
