package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/djherbis/times"
	"github.com/mattn/go-shellwords"
)

// ErrDestinationExists is returned when the target file is already present
// and overwriting is disabled.
var ErrDestinationExists = errors.New("destination already exists")

// ErrSameFile is returned when source and destination are the same file.
var ErrSameFile = errors.New("source and destination are the same file")

// transferer moves a single file into destDir. It returns the status to
// record for the file ("copied", "moved" or "filtered"). Callers check for an
// existing destination first; overwrite only guards against a file that
// appears in between.
type transferer interface {
	transfer(src, destDir string, overwrite bool) (string, error)
}

// newTransferer picks the strategy for a run from the configuration.
func newTransferer(cfg config) (transferer, error) {
	switch {
	case cfg.Exec != "":
		argv, err := shellwords.Parse(cfg.Exec)
		if err != nil {
			return nil, fmt.Errorf("failed to parse exec command %q: %w", cfg.Exec, err)
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("exec command is empty")
		}
		return commandTransferer{argv: argv}, nil
	case cfg.Move:
		return moveTransferer{}, nil
	default:
		return copyTransferer{verify: cfg.Verify}, nil
	}
}

type copyTransferer struct {
	verify bool
}

func (c copyTransferer) transfer(src, destDir string, overwrite bool) (string, error) {
	dst := filepath.Join(destDir, filepath.Base(src))
	if err := copyFile(src, dst, overwrite); err != nil {
		if errors.Is(err, ErrDestinationExists) {
			return "conflict", err
		}
		return "failed", err
	}

	if c.verify {
		if err := verifyCopy(src, dst); err != nil {
			return "failed", err
		}
	}
	return "copied", nil
}

type moveTransferer struct{}

func (moveTransferer) transfer(src, destDir string, overwrite bool) (string, error) {
	dst := filepath.Join(destDir, filepath.Base(src))
	if !overwrite && exists(dst) {
		return "conflict", fmt.Errorf("%s: %w", dst, ErrDestinationExists)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return "moved", nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return "failed", fmt.Errorf("failed to move %s: %w", src, err)
	}

	// Different filesystems, fall back to copy and delete
	if err := copyFile(src, dst, overwrite); err != nil {
		if errors.Is(err, ErrDestinationExists) {
			return "conflict", err
		}
		return "failed", err
	}
	if err := os.Remove(src); err != nil {
		return "failed", fmt.Errorf("copied to %s but failed to remove source: %w", dst, err)
	}
	return "moved", nil
}

// commandTransferer hands each file to an external program as
// "argv... SRC DESTDIR".
type commandTransferer struct {
	argv []string
}

func (c commandTransferer) transfer(src, destDir string, _ bool) (string, error) {
	args := append(append([]string{}, c.argv[1:]...), src, destDir)
	cmd := exec.Command(c.argv[0], args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "failed", fmt.Errorf("command %s exited with status %d: %s",
				c.argv[0], exitErr.ExitCode(), strings.TrimSpace(output.String()))
		}
		return "failed", fmt.Errorf("failed to run %s: %w", c.argv[0], err)
	}
	return "filtered", nil
}

// copyFile copies src to dst keeping permission bits and access and
// modification times. Without overwrite an existing dst is left untouched.
func copyFile(src, dst string, overwrite bool) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	// Opening dst with O_TRUNC would empty src before it is read
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(info, dstInfo) {
		return fmt.Errorf("%s: %w", dst, ErrSameFile)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	destFile, err := os.OpenFile(dst, flags, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
		}
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := destFile.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return preserveMetadata(src, dst, info)
}

func preserveMetadata(src, dst string, info os.FileInfo) error {
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", dst, err)
	}

	atime := info.ModTime()
	if ts, err := times.Stat(src); err == nil {
		atime = ts.AccessTime()
	}
	if err := os.Chtimes(dst, atime, info.ModTime()); err != nil {
		return fmt.Errorf("failed to set times on %s: %w", dst, err)
	}
	return nil
}

func verifyCopy(src, dst string) error {
	srcSum, err := calculateXXHash(src)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", src, err)
	}
	dstSum, err := calculateXXHash(dst)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", dst, err)
	}
	if srcSum != dstSum {
		return fmt.Errorf("checksum mismatch after copying %s to %s (%016x != %016x)", src, dst, srcSum, dstSum)
	}
	return nil
}
