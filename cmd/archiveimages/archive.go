package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FileInfo represents information about each image being archived
type FileInfo struct {
	SourceName string
	SourceDir  string
	DestDir    string
	TakenAt    time.Time
	Size       int64
	FileType   FileType
	Status     string
}

// FileError records a failure for a single path. It never stops a run.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// archiveResult is the outcome of a run over all source roots.
type archiveResult struct {
	Transferred int
	Errors      []FileError
	Files       []FileInfo
}

// archiver walks source trees and files each image under DEST/YYYY/MM.
type archiver struct {
	cfg      config
	log      zerolog.Logger
	resolver *timestampResolver
	transfer transferer
	dirs     dirCache
}

func newArchiver(cfg config, log zerolog.Logger) (*archiver, error) {
	t, err := newTransferer(cfg)
	if err != nil {
		return nil, err
	}
	return &archiver{
		cfg:      cfg,
		log:      log,
		resolver: newTimestampResolver(log),
		transfer: t,
		dirs:     dirCache{},
	}, nil
}

// archiveImages handles the main functionality of the program
func archiveImages(cfg config, log zerolog.Logger) (archiveResult, error) {
	a, err := newArchiver(cfg, log)
	if err != nil {
		return archiveResult{}, err
	}
	return a.run(cfg.SourceDirs, cfg.DestDir), nil
}

// run processes every source root in order. Problems with individual files or
// roots are collected in the result and processing carries on.
func (a *archiver) run(sourceRoots []string, destRoot string) archiveResult {
	var result archiveResult
	startTime := time.Now()

	a.log.Debug().
		Strs("sources", sourceRoots).
		Str("destination", destRoot).
		Str("mode", a.mode()).
		Bool("force", a.cfg.Force).
		Int("max_depth", a.cfg.MaxDepth).
		Bool("dry_run", a.cfg.DryRun).
		Msg("starting archive run")

	for _, root := range sourceRoots {
		err := walkSource(root, a.cfg.MaxDepth,
			func(path string, info fs.FileInfo) {
				if !isImageFile(info.Name()) {
					a.log.Debug().Str("path", path).Msg("skipping non-image file")
					return
				}
				file := a.archiveFile(path, info, destRoot, &result)
				result.Files = append(result.Files, file)
			},
			func(path string, err error) {
				a.recordError(&result, path, err)
			})
		if err != nil {
			a.recordError(&result, root, err)
		}
	}

	a.logSummary(result, time.Since(startTime))
	return result
}

func (a *archiver) archiveFile(path string, info fs.FileInfo, destRoot string, result *archiveResult) FileInfo {
	file := FileInfo{
		SourceName: info.Name(),
		SourceDir:  filepath.Dir(path),
		Size:       info.Size(),
		FileType:   getImageFileType(info.Name()),
	}

	taken, err := a.resolver.resolve(path)
	if err != nil {
		file.Status = "failed"
		a.recordError(result, path, err)
		return file
	}
	file.TakenAt = taken
	file.DestDir = destinationDir(destRoot, taken)
	destPath := filepath.Join(file.DestDir, file.SourceName)

	// Already archived in place, e.g. when the destination is inside a source
	if sameFile(path, destPath) {
		file.Status = "in place"
		a.log.Debug().Str("path", path).Msg("already in its destination")
		return file
	}

	if !a.cfg.Force && exists(destPath) {
		file.Status = "conflict"
		a.recordError(result, path, fmt.Errorf("%s: %w", destPath, ErrDestinationExists))
		return file
	}

	if a.cfg.DryRun {
		file.Status = "planned"
		result.Transferred++
		a.log.Info().Str("path", path).Str("dest", file.DestDir).Msg("would " + a.mode())
		return file
	}

	if err := a.dirs.ensure(file.DestDir); err != nil {
		file.Status = "failed"
		a.recordError(result, path, err)
		return file
	}

	status, err := a.transfer.transfer(path, file.DestDir, a.cfg.Force)
	file.Status = status
	if err != nil {
		a.recordError(result, path, err)
		return file
	}

	result.Transferred++
	a.log.Info().Str("path", path).Str("dest", file.DestDir).Msg(status)
	return file
}

func (a *archiver) recordError(result *archiveResult, path string, err error) {
	result.Errors = append(result.Errors, FileError{Path: path, Err: err})
	if errors.Is(err, ErrDestinationExists) {
		a.log.Warn().Err(err).Str("path", path).Msg("skipping file")
		return
	}
	a.log.Error().Err(err).Str("path", path).Msg("failed to archive")
}

func (a *archiver) mode() string {
	switch {
	case a.cfg.Exec != "":
		return "exec"
	case a.cfg.Move:
		return "move"
	default:
		return "copy"
	}
}

func (a *archiver) logSummary(result archiveResult, elapsed time.Duration) {
	var conflicts, failed, inPlace int
	var transferredSize int64
	for _, file := range result.Files {
		switch file.Status {
		case "conflict":
			conflicts++
		case "failed":
			failed++
		case "in place":
			inPlace++
		case "copied", "moved", "filtered", "planned":
			transferredSize += file.Size
		}
	}

	a.log.Info().
		Int("images", len(result.Files)).
		Int("transferred", result.Transferred).
		Int("conflicts", conflicts).
		Int("in_place", inPlace).
		Int("failed", failed).
		Int("errors", len(result.Errors)).
		Str("size", humanReadableSize(transferredSize)).
		Str("elapsed", humanReadableDuration(elapsed)).
		Msg("archive run finished")
}

func humanReadableSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func humanReadableDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}

	return strings.Join(parts, "")
}
