package main

import (
	"path/filepath"
	"strings"
)

type FileType string

const (
	JPEG FileType = "jpeg"
	PNG  FileType = "png"
	TIFF FileType = "tiff"
)

var fileExtensionToFileType = map[string]FileType{
	"jpg": JPEG, "jpeg": JPEG,
	"png": PNG,
	"tif": TIFF, "tiff": TIFF,
}

// getImageFileType returns the image type for name, or "" if the extension
// is not one we archive. Matching is case-insensitive.
func getImageFileType(name string) FileType {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}

	return fileExtensionToFileType[ext[1:]] // Remove the leading dot
}

func isImageFile(name string) bool {
	return getImageFileType(name) != ""
}
