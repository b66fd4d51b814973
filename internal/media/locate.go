// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media finds source video files on local storage.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrDirectoryNotFound is returned when the media directory is missing or not a directory.
var ErrDirectoryNotFound = errors.New("media directory not found")

// allowedExtensions is the set of container extensions considered video sources (lower case, no dot).
var allowedExtensions = map[string]struct{}{
	"mp4": {},
	"avi": {},
	"mov": {},
	"mkv": {},
	"flv": {},
	"wmv": {},
	"m4v": {},
}

// IsVideoExtension reports whether ext (with or without the leading dot) is an allowed
// video container extension. The comparison ignores case.
func IsVideoExtension(ext string) bool {
	_, ok := allowedExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// StripExt returns name without its final extension. A leading dot is not treated
// as an extension separator, so ".hidden" is returned unchanged.
func StripExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i+1:]
	}
	return ""
}

// Locate scans the direct children of dir for a regular file whose name without
// extension equals name without extension (case-sensitive) and whose extension is
// an allowed video extension.
//
// Entries are visited in lexical order, so when several allowed extensions share
// a basename the lexically smallest file name wins. An empty string with a nil
// error means nothing matched.
func Locate(dir, name string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return "", fmt.Errorf("stat media directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	want := StripExt(name)
	if want == "" {
		return "", nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read media directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		fn := e.Name()
		if StripExt(fn) != want || !IsVideoExtension(extOf(fn)) {
			continue
		}
		return filepath.Join(dir, fn), nil
	}
	return "", nil
}
