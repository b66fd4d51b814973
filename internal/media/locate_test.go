// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	return p
}

func TestLocate_MatchesIgnoringExtension(t *testing.T) {
	dir := t.TempDir()
	want := touch(t, dir, "clip.mp4")
	touch(t, dir, "other.mp4")

	got, err := Locate(dir, "clip")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = Locate(dir, "clip.mov")
	require.NoError(t, err)
	assert.Equal(t, want, got, "requested extension is stripped before comparison")
}

func TestLocate_RejectsDisallowedExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "clip.txt")
	touch(t, dir, "clip.md")

	got, err := Locate(dir, "clip")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocate_CaseSensitiveNameCaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Clip.mp4")
	upper := touch(t, dir, "clip.MKV")

	got, err := Locate(dir, "clip")
	require.NoError(t, err)
	assert.Equal(t, upper, got)
}

func TestLocate_LexicalOrderWins(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "clip.mp4")
	avi := touch(t, dir, "clip.avi")
	touch(t, dir, "clip.mkv")

	got, err := Locate(dir, "clip")
	require.NoError(t, err)
	assert.Equal(t, avi, got)
}

func TestLocate_NotRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	touch(t, sub, "clip.mp4")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "clip.mp4.d"), 0o755))

	got, err := Locate(dir, "clip")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocate_DirectoryErrors(t *testing.T) {
	dir := t.TempDir()
	file := touch(t, dir, "plain.mp4")

	_, err := Locate(filepath.Join(dir, "missing"), "clip")
	assert.ErrorIs(t, err, ErrDirectoryNotFound)

	_, err = Locate(file, "clip")
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestStripExt(t *testing.T) {
	tests := map[string]string{
		"clip.mp4":         "clip",
		"archive.tar.gz":   "archive.tar",
		"noext":            "noext",
		".hidden":          ".hidden",
		"":                 "",
		"with.dots.in.mkv": "with.dots.in",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripExt(in), in)
	}
}
