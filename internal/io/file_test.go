package ioutils

import (
	"path/filepath"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal-file.flac", "normal-file.flac"},
		{"file:with:colons.flac", "file_with_colons.flac"},
		{"file<with>brackets.flac", "file_with_brackets.flac"},
		{"file/with\\slashes.flac", "file_with_slashes.flac"},
		{"file|with|pipes.flac", "file_with_pipes.flac"},
		{"file?with*wildcards.flac", "file_with_wildcards.flac"},
		{"trailing dots...", "trailing dots"},
		{"multiple   spaces", "multiple spaces"},
		{"trailing spaces   ", "trailing spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizeFileName(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")

	if FileExists(path) {
		t.Error("FileExists should be false before the file is written")
	}
	if err := WriteFile(path, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Error("FileExists should be true after the file is written")
	}
	if FileExists(dir) {
		t.Error("FileExists should be false for a directory")
	}
}
