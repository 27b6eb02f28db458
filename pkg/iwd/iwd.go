// Package iwd provides reading functionality for Call of Duty IWD and PK3
// asset archives.
package iwd

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Archive represents an opened IWD or PK3 archive. Both generations are ZIP
// containers; only the file extension differs.
type Archive struct {
	path     string
	reader   *zip.ReadCloser
	fileList map[string]*zip.File
}

// Open opens an asset archive for reading.
func Open(path string) (*Archive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	archive := &Archive{
		path:     path,
		reader:   reader,
		fileList: make(map[string]*zip.File),
	}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		archive.fileList[normalizePath(f.Name)] = f
	}

	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.reader != nil {
		return a.reader.Close()
	}
	return nil
}

// Name returns the archive file name without its directory.
func (a *Archive) Name() string {
	return filepath.Base(a.path)
}

// List returns all file paths in the archive.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for path := range a.fileList {
		result = append(result, path)
	}
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.fileList[normalizePath(path)]
	return ok
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	f, ok := a.fileList[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// normalizePath folds the two separator and case conventions the game data
// mixes into one lookup key.
func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
