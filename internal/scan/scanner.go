// Package scan walks the watched root for session log files.
package scan

import (
	"os"
	"path/filepath"
	"strings"
)

type FileInfo struct {
	Path string // absolute path
	Rel  string // identity: path relative to the watched root
	Size int64
}

// Walk returns every .jsonl file under root. Unreadable directories are
// skipped; a missing root yields no files.
func Walk(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		files = append(files, FileInfo{
			Path: path,
			Rel:  Rel(root, path),
			Size: info.Size(),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return files, err
}

// Rel turns an absolute path into its identity relative to root,
// falling back to the base name when the path lies outside it.
func Rel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
