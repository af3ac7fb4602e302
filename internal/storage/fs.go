package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

// DefaultExtensions lists the file suffixes indexed when none are configured.
var DefaultExtensions = []string{".md"}

// FS implements Provider backed by the local file system.
type FS struct {
	root       string // absolute path to vault directory
	extensions []string
	ignore     map[string]struct{}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist. Hidden directories are always skipped;
// ignoreDirs names additional directories (by base name) to skip.
func NewFS(root string, extensions, ignoreDirs []string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.Walk("storage: resolve root", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperr.Walk("storage: stat root", err)
	}
	if !info.IsDir() {
		return nil, apperr.Walk("storage: stat root", fmt.Errorf("root is not a directory: %s", abs))
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	ignore := make(map[string]struct{}, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = struct{}{}
	}
	return &FS{root: abs, extensions: exts, ignore: ignore}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("path escapes vault root: %s", rel)
	}
	return abs, nil
}

func (f *FS) indexable(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range f.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Walk enumerates indexable files under the root in lexical order.
// Relative paths always use forward slashes.
func (f *FS) Walk(ctx context.Context) ([]models.FileEntry, error) {
	var out []models.FileEntry
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p == f.root {
				return nil
			}
			if _, skip := f.ignore[d.Name()]; skip || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") || !f.indexable(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		out = append(out, models.FileEntry{
			AbsPath:  p,
			RelPath:  filepath.ToSlash(rel),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, apperr.Walk("storage: walk", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, apperr.Read("storage: read", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperr.Read("storage: read "+rel, err)
	}
	return data, nil
}
