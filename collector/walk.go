package collector

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Walk collects files below one or more entry paths whose extension matches.
type Walk struct {
	// Entries are files or directories. At least one is required.
	Entries []string
	// Extensions such as ".ts" or "go"; case-insensitive. Empty matches every file.
	Extensions []string
	// Exclude skips files and prunes directories below an entry whose base name
	// matches exactly.
	Exclude []string
	// Concurrency bounds parallel reads; <= 0 means GOMAXPROCS.
	Concurrency int
}

type walkState struct {
	exts    map[string]struct{}
	exclude map[string]struct{}
	files   []string
	// root is the entry being walked. Exclude never prunes it.
	root string
}

// Collect walks every entry and reads the matching files.
func (w Walk) Collect(ctx context.Context) (FilesMap, error) {
	if len(w.Entries) == 0 {
		return nil, &ConfigError{Reason: "you must provide at least one entry path"}
	}
	ws := &walkState{
		exts:    normalizeExts(w.Extensions),
		exclude: toSet(w.Exclude),
	}
	for _, entry := range w.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ws.walkEntry(entry); err != nil {
			return nil, err
		}
	}
	return readAll(ctx, ws.files, w.Concurrency)
}

// Roots returns the entry directories, or the parent directory of file entries.
func (w Walk) Roots() []string {
	roots := make([]string, 0, len(w.Entries))
	for _, e := range w.Entries {
		if info, err := os.Stat(e); err == nil && !info.IsDir() {
			roots = append(roots, filepath.Dir(e))
			continue
		}
		roots = append(roots, filepath.Clean(e))
	}
	return dedupSorted(roots)
}

func (ws *walkState) walkEntry(entry string) error {
	info, err := os.Stat(entry)
	if err != nil {
		return errors.Wrapf(err, "entry %s", entry)
	}
	if !info.IsDir() {
		// Explicit file entries still honour the extension filter.
		if ws.match(entry) {
			ws.files = append(ws.files, filepath.Clean(entry))
		}
		return nil
	}
	ws.root = entry
	return filepath.WalkDir(entry, ws.visit)
}

func (ws *walkState) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return errors.Wrapf(err, "walk %s", path)
	}
	if _, skip := ws.exclude[d.Name()]; skip && path != ws.root {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if d.IsDir() {
		return nil
	}
	if !isFile(path, d) || !ws.match(path) {
		return nil
	}
	ws.files = append(ws.files, path)
	return nil
}

func (ws *walkState) match(path string) bool {
	if len(ws.exts) == 0 {
		return true
	}
	_, ok := ws.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// isFile reports whether d is a regular file or a symlink to one.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func normalizeExts(exts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out[e] = struct{}{}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it != "" {
			out[it] = struct{}{}
		}
	}
	return out
}
