package collector

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
)

// GlobOptions are passed through to the pattern matcher.
type GlobOptions struct {
	// Dir resolves patterns relative to this directory instead of the working
	// directory. Returned paths are joined with Dir.
	Dir string
	// FilesOnly drops directories from the matches.
	FilesOnly bool
	// NoFollow does not traverse symlinked directories while matching `**`.
	NoFollow bool
	// FailOnIOErrors aborts matching on unreadable directories instead of skipping them.
	FailOnIOErrors bool
	// FailOnPatternNotExist fails when a pattern's literal prefix does not exist.
	FailOnPatternNotExist bool
}

// Glob collects the files matched by one or more doublestar patterns.
// Directories matched by a pattern are never read.
type Glob struct {
	Patterns    []string
	Options     GlobOptions
	Concurrency int
}

// Collect resolves every pattern and reads the matched files.
func (g Glob) Collect(ctx context.Context) (FilesMap, error) {
	if len(g.Patterns) == 0 {
		return nil, &ConfigError{Reason: "you must provide at least one glob pattern"}
	}
	opts := g.globOptions()
	var paths []string
	for _, pattern := range g.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := g.match(pattern, opts)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, errors.Wrapf(err, "stat %s", m)
			}
			if info.Mode().IsRegular() {
				paths = append(paths, m)
			}
		}
	}
	return readAll(ctx, paths, g.Concurrency)
}

// Roots returns the literal directory prefix of every pattern.
func (g Glob) Roots() []string {
	roots := make([]string, 0, len(g.Patterns))
	for _, p := range g.Patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
		root := filepath.FromSlash(base)
		if g.Options.Dir != "" && !filepath.IsAbs(root) {
			root = filepath.Join(g.Options.Dir, root)
		}
		roots = append(roots, filepath.Clean(root))
	}
	return dedupSorted(roots)
}

func (g Glob) match(pattern string, opts []doublestar.GlobOption) ([]string, error) {
	if g.Options.Dir == "" {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, &ConfigError{Reason: "malformed glob pattern " + pattern}
		}
		matches, err := doublestar.FilepathGlob(pattern, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "glob %s", pattern)
		}
		return matches, nil
	}

	slashed := filepath.ToSlash(pattern)
	if !doublestar.ValidatePattern(slashed) {
		return nil, &ConfigError{Reason: "malformed glob pattern " + pattern}
	}
	if _, err := os.Stat(g.Options.Dir); err != nil {
		return nil, errors.Wrapf(err, "glob dir %s", g.Options.Dir)
	}
	matches, err := doublestar.Glob(os.DirFS(g.Options.Dir), slashed, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s in %s", pattern, g.Options.Dir)
	}
	for i, m := range matches {
		matches[i] = filepath.Join(g.Options.Dir, filepath.FromSlash(m))
	}
	return matches, nil
}

func (g Glob) globOptions() []doublestar.GlobOption {
	var opts []doublestar.GlobOption
	if g.Options.FilesOnly {
		opts = append(opts, doublestar.WithFilesOnly())
	}
	if g.Options.NoFollow {
		opts = append(opts, doublestar.WithNoFollow())
	}
	if g.Options.FailOnIOErrors {
		opts = append(opts, doublestar.WithFailOnIOErrors())
	}
	if g.Options.FailOnPatternNotExist {
		opts = append(opts, doublestar.WithFailOnPatternNotExist())
	}
	return opts
}
