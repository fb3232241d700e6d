// Package collector gathers the contents of source files for extraction.
//
// Two strategies implement Collector: Walk recursively walks entry paths and
// filters by extension, Glob resolves doublestar patterns. Both either return
// every matched file or fail; a partial map is never returned.
package collector

import (
	"context"
	"os"
	"runtime"
	"sort"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// FilesMap maps a file path to its UTF-8 content.
type FilesMap map[string]string

// Paths returns the keys in sorted order.
func (m FilesMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Collector produces a FilesMap from its discovery settings.
type Collector interface {
	Collect(ctx context.Context) (FilesMap, error)
	// Roots returns the directories the collector reads from. Used for watching.
	Roots() []string
}

// ConfigError reports invalid discovery settings.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid collector configuration: " + e.Reason
}

// ErrInvalidUTF8 is returned (wrapped) when a matched file is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("file content is not valid UTF-8")

// readAll reads every distinct path concurrently. The first failure cancels
// the rest and is returned.
func readAll(ctx context.Context, paths []string, concurrency int) (FilesMap, error) {
	paths = dedupSorted(paths)
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	contents := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return errors.Wrapf(err, "read %s", p)
			}
			if !utf8.Valid(data) {
				return errors.Wrapf(ErrInvalidUTF8, "read %s", p)
			}
			contents[i] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make(FilesMap, len(paths))
	for i, p := range paths {
		files[p] = contents[i]
	}
	return files, nil
}

func dedupSorted(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	n := 0
	for i, p := range out {
		if i > 0 && p == out[n-1] {
			continue
		}
		out[n] = p
		n++
	}
	return out[:n]
}
