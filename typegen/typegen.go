// Package typegen wires a collector, an extractor and the declaration renderer
// into a single generation run: collect -> extract -> render -> write.
package typegen

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/Alia5/extypegen/collector"
	"github.com/Alia5/extypegen/decl"
)

// Extractor turns collected file contents into ordered descriptors.
type Extractor func(files collector.FilesMap) ([]decl.Type, error)

// Options configures a generation run.
type Options struct {
	Collector collector.Collector
	Extractor Extractor
	// Output is the generated file path. It is overwritten on every run.
	Output string
	// Comment is rendered as a `//` banner when non-nil.
	Comment *string
}

func (o Options) validate() error {
	if o.Collector == nil {
		return errors.New("typegen: no collector configured")
	}
	if o.Extractor == nil {
		return errors.New("typegen: no extractor configured")
	}
	if o.Output == "" {
		return errors.New("typegen: no output path configured")
	}
	return nil
}

// Extract collects files and runs the extractor without rendering.
func Extract(ctx context.Context, logger *slog.Logger, opts Options) ([]decl.Type, error) {
	if opts.Collector == nil {
		return nil, errors.New("typegen: no collector configured")
	}
	if opts.Extractor == nil {
		return nil, errors.New("typegen: no extractor configured")
	}

	logger.Debug("Collecting source files", "roots", opts.Collector.Roots())
	files, err := opts.Collector.Collect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "collect files")
	}
	logger.Info("Collected source files", "count", len(files))

	types, err := opts.Extractor(files)
	if err != nil {
		return nil, errors.Wrap(err, "extract types")
	}
	logger.Info("Extracted type descriptors", "count", len(types))
	return types, nil
}

// Render runs collection and extraction and returns the generated text.
func Render(ctx context.Context, logger *slog.Logger, opts Options) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	types, err := Extract(ctx, logger, opts)
	if err != nil {
		return "", err
	}
	content, err := decl.Render(types, opts.Comment)
	if err != nil {
		return "", errors.Wrap(err, "render declarations")
	}
	return content, nil
}

// Generate renders the declarations and overwrites opts.Output. Nothing is
// written when any stage fails.
func Generate(ctx context.Context, logger *slog.Logger, opts Options) error {
	content, err := Render(ctx, logger, opts)
	if err != nil {
		return err
	}
	if err := writeOutput(opts.Output, content); err != nil {
		return err
	}
	logger.Info("Generated type declarations", "file", opts.Output, "bytes", len(content))
	return nil
}

// writeOutput replaces path atomically so readers never see a truncated file.
func writeOutput(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
