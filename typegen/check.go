package typegen

import (
	"context"
	"io/fs"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pmezard/go-difflib/difflib"
)

// StaleError is returned by Check when the file on disk differs from what
// Generate would write.
type StaleError struct {
	Output string
	// Diff is a unified diff from the current file to the expected content.
	Diff string
}

func (e *StaleError) Error() string {
	return "generated file " + e.Output + " is out of date; run generate to update it"
}

// Check renders the declarations and compares them with opts.Output without
// writing anything. A missing output file is reported as stale.
func Check(ctx context.Context, logger *slog.Logger, opts Options) error {
	want, err := Render(ctx, logger, opts)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(opts.Output)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "read %s", opts.Output)
	}
	have := string(data)
	if have == want {
		logger.Info("Generated file is up to date", "file", opts.Output)
		return nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(have),
		B:        difflib.SplitLines(want),
		FromFile: opts.Output,
		ToFile:   opts.Output + " (generated)",
		Context:  3,
	})
	if err != nil {
		return errors.Wrap(err, "diff generated output")
	}
	logger.Warn("Generated file is out of date", "file", opts.Output)
	return &StaleError{Output: opts.Output, Diff: diff}
}
