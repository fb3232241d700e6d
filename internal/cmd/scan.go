package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/Alia5/extypegen/internal/extract"
	"github.com/Alia5/extypegen/typegen"
)

// Scan prints the extracted descriptors in the descriptor document format.
type Scan struct {
	Source `embed:""`
	Format string `help:"Output format" default:"yaml" enum:"json,yaml" env:"EXTYPEGEN_SCAN_FORMAT"`
	Output string `help:"Write to this file instead of stdout" short:"o" env:"EXTYPEGEN_SCAN_OUTPUT"`

	Stdout io.Writer `kong:"-"`
}

// Run is called by Kong when the scan command is executed.
func (s *Scan) Run(logger *slog.Logger) error {
	return s.Execute(context.Background(), logger)
}

func (s *Scan) Execute(ctx context.Context, logger *slog.Logger) error {
	opts, err := s.options("", nil)
	if err != nil {
		return err
	}
	types, err := typegen.Extract(ctx, logger, opts)
	if err != nil {
		return err
	}
	data, err := extract.Encode(types, s.Format)
	if err != nil {
		return err
	}

	if s.Output == "" {
		w := s.Stdout
		if w == nil {
			w = os.Stdout
		}
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(s.Output, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", s.Output)
	}
	logger.Info("Wrote descriptors", "file", s.Output, "count", len(types))
	return nil
}
