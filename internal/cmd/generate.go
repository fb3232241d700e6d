package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Alia5/extypegen/decl"
	"github.com/Alia5/extypegen/typegen"
)

// Generate writes the TypeScript declarations for the collected sources.
type Generate struct {
	Source   `embed:""`
	Output   string        `help:"Generated declaration file" short:"o" default:"types.generated.ts" env:"EXTYPEGEN_OUTPUT"`
	Banner   string        `help:"Comment emitted above the declarations; empty disables it" default:"Code generated by extypegen. DO NOT EDIT." env:"EXTYPEGEN_BANNER"`
	Check    bool          `help:"Fail when the output file is out of date instead of writing it" xor:"mode" env:"EXTYPEGEN_CHECK"`
	Watch    bool          `help:"Regenerate whenever a collected file changes" xor:"mode" env:"EXTYPEGEN_WATCH"`
	Debounce time.Duration `help:"Quiet period before regenerating in watch mode" default:"200ms" env:"EXTYPEGEN_DEBOUNCE"`

	Stdout io.Writer `kong:"-"`
}

// Run is called by Kong when the generate command is executed.
func (g *Generate) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return g.Execute(ctx, logger)
}

// Execute runs a single generation, a check or a watch loop depending on the flags.
func (g *Generate) Execute(ctx context.Context, logger *slog.Logger) error {
	opts, err := g.options(g.Output, g.banner())
	if err != nil {
		return err
	}

	switch {
	case g.Check:
		err := typegen.Check(ctx, logger, opts)
		var stale *typegen.StaleError
		if errors.As(err, &stale) {
			_, _ = fmt.Fprint(g.stdout(), stale.Diff)
		}
		return err
	case g.Watch:
		logger.Info("Watching for changes", "output", g.Output, "debounce", g.Debounce)
		return typegen.Watch(ctx, logger, opts, g.Debounce)
	default:
		return typegen.Generate(ctx, logger, opts)
	}
}

// banner returns nil for an empty flag, which disables the banner.
func (g *Generate) banner() *string {
	if g.Banner == "" {
		return nil
	}
	return decl.Banner(g.Banner)
}

func (g *Generate) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}
