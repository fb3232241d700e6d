package cmd

import (
	"github.com/cockroachdb/errors"

	"github.com/Alia5/extypegen/collector"
	"github.com/Alia5/extypegen/internal/extract"
	"github.com/Alia5/extypegen/typegen"
)

// Source holds the discovery and extraction flags shared by generate and scan.
type Source struct {
	Entry          []string `help:"Directories or files to walk" sep:"," xor:"source" env:"EXTYPEGEN_ENTRY"`
	Ext            []string `help:"File extensions to collect while walking; defaults depend on the extractor" sep:"," env:"EXTYPEGEN_EXT"`
	Exclude        []string `help:"Base names skipped while walking" sep:"," default:"node_modules,.git" env:"EXTYPEGEN_EXCLUDE"`
	Pattern        []string `help:"Glob patterns to collect, ** matches any depth" sep:"," xor:"source" env:"EXTYPEGEN_PATTERN"`
	Dir            string   `help:"Base directory glob patterns are relative to" env:"EXTYPEGEN_DIR"`
	FilesOnly      bool     `help:"Only match regular files with glob patterns" default:"true" negatable:"" env:"EXTYPEGEN_FILES_ONLY"`
	NoFollow       bool     `help:"Do not follow symlinks while globbing" env:"EXTYPEGEN_NO_FOLLOW"`
	FailOnIOErrors bool     `help:"Abort globbing on unreadable directories" env:"EXTYPEGEN_FAIL_ON_IO_ERRORS"`
	Extractor      string   `help:"Extractor turning files into type descriptors" default:"descriptors" enum:"descriptors,gosource" env:"EXTYPEGEN_EXTRACTOR"`
	Concurrency    int      `help:"Maximum parallel file reads; 0 uses GOMAXPROCS" default:"0" env:"EXTYPEGEN_CONCURRENCY"`
}

var defaultExtensions = map[string][]string{
	"descriptors": {".json", ".yaml", ".yml", ".toml"},
	"gosource":    {".go"},
}

func (s *Source) collector() (collector.Collector, error) {
	if len(s.Pattern) > 0 {
		return collector.Glob{
			Patterns: s.Pattern,
			Options: collector.GlobOptions{
				Dir:            s.Dir,
				FilesOnly:      s.FilesOnly,
				NoFollow:       s.NoFollow,
				FailOnIOErrors: s.FailOnIOErrors,
			},
			Concurrency: s.Concurrency,
		}, nil
	}
	if len(s.Entry) == 0 {
		return nil, errors.WithHint(
			&collector.ConfigError{Reason: "you must provide at least one entry path"},
			"pass --entry <dir> or --pattern <glob>, or set them in a config file",
		)
	}
	exts := s.Ext
	if len(exts) == 0 {
		exts = defaultExtensions[s.Extractor]
	}
	return collector.Walk{
		Entries:     s.Entry,
		Extensions:  exts,
		Exclude:     s.Exclude,
		Concurrency: s.Concurrency,
	}, nil
}

func (s *Source) options(output string, banner *string) (typegen.Options, error) {
	c, err := s.collector()
	if err != nil {
		return typegen.Options{}, err
	}
	ex, err := extract.ByName(s.Extractor)
	if err != nil {
		return typegen.Options{}, err
	}
	return typegen.Options{
		Collector: c,
		Extractor: ex,
		Output:    output,
		Comment:   banner,
	}, nil
}
