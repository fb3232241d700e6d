package main

import (
	"os"
	"strings"

	"github.com/Alia5/extypegen/internal/cmd"
	"github.com/Alia5/extypegen/internal/configpaths"
	"github.com/Alia5/extypegen/internal/log"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/cockroachdb/errors"
)

func main() {
	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli cmd.CLI
	ctx := kong.Parse(&cli,
		kong.Name("extypegen"),
		kong.Description("Generate TypeScript type declarations from source files"),
		kong.UsageOnError(),
		// Flags and env override config values; earlier paths take priority.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(log.Options{
		Level:  cli.Log.Level,
		Format: cli.Log.Format,
		File:   cli.Log.File,
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	ctx.Bind(logger)

	err = ctx.Run()
	for _, hint := range errors.GetAllHints(err) {
		logger.Info("Hint: " + hint)
	}
	ctx.FatalIfErrorf(err)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("EXTYPEGEN_CONFIG")
}
