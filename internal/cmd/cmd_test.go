package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/extypegen/collector"
	"github.com/Alia5/extypegen/decl"
	"github.com/Alia5/extypegen/internal/extract"
	"github.com/Alia5/extypegen/typegen"
)

const statusDescriptors = `types:
  - name: Status
    type: union
    doc: Lifecycle state.
    members: [active, inactive]
    allowNull: true
  - name: User
    type: interface
    properties:
      id: number
      name: string
`

const statusDeclarations = `/**
 *  Lifecycle state.
 */
export type Status = "active" | "inactive" | null;

export interface User {
  id: number;
  name: string;
}

`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDescriptors(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "types")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "status.yaml"), []byte(statusDescriptors), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README.md"), []byte("# not a descriptor"), 0o644))
	return dir
}

func TestGenerateExecute(t *testing.T) {
	dir := writeDescriptors(t)
	out := filepath.Join(dir, "gen", "types.ts")
	g := &Generate{
		Source: Source{Entry: []string{filepath.Join(dir, "types")}, Extractor: "descriptors"},
		Output: out,
	}

	require.NoError(t, g.Execute(context.Background(), discardLogger()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, statusDeclarations, string(data))
}

func TestGenerateBanner(t *testing.T) {
	dir := writeDescriptors(t)
	out := filepath.Join(dir, "types.ts")
	g := &Generate{
		Source: Source{Entry: []string{filepath.Join(dir, "types")}, Extractor: "descriptors"},
		Output: out,
		Banner: "generated\nDO NOT EDIT",
	}

	require.NoError(t, g.Execute(context.Background(), discardLogger()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "// generated\n// DO NOT EDIT\n\n"+statusDeclarations, string(data))
}

func TestGenerateCheckPrintsDiff(t *testing.T) {
	dir := writeDescriptors(t)
	var stdout bytes.Buffer
	g := &Generate{
		Source: Source{Entry: []string{filepath.Join(dir, "types")}, Extractor: "descriptors"},
		Output: filepath.Join(dir, "types.ts"),
		Check:  true,
		Stdout: &stdout,
	}

	err := g.Execute(context.Background(), discardLogger())
	var stale *typegen.StaleError
	require.ErrorAs(t, err, &stale)
	assert.Contains(t, stdout.String(), `+export type Status = "active" | "inactive" | null;`)
	_, statErr := os.Stat(g.Output)
	assert.True(t, os.IsNotExist(statErr))

	g.Check = false
	require.NoError(t, g.Execute(context.Background(), discardLogger()))
	g.Check = true
	stdout.Reset()
	require.NoError(t, g.Execute(context.Background(), discardLogger()))
	assert.Empty(t, stdout.String())
}

func TestGenerateRequiresSource(t *testing.T) {
	g := &Generate{Source: Source{Extractor: "descriptors"}, Output: filepath.Join(t.TempDir(), "types.ts")}

	err := g.Execute(context.Background(), discardLogger())
	var cfgErr *collector.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "you must provide at least one entry path", cfgErr.Reason)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestSourceCollector(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		want   collector.Collector
	}{
		{
			name:   "descriptor extensions by default",
			source: Source{Entry: []string{"src"}, Extractor: "descriptors"},
			want:   collector.Walk{Entries: []string{"src"}, Extensions: []string{".json", ".yaml", ".yml", ".toml"}},
		},
		{
			name:   "go files for gosource",
			source: Source{Entry: []string{"pkg"}, Extractor: "gosource", Exclude: []string{"vendor"}},
			want:   collector.Walk{Entries: []string{"pkg"}, Extensions: []string{".go"}, Exclude: []string{"vendor"}},
		},
		{
			name:   "explicit extensions",
			source: Source{Entry: []string{"src"}, Ext: []string{"yaml"}, Extractor: "descriptors", Concurrency: 2},
			want:   collector.Walk{Entries: []string{"src"}, Extensions: []string{"yaml"}, Concurrency: 2},
		},
		{
			name:   "patterns",
			source: Source{Pattern: []string{"**/*.yaml"}, Dir: "schemas", FilesOnly: true, NoFollow: true},
			want: collector.Glob{
				Patterns: []string{"**/*.yaml"},
				Options:  collector.GlobOptions{Dir: "schemas", FilesOnly: true, NoFollow: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.source.collector()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanRoundTrip(t *testing.T) {
	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			dir := writeDescriptors(t)
			var stdout bytes.Buffer
			s := &Scan{
				Source: Source{Entry: []string{filepath.Join(dir, "types")}, Extractor: "descriptors"},
				Format: format,
				Stdout: &stdout,
			}
			require.NoError(t, s.Execute(context.Background(), discardLogger()))

			types, err := extract.Descriptors(collector.FilesMap{"scan." + format: stdout.String()})
			require.NoError(t, err)
			rendered, err := decl.Render(types, nil)
			require.NoError(t, err)
			assert.Equal(t, statusDeclarations, rendered)
		})
	}
}

func TestScanToFile(t *testing.T) {
	dir := writeDescriptors(t)
	out := filepath.Join(dir, "scan.json")
	s := &Scan{
		Source: Source{Entry: []string{filepath.Join(dir, "types")}, Extractor: "descriptors"},
		Format: "json",
		Output: out,
	}
	require.NoError(t, s.Execute(context.Background(), discardLogger()))

	var doc map[string][]map[string]any
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc["types"], 2)
	assert.Equal(t, "Status", doc["types"][0]["name"])
	assert.Equal(t, "interface", doc["types"][1]["type"])
}

func TestCLIParseAndRun(t *testing.T) {
	dir := writeDescriptors(t)
	out := filepath.Join(dir, "types.ts")

	var cli CLI
	parser, err := kong.New(&cli, kong.Name("extypegen"))
	require.NoError(t, err)
	ctx, err := parser.Parse([]string{
		"generate",
		"--entry", filepath.Join(dir, "types"),
		"--output", out,
		"--banner=",
	})
	require.NoError(t, err)
	assert.Equal(t, "info", cli.Log.Level)
	assert.Equal(t, []string{"node_modules", ".git"}, cli.Generate.Exclude)
	assert.Equal(t, "descriptors", cli.Generate.Extractor)

	require.NoError(t, ctx.Run(discardLogger()))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, statusDeclarations, string(data))
}

func TestCLIRejectsEntryWithPattern(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("extypegen"))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"generate", "--entry", "src", "--pattern", "**/*.yaml"})
	assert.Error(t, err)
}

func TestCLIRejectsUnknownExtractor(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("extypegen"))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"generate", "--entry", "src", "--extractor", "protobuf"})
	assert.Error(t, err)
}

func TestFlagName(t *testing.T) {
	tests := map[string]string{
		"Entry":          "entry",
		"FilesOnly":      "files-only",
		"FailOnIOErrors": "fail-on-io-errors",
		"NoFollow":       "no-follow",
	}
	for field, want := range tests {
		assert.Equal(t, want, flagName(reflect.StructField{Name: field}), field)
	}
	assert.Equal(t, "config", flagName(reflect.StructField{Name: "ConfigFile", Tag: `name:"config"`}))
}

func TestConfigInitYAML(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "conf", "extypegen.yaml")
	c := &ConfigInit{Command: "generate", Format: "yaml", Output: dest}
	require.NoError(t, c.Run())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var root map[string]any
	require.NoError(t, yaml.Unmarshal(data, &root))

	assert.NotContains(t, root, "config")
	logCfg, ok := root["log"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "info", logCfg["level"])

	gen, ok := root["generate"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "descriptors", gen["extractor"])
	assert.Equal(t, "types.generated.ts", gen["output"])
	assert.Equal(t, []any{"node_modules", ".git"}, gen["exclude"])
	assert.Equal(t, true, gen["files-only"])
	assert.Equal(t, "200ms", gen["debounce"])
	assert.NotContains(t, gen, "stdout")

	err = c.Run()
	require.Error(t, err, "existing file without --force")
	c.Force = true
	require.NoError(t, c.Run())
}

func TestConfigInitJSON(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "extypegen.json")
	c := &ConfigInit{Command: "scan", Format: "json", Output: dest}
	require.NoError(t, c.Run())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var root map[string]any
	require.NoError(t, json.Unmarshal(data, &root))

	assert.Equal(t, "yaml", root["format"])
	assert.Equal(t, true, root["files_only"])
	assert.Equal(t, false, root["fail_on_io_errors"])
	assert.Contains(t, root, "log")
	assert.NotContains(t, root, "scan")
}

func TestConfigInitTOML(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "extypegen.toml")
	c := &ConfigInit{Command: "generate", Format: "toml", Output: dest}
	require.NoError(t, c.Run())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[generate]")
	assert.Contains(t, string(data), `extractor = "descriptors"`)
}
