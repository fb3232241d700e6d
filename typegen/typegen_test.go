package typegen_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/extypegen/collector"
	"github.com/Alia5/extypegen/decl"
	"github.com/Alia5/extypegen/typegen"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lineExtractor turns "Name: a, b" files into string unions.
func lineExtractor(files collector.FilesMap) ([]decl.Type, error) {
	var out []decl.Type
	for _, p := range files.Paths() {
		name, rest, ok := strings.Cut(strings.TrimSpace(files[p]), ":")
		if !ok {
			return nil, errors.Newf("%s: missing ':'", p)
		}
		u := decl.Union{Name: strings.TrimSpace(name)}
		for _, m := range strings.Split(rest, ",") {
			u.Members = append(u.Members, decl.String(strings.TrimSpace(m)))
		}
		out = append(out, u)
	}
	return out, nil
}

func setup(t *testing.T, files map[string]string) (src string, opts typegen.Options) {
	t.Helper()
	dir := t.TempDir()
	src = filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(content), 0o644))
	}
	return src, typegen.Options{
		Collector: collector.Walk{Entries: []string{src}, Extensions: []string{".txt"}},
		Extractor: lineExtractor,
		Output:    filepath.Join(dir, "out", "types.d.ts"),
		Comment:   decl.Banner("Code generated by extypegen. DO NOT EDIT."),
	}
}

func TestGenerateWritesOutput(t *testing.T) {
	_, opts := setup(t, map[string]string{
		"a.txt": "Color: red, green",
		"b.txt": "Size: s, m, s",
	})

	require.NoError(t, typegen.Generate(context.Background(), discardLogger(), opts))

	data, err := os.ReadFile(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, `// Code generated by extypegen. DO NOT EDIT.

export type Color = "red" | "green";

export type Size = "s" | "m";

`, string(data))
}

func TestGenerateOverwrites(t *testing.T) {
	_, opts := setup(t, map[string]string{"a.txt": "Color: red"})
	require.NoError(t, os.MkdirAll(filepath.Dir(opts.Output), 0o755))
	require.NoError(t, os.WriteFile(opts.Output, []byte(strings.Repeat("stale content\n", 100)), 0o644))

	require.NoError(t, typegen.Generate(context.Background(), discardLogger(), opts))

	data, err := os.ReadFile(opts.Output)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
	assert.Contains(t, string(data), `export type Color = "red";`)
}

func TestGenerateFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(opts *typegen.Options)
	}{
		{
			name: "extractor error",
			mutate: func(opts *typegen.Options) {
				opts.Extractor = func(collector.FilesMap) ([]decl.Type, error) {
					return nil, errors.New("boom")
				}
			},
		},
		{
			name: "invalid descriptor",
			mutate: func(opts *typegen.Options) {
				opts.Extractor = func(collector.FilesMap) ([]decl.Type, error) {
					return []decl.Type{decl.Record{Name: "Bad", Properties: []decl.Property{{Name: "x", Type: "date"}}}}, nil
				}
			},
		},
		{
			name: "no entries",
			mutate: func(opts *typegen.Options) {
				opts.Collector = collector.Walk{}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, opts := setup(t, map[string]string{"a.txt": "Color: red"})
			tt.mutate(&opts)

			err := typegen.Generate(context.Background(), discardLogger(), opts)
			require.Error(t, err)
			_, statErr := os.Stat(opts.Output)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestGenerateErrorKinds(t *testing.T) {
	_, opts := setup(t, nil)
	opts.Collector = collector.Walk{}
	err := typegen.Generate(context.Background(), discardLogger(), opts)
	var cfgErr *collector.ConfigError
	assert.True(t, errors.As(err, &cfgErr))

	_, opts = setup(t, map[string]string{"a.txt": "Color: red"})
	opts.Extractor = func(collector.FilesMap) ([]decl.Type, error) {
		return []decl.Type{decl.Union{Members: []decl.Member{decl.Int(1)}}}, nil
	}
	err = typegen.Generate(context.Background(), discardLogger(), opts)
	var verr *decl.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestGenerateRequiresOptions(t *testing.T) {
	err := typegen.Generate(context.Background(), discardLogger(), typegen.Options{})
	require.Error(t, err)
}

func TestCheck(t *testing.T) {
	_, opts := setup(t, map[string]string{"a.txt": "Color: red, green"})
	logger := discardLogger()

	err := typegen.Check(context.Background(), logger, opts)
	var stale *typegen.StaleError
	require.ErrorAs(t, err, &stale)
	assert.Contains(t, stale.Diff, `+export type Color = "red" | "green";`)

	require.NoError(t, typegen.Generate(context.Background(), logger, opts))
	require.NoError(t, typegen.Check(context.Background(), logger, opts))

	require.NoError(t, os.WriteFile(opts.Output, []byte("export type Color = \"red\";\n"), 0o644))
	err = typegen.Check(context.Background(), logger, opts)
	require.ErrorAs(t, err, &stale)
	assert.Contains(t, stale.Diff, `-export type Color = "red";`)
	assert.Contains(t, stale.Diff, `+export type Color = "red" | "green";`)

	data, err := os.ReadFile(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, "export type Color = \"red\";\n", string(data), "check must not write")
}

func TestWatchRegenerates(t *testing.T) {
	src, opts := setup(t, map[string]string{"a.txt": "Color: red"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- typegen.Watch(ctx, discardLogger(), opts, 20*time.Millisecond)
	}()

	readOutput := func() string {
		data, _ := os.ReadFile(opts.Output)
		return string(data)
	}
	require.Eventually(t, func() bool {
		return strings.Contains(readOutput(), `export type Color = "red";`)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(src, "b.txt"), []byte("Shape: circle"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(readOutput(), `export type Shape = "circle";`)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "c.txt"), []byte("Mood: calm"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(readOutput(), `export type Mood = "calm";`)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
