package cmd

import (
	"encoding/json"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/extypegen/internal/configpaths"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file for a specific command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"generate,scan"`
	Format  string `help:"Output format" enum:"json,yaml,yml,toml" default:"yaml"`
	Output  string `help:"Destination file path (defaults to extypegen.<ext> in the current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run generates a configuration template from the command structs and their tags.
//
// kong.JSON looks flags up by snake_case name at the top level, while the
// YAML and TOML loaders nest command flags under the command name and use
// the kebab-case flag name.
func (c *ConfigInit) Run() error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return errors.Newf("unsupported format: %s", c.Format)
	}

	var cmdType reflect.Type
	switch c.Command {
	case "generate":
		cmdType = reflect.TypeOf(Generate{})
	case "scan":
		cmdType = reflect.TypeOf(Scan{})
	default:
		return errors.Newf("unknown command %q; expected 'generate' or 'scan'", c.Command)
	}

	keyOf := kebabKey
	if format == "json" {
		keyOf = snakeKey
	}
	root := buildMapFromStruct(reflect.TypeOf(CLI{}), keyOf, true)
	flags := buildMapFromStruct(cmdType, keyOf, false)
	if format == "json" {
		for k, v := range flags {
			root[k] = v
		}
	} else {
		root[c.Command] = flags
	}

	dest := c.Output
	if dest == "" {
		dest = "extypegen." + configpaths.ExtForFormat(format)
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.WithHint(errors.Newf("%s already exists", dest), "use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return errors.Wrapf(err, "create directory for %s", dest)
	}

	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(root, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(root)
	case "toml":
		data, err = toml.Marshal(root)
	}
	if err != nil {
		return errors.Wrapf(err, "encode %s config", format)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", dest)
	}
	return nil
}

func normalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// flagName mirrors kong's default flag naming: FailOnIOErrors -> fail-on-io-errors.
func flagName(f reflect.StructField) string {
	if name := f.Tag.Get("name"); name != "" {
		return name
	}
	r := []rune(f.Name)
	var b strings.Builder
	for i, c := range r {
		if unicode.IsUpper(c) && i > 0 {
			prevLower := unicode.IsLower(r[i-1])
			nextLower := i+1 < len(r) && unicode.IsLower(r[i+1])
			if prevLower || (unicode.IsUpper(r[i-1]) && nextLower) {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(c))
	}
	return b.String()
}

func kebabKey(f reflect.StructField) string { return flagName(f) }

func snakeKey(f reflect.StructField) string {
	return strings.ReplaceAll(flagName(f), "-", "_")
}

// buildMapFromStruct collects flag defaults keyed by keyOf. Subcommands are
// skipped. isRoot drops the --config flag itself.
func buildMapFromStruct(t reflect.Type, keyOf func(reflect.StructField) string, isRoot bool) map[string]any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]any{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("kong") == "-" {
			continue
		}
		if _, ok := f.Tag.Lookup("cmd"); ok {
			continue
		}
		if _, ok := f.Tag.Lookup("arg"); ok {
			continue
		}

		if _, ok := f.Tag.Lookup("embed"); ok {
			sub := buildMapFromStruct(f.Type, keyOf, false)
			if name := strings.TrimSuffix(f.Tag.Get("prefix"), "."); name != "" {
				out[name] = sub
			} else {
				for k, v := range sub {
					out[k] = v
				}
			}
			continue
		}
		if isRoot && f.Tag.Get("name") == "config" {
			continue
		}

		if val := defaultValueForField(f.Type, f.Tag.Get("default"), f.Tag.Get("sep")); val != nil {
			out[keyOf(f)] = val
		}
	}
	return out
}

func defaultValueForField(t reflect.Type, def, sep string) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "time" && t.Name() == "Duration" {
		if def != "" {
			return def
		}
		return "0s"
	}
	switch t.Kind() {
	case reflect.String:
		return def
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n
	case reflect.Slice:
		if sep == "" {
			sep = ","
		}
		list := []any{}
		if def == "" {
			return list
		}
		for _, part := range strings.Split(def, sep) {
			list = append(list, defaultValueForField(t.Elem(), part, sep))
		}
		return list
	default:
		return nil
	}
}
