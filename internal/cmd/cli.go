package cmd

// LogConfig holds the global logging flags.
type LogConfig struct {
	Level  string `help:"Log level: trace, debug, info, warn, error" default:"info" enum:"trace,debug,info,warn,error" env:"EXTYPEGEN_LOG_LEVEL"`
	Format string `help:"Log format" default:"text" enum:"text,json" env:"EXTYPEGEN_LOG_FORMAT"`
	File   string `help:"Also write all log records to this file" env:"EXTYPEGEN_LOG_FILE"`
}

// CLI is the root command tree parsed by kong.
type CLI struct {
	ConfigFile string    `name:"config" help:"Path to a JSON, YAML or TOML config file" env:"EXTYPEGEN_CONFIG"`
	Log        LogConfig `embed:"" prefix:"log."`

	Generate Generate      `cmd:"" help:"Generate TypeScript declarations from source files"`
	Scan     Scan          `cmd:"" help:"Print the extracted type descriptors"`
	Config   ConfigCommand `cmd:"" help:"Configuration helpers"`
}
