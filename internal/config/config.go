// Package config loads the bagextract command configuration from defaults, an optional
// config file, BAGEXTRACT_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/lherman-cs/bagextract/internal/logging"
)

const EnvPrefix = "BAGEXTRACT"

// Output formats.
const (
	FormatJSON   = "json"
	FormatYAML   = "yaml"
	FormatPretty = "pretty"
)

type Config struct {
	// Format is one of json, yaml, pretty
	Format string `mapstructure:"format"`
	// Output is the destination file, stdout when empty. A .gz or .zst suffix compresses it.
	Output string `mapstructure:"output"`
	// Min and Max bound the message indices to read. A negative Max reads to the end.
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
	// Types adds the message type of every topic to the topic listing
	Types bool           `mapstructure:"types"`
	Log   logging.Config `mapstructure:"log"`
}

// Window returns the inclusive index window to read.
func (cfg *Config) Window() (int, int) {
	if cfg.Max < 0 {
		return cfg.Min, math.MaxInt
	}
	return cfg.Min, cfg.Max
}

func (cfg *Config) Validate() error {
	switch cfg.Format {
	case FormatJSON, FormatYAML, FormatPretty:
	default:
		return fmt.Errorf("unknown format %q, expected one of json, yaml, pretty", cfg.Format)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"format":    "format",
	"output":    "output",
	"min":       "min",
	"max":       "max",
	"types":     "types",
	"log-level": "log.level",
	"log-file":  "log.file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("format", FormatJSON)
	v.SetDefault("output", "")
	v.SetDefault("min", 0)
	v.SetDefault("max", -1)
	v.SetDefault("types", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.compress", true)
}

// Load builds the configuration. flags may be nil. When the flag set has a "config" flag
// that is set, the file it names is read.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", f.Value.String(), err)
			}
		}

		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
