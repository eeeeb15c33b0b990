// Package config loads the compiler's tunables the way the teacher's
// pkg/config.Load loads node configuration: viper-backed, YAML-tagged,
// environment-overridable. Only CompilerName reaches the pipeline (through
// pkg/compiler.CompileWithOptions); sema and codegen apply their own fixed
// bounds and do not read MaxInlineDepth or ShaChunkBound.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/arkade-os/arkade-script/internal/errs"
)

// Config holds the compiler's tunables. None of these change the
// language semantics spec.md defines; they bound compiler-internal
// choices (how many internal-call inlining levels to allow before
// giving up, the sha256 streaming chunk size, the identity string
// embedded in every artifact).
type Config struct {
	MaxInlineDepth int    `mapstructure:"max_inline_depth" yaml:"max_inline_depth"`
	ShaChunkBound  int    `mapstructure:"sha_chunk_bound" yaml:"sha_chunk_bound"`
	CompilerName   string `mapstructure:"compiler_name" yaml:"compiler_name"`
}

// Default returns the built-in tunables; Compile uses these when the
// host never calls Load.
func Default() *Config {
	return &Config{
		MaxInlineDepth: 32,
		ShaChunkBound:  520,
		CompilerName:   "arkadec",
	}
}

// Load reads tunables from an optional config file (any format viper
// supports: yaml, json, toml) and from ARKADEC_-prefixed environment
// variables, falling back to Default for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARKADEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("max_inline_depth", d.MaxInlineDepth)
	v.SetDefault("sha_chunk_bound", d.ShaChunkBound)
	v.SetDefault("compiler_name", d.CompilerName)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Configuration(0, "reading config file %q: viper: %s", configPath, err.Error())
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.Configuration(0, "parsing configuration: %s", err.Error())
	}
	return cfg, nil
}

// LoadFromEnv is Load("") — environment and built-in defaults only, no
// config file. Mirrors the teacher's pkg/config.LoadFromEnv shape.
func LoadFromEnv() (*Config, error) {
	return Load("")
}
