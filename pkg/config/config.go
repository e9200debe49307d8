// Package config resolves emoc settings. Flags win over environment
// variables, which win over built-in defaults.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chazu/emoc/pkg/logger"
	"github.com/chazu/emoc/pkg/native"
	"github.com/chazu/emoc/pkg/optimizer"
	"github.com/chazu/emoc/pkg/runtime"
)

// Environment variables read by FromEnv.
const (
	EnvCacheDB   = "EMOC_CACHE_DB"
	EnvNativeDir = "EMOC_NATIVE_DIR"
	EnvLogLevel  = "EMOC_LOG_LEVEL"
	EnvLogFormat = "EMOC_LOG_FORMAT"
	EnvMaxDepth  = "EMOC_MAX_DEPTH"
)

// Config holds every setting the CLI understands.
type Config struct {
	CacheDB          string // artifact store path; empty uses the store default
	NativeDir        string // plugin directory; empty disables plugins
	LogLevel         string // debug, info, warn, error
	LogFormat        string // text or json
	LogFile          string // log here instead of stderr
	MaxDepth         int    // call depth limit
	MaxSteps         int    // per-frame instruction budget, 0 for none
	NoCheck          bool   // skip the semantic gate
	NoCache          bool   // bypass the artifact store
	KeepAcrossLabels bool   // optimizer keeps constants across labels
	Builtins         bool   // register abs, max, min, len
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LogLevel:  "warn",
		LogFormat: "text",
		MaxDepth:  runtime.DefaultMaxDepth,
		Builtins:  true,
	}
}

// FromEnv returns the defaults overridden by the environment.
func FromEnv() (Config, error) {
	c := Default()
	if v := os.Getenv(EnvCacheDB); v != "" {
		c.CacheDB = v
	}
	if v := os.Getenv(EnvNativeDir); v != "" {
		c.NativeDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(EnvMaxDepth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvMaxDepth, err)
		}
		c.MaxDepth = n
	}
	return c, c.Validate()
}

// RegisterFlags binds c's fields to fs, using the current values as flag
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.CacheDB, "cache-db", c.CacheDB, "artifact cache database (env "+EnvCacheDB+")")
	fs.StringVar(&c.NativeDir, "native-dir", c.NativeDir, "directory of native plugins (env "+EnvNativeDir+")")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error (env "+EnvLogLevel+")")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json (env "+EnvLogFormat+")")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "write logs to this file instead of stderr")
	fs.IntVar(&c.MaxDepth, "max-depth", c.MaxDepth, "maximum call depth (env "+EnvMaxDepth+")")
	fs.IntVar(&c.MaxSteps, "max-steps", c.MaxSteps, "maximum instructions per frame, 0 for no limit")
	fs.BoolVar(&c.NoCheck, "no-check", c.NoCheck, "skip semantic checks")
	fs.BoolVar(&c.NoCache, "no-cache", c.NoCache, "do not read or write the artifact cache")
	fs.BoolVar(&c.KeepAcrossLabels, "keep-across-labels", c.KeepAcrossLabels, "keep known constants across labels when optimizing")
	fs.BoolVar(&c.Builtins, "builtins", c.Builtins, "provide builtin functions (abs, max, min, len)")
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q (use text or json)", c.LogFormat)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max steps must not be negative, got %d", c.MaxSteps)
	}
	return nil
}

// Logger returns the logger configuration, writing to w.
func (c Config) Logger(w io.Writer) logger.Config {
	level, _ := logger.ParseLevel(c.LogLevel)
	cfg := logger.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.LogFormat
	cfg.Output = w
	cfg.LogFile = c.LogFile
	return cfg
}

// Optimizer returns the optimizer options.
func (c Config) Optimizer() optimizer.Options {
	return optimizer.Options{KeepAcrossLabels: c.KeepAcrossLabels}
}

// Handlers builds the registry for calls a program does not define, or nil
// when neither builtins nor plugins are enabled.
func (c Config) Handlers() *runtime.HandlerRegistry {
	if !c.Builtins && c.NativeDir == "" {
		return nil
	}
	hr := runtime.NewHandlerRegistry()
	if c.Builtins {
		runtime.RegisterBuiltins(hr)
	}
	if c.NativeDir != "" {
		hr.AddResolver(native.NewLoader(c.NativeDir))
	}
	return hr
}

// Externals names the calls served outside a program: the builtins when
// enabled and every plugin in NativeDir. The semantic gate accepts calls
// to them.
func (c Config) Externals() ([]string, error) {
	var names []string
	if c.Builtins {
		hr := runtime.NewHandlerRegistry()
		runtime.RegisterBuiltins(hr)
		names = hr.ListHandlers()
	}
	if c.NativeDir != "" {
		plugins, err := native.NewLoader(c.NativeDir).Available()
		if err != nil {
			return names, err
		}
		names = append(names, plugins...)
	}
	return names, nil
}

// Runtime returns the machine configuration. Diagnostics go to diag.
func (c Config) Runtime(diag io.Writer) *runtime.Config {
	return &runtime.Config{
		MaxDepth:    c.MaxDepth,
		MaxSteps:    c.MaxSteps,
		Handlers:    c.Handlers(),
		Diagnostics: diag,
	}
}
