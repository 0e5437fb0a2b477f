// Package config loads hatch settings from hatch.yml, HATCH_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/simonhull/firebird-suite/hatch/internal/logger"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	fileName  = "hatch"
	fileType  = "yaml"
	envPrefix = "HATCH"
)

// Keys
const (
	KeyVerbose       = "verbose"
	KeyDryRun        = "dry_run"
	KeyAssumeYes     = "assume_yes"
	KeyTimeout       = "timeout"
	KeyLockFile      = "lock_file"
	KeyCommitMessage = "commit_message"
	KeyRecipe        = "recipe"
	KeyRef           = "ref"
	KeyShallow       = "shallow"
	KeyLogFile       = "log_file"
	KeyLogLevel      = "log_level"
	KeyInteractive   = "interactive"
)

// flagNames maps keys to the flags that override them.
var flagNames = map[string]string{
	KeyVerbose:       "verbose",
	KeyDryRun:        "dry-run",
	KeyAssumeYes:     "yes",
	KeyTimeout:       "timeout",
	KeyLockFile:      "lock-file",
	KeyCommitMessage: "commit-message",
	KeyRecipe:        "recipe",
	KeyRef:           "ref",
	KeyShallow:       "shallow",
	KeyLogFile:       "log-file",
	KeyLogLevel:      "log-level",
	KeyInteractive:   "interactive",
}

// Settings are the resolved values for one run.
type Settings struct {
	Verbose       bool
	DryRun        bool
	AssumeYes     bool
	Timeout       time.Duration // Per-command default; 0 uses the executor's
	LockFile      string        // Empty uses the default lock path
	CommitMessage string        // Empty uses the recipe's
	Recipe        string        // Recipe file; empty uses the built-in recipe
	Ref           string        // Branch or tag for remote templates
	Shallow       bool
	LogFile       string // Run journal; empty disables it
	LogLevel      string
	Interactive   bool // Ask before overwriting existing files

	// File is the config file that was read, if any.
	File string
}

// Options say where to look.
type Options struct {
	Dir   string         // Target directory, searched first
	File  string         // Explicit config file; must exist when set
	Flags *pflag.FlagSet // Flags bound on top of file and environment
}

// Dir returns the per-user config directory (~/.config/hatch).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "hatch")
	}
	return filepath.Join(home, ".config", "hatch")
}

// Load resolves settings. A missing hatch.yml is not an error.
func Load(opts Options) (*Settings, error) {
	v := viper.New()
	v.SetConfigType(fileType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyShallow, true)
	v.SetDefault(KeyLogLevel, "info")

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(fileName)
		if opts.Dir != "" {
			v.AddConfigPath(opts.Dir)
		}
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if opts.Flags != nil {
		for key, name := range flagNames {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	var timeout time.Duration
	if raw := v.Get(KeyTimeout); raw != nil {
		d, err := cast.ToDurationE(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		timeout = d
	}
	if timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", timeout)
	}

	s := &Settings{
		Verbose:       v.GetBool(KeyVerbose),
		DryRun:        v.GetBool(KeyDryRun),
		AssumeYes:     v.GetBool(KeyAssumeYes),
		Timeout:       timeout,
		LockFile:      v.GetString(KeyLockFile),
		CommitMessage: v.GetString(KeyCommitMessage),
		Recipe:        v.GetString(KeyRecipe),
		Ref:           v.GetString(KeyRef),
		Shallow:       v.GetBool(KeyShallow),
		LogFile:       v.GetString(KeyLogFile),
		LogLevel:      v.GetString(KeyLogLevel),
		Interactive:   v.GetBool(KeyInteractive),
		File:          v.ConfigFileUsed(),
	}

	if _, err := logger.ParseLevel(s.LogLevel); err != nil {
		return nil, err
	}

	// Relative paths in a config file are relative to that file.
	if s.File != "" {
		base := filepath.Dir(s.File)
		if v.InConfig(KeyRecipe) && !opts.overridden(KeyRecipe) {
			s.Recipe = relativeTo(base, s.Recipe)
		}
		if v.InConfig(KeyLogFile) && !opts.overridden(KeyLogFile) {
			s.LogFile = relativeTo(base, s.LogFile)
		}
	}
	return s, nil
}

// overridden reports whether key came from a flag or the environment.
func (o Options) overridden(key string) bool {
	if _, ok := os.LookupEnv(envPrefix + "_" + strings.ToUpper(key)); ok {
		return true
	}
	return o.Flags != nil && o.Flags.Changed(flagNames[key])
}

func relativeTo(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
