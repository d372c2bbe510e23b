package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/streamfile/pkg/fs"
	"github.com/calvinalkan/streamfile/pkg/streamfile"
	"github.com/calvinalkan/streamfile/pkg/streams"
)

// ConfigFileName is the project config file looked up in the working directory.
const ConfigFileName = ".streamfile.json"

// Config is the resolved CLI configuration.
type Config struct {
	ChunkSize int
	Buffering streamfile.Buffering
	Perm      os.FileMode

	// EffectiveCwd is the absolute working directory (-C or os.Getwd).
	EffectiveCwd string

	// FS is used both for config files and for the files commands stream.
	FS      fs.FS
	Logger  *slog.Logger
	Sources ConfigSources
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string
	Project string
}

// fileConfig is the on-disk shape. Nil fields were not set.
type fileConfig struct {
	ChunkSize *int                  `json:"chunk_size,omitempty"`
	Buffering *streamfile.Buffering `json:"buffering,omitempty"`
	Perm      *string               `json:"perm,omitempty"`
}

// DefaultConfig returns the configuration used when no file sets anything.
func DefaultConfig() Config {
	return Config{
		ChunkSize: streams.DefaultChunkSize,
		Buffering: streamfile.NoBuffering(),
		Perm:      0o644,
		FS:        fs.NewReal(),
		Logger:    slog.New(slog.DiscardHandler),
	}
}

type loadConfigInput struct {
	WorkDirOverride string
	ConfigPath      string
	ChunkSize       int // 0 means no override
	Env             map[string]string
	FS              fs.FS // nil means the real filesystem
}

// loadConfig resolves configuration, later sources winning:
// defaults, global file, project file (or the explicit -c file), flags.
func loadConfig(input loadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := DefaultConfig()
	cfg.EffectiveCwd = workDir

	if input.FS != nil {
		cfg.FS = input.FS
	}

	if globalPath := globalConfigPath(input.Env); globalPath != "" {
		loaded, err := loadConfigFile(cfg.FS, &cfg, globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = globalPath
		}
	}

	projectPath := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = cfg.Resolve(input.ConfigPath)
		mustExist = true
	}

	loaded, err := loadConfigFile(cfg.FS, &cfg, projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
	}

	if input.ChunkSize != 0 {
		cfg.ChunkSize = input.ChunkSize
	}

	if cfg.ChunkSize <= 0 {
		return Config{}, fmt.Errorf("%w: chunk_size must be positive, got %d", errConfigInvalid, cfg.ChunkSize)
	}

	return cfg, nil
}

// globalConfigPath returns $XDG_CONFIG_HOME/streamfile/config.json, falling
// back to ~/.config. Empty if neither variable is set.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "streamfile", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "streamfile", "config.json")
	}

	return ""
}

// loadConfigFile merges path into cfg. A missing optional file is skipped.
func loadConfigFile(fsys fs.FS, cfg *Config, path string, mustExist bool) (bool, error) {
	if mustExist {
		exists, err := fsys.Exists(path)
		if err != nil {
			return false, fmt.Errorf("%w: %s: %w", errConfigFileRead, path, err)
		}

		if !exists {
			return false, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
		}
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		if !mustExist && errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("%w: %s: %w", errConfigFileRead, path, err)
	}

	fc, err := parseConfig(data)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	if fc.ChunkSize != nil {
		cfg.ChunkSize = *fc.ChunkSize
	}

	if fc.Buffering != nil {
		cfg.Buffering = *fc.Buffering
	}

	if fc.Perm != nil {
		perm, err := parsePerm(*fc.Perm)
		if err != nil {
			return false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
		}

		cfg.Perm = perm
	}

	return true, nil
}

func parseConfig(data []byte) (fileConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	err = json.Unmarshal(standardized, &fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return fc, nil
}

func parsePerm(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v == 0 || v > 0o777 {
		return 0, fmt.Errorf("%w: %q", errInvalidPerm, s)
	}

	return os.FileMode(v), nil
}

// Resolve makes path absolute relative to the effective working directory.
func (c *Config) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(c.EffectiveCwd, path)
}

// Options maps the config onto adapter options.
func (c *Config) Options() []streamfile.Option {
	return []streamfile.Option{
		streamfile.WithFS(c.FS),
		streamfile.WithChunkSize(c.ChunkSize),
		streamfile.WithPerm(c.Perm),
		streamfile.WithLogger(c.Logger),
		streamfile.WithSequentialHint(),
	}
}
