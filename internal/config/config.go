package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const appDirName = "mindmark"

// LogDisabled as log.file turns logging off.
const LogDisabled = "-"

type Config struct {
	Gate    GateConfig    `yaml:"gate"`
	Dialog  DialogConfig  `yaml:"dialog"`
	Preview PreviewConfig `yaml:"preview"`
	Export  ExportConfig  `yaml:"export"`
	Log     LogConfig     `yaml:"log"`
}

type GateConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type DialogConfig struct {
	StartDir   string `yaml:"start_dir"`
	ShowHidden bool   `yaml:"show_hidden"`
}

type PreviewConfig struct {
	Style    string `yaml:"style"`
	WordWrap int    `yaml:"word_wrap"`
}

type ExportConfig struct {
	OpenAfterSave bool     `yaml:"open_after_save"`
	OpenCommand   []string `yaml:"open_command"`
}

type LogConfig struct {
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gate: GateConfig{
			PollInterval: 50 * time.Millisecond,
			Timeout:      5 * time.Second,
		},
		Preview: PreviewConfig{
			Style:    "auto",
			WordWrap: 80,
		},
		Export: ExportConfig{
			OpenAfterSave: true,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file or an
// empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Gate.Timeout <= 0 {
		return fmt.Errorf("gate.timeout must be positive, got %v", c.Gate.Timeout)
	}
	if c.Gate.PollInterval <= 0 || c.Gate.PollInterval > c.Gate.Timeout {
		return fmt.Errorf("gate.poll_interval must be in (0, %v], got %v", c.Gate.Timeout, c.Gate.PollInterval)
	}
	if c.Preview.WordWrap < 0 {
		return fmt.Errorf("preview.word_wrap must not be negative, got %d", c.Preview.WordWrap)
	}
	return nil
}

// StartDir returns the directory dialogs open in: the configured one, or
// the working directory.
func (c *Config) StartDir() string {
	if c.Dialog.StartDir != "" {
		return ExpandHome(c.Dialog.StartDir)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// LogFile returns the log destination, or "" when logging is disabled.
func (c *Config) LogFile() string {
	switch c.Log.File {
	case LogDisabled:
		return ""
	case "":
		return filepath.Join(defaultStateDir(), appDirName+".log")
	default:
		return ExpandHome(c.Log.File)
	}
}

// DefaultPath is where the config file is looked up when none is given.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirName, "config.yaml")
	}
	return "config.yaml"
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !(len(p) > 1 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator)) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, appDirName)
	}
	return filepath.Join(os.TempDir(), appDirName)
}
