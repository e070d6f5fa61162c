package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sokinpui/rbe/model"
)

// FileName is the configuration file looked up in the project root.
const FileName = ".rbe.yaml"

const (
	EditorNvim = "nvim"
	EditorDisk = "disk"

	RangesTreesitter = "treesitter"
	RangesIndent     = "indent"
)

type Config struct {
	Root          string `yaml:"root"`
	Editor        string `yaml:"editor"`       // "nvim" (default) or "disk"
	NvimAddress   string `yaml:"nvim_address"` // empty = start a headless instance
	Ranges        string `yaml:"ranges"`       // "treesitter" (default) or "indent"
	MaxReferences int    `yaml:"max_references"`
	ContextLines  int    `yaml:"context_lines"` // lines of context around each mutation preview
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`

	Examples map[string]ExampleConfig `yaml:"examples"`
}

// ExampleConfig is one entry of the example registry.
type ExampleConfig struct {
	Commit      string `yaml:"commit"`
	Symbol      string `yaml:"symbol"`
	Description string `yaml:"description"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// A relative root is relative to the config file.
	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	if cfg.Root != "" {
		absRoot, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root: %w", err)
		}
		cfg.Root = absRoot
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOptional is Load that falls back to the defaults when path does not
// exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.Editor == "" {
		c.Editor = EditorNvim
	}
	if c.Ranges == "" {
		c.Ranges = RangesTreesitter
	}
	if c.MaxReferences == 0 {
		c.MaxReferences = 5
	}
	if c.ContextLines == 0 {
		c.ContextLines = 3
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}

	// Apply environment overrides
	if addr := os.Getenv("RBE_NVIM_ADDRESS"); addr != "" {
		c.NvimAddress = addr
	} else if c.NvimAddress == "" {
		c.NvimAddress = os.Getenv("NVIM_LISTEN_ADDRESS")
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Editor {
	case EditorNvim, EditorDisk:
	default:
		return fmt.Errorf("unknown editor %q (want %q or %q)", c.Editor, EditorNvim, EditorDisk)
	}
	switch c.Ranges {
	case RangesTreesitter, RangesIndent:
	default:
		return fmt.Errorf("unknown ranges provider %q (want %q or %q)", c.Ranges, RangesTreesitter, RangesIndent)
	}
	if c.MaxReferences < 0 {
		return fmt.Errorf("max_references must not be negative")
	}
	for id, ex := range c.Examples {
		if ex.Commit == "" {
			return fmt.Errorf("example %q has no commit", id)
		}
		if ex.Symbol == "" {
			return fmt.Errorf("example %q has no symbol", id)
		}
	}
	return nil
}

// ExampleList returns the registered examples sorted by id.
func (c *Config) ExampleList() []model.Example {
	ids := make([]string, 0, len(c.Examples))
	for id := range c.Examples {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.Example, 0, len(ids))
	for _, id := range ids {
		ex := c.Examples[id]
		out = append(out, model.Example{
			ID:          id,
			Commit:      ex.Commit,
			Symbol:      ex.Symbol,
			Description: ex.Description,
		})
	}
	return out
}
