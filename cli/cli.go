package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/sokinpui/rbe/internal/config"
)

// Config holds all the command-line flag values.
type Config struct {
	ConfigPath string
	Root       string
	Editor     string
	Ranges     string
	LogLevel   string
	NoTUI      bool

	// prompt
	Target string
	Copy   bool

	// apply
	Reply  string
	Yes    bool
	Buffer bool
	DryRun bool

	// list
	Verbose bool
}

// BindGlobalFlags defines the flags shared by every command.
func BindGlobalFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigPath, "config", "", fmt.Sprintf("Configuration file (default: %s in the project root).", config.FileName))
	fs.StringVarP(&cfg.Root, "root", "C", "", "Project root (default: the git work tree containing the current directory).")
	fs.StringVar(&cfg.Editor, "editor", "", "Where edits are applied: 'nvim' or 'disk'.")
	fs.StringVar(&cfg.Ranges, "ranges", "", "How references are widened to code blocks: 'treesitter' or 'indent'.")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug, info, warn or error.")
	fs.BoolVar(&cfg.NoTUI, "no-tui", false, "Disable loading spinner and progress updates.")
}

// BindPromptFlags defines the flags of the prompt command.
func BindPromptFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Target, "target", "t", "", "Symbol whose references get the same change.")
	fs.BoolVar(&cfg.Copy, "copy", false, "Copy the prompt to the clipboard instead of printing it.")
}

// BindApplyFlags defines the flags of the apply command.
func BindApplyFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Reply, "reply", "f", "", "Reply file, '-' for stdin (default: piped stdin, then the clipboard).")
	fs.BoolVarP(&cfg.Yes, "yes", "y", false, "Apply without asking for confirmation.")
	fs.BoolVarP(&cfg.Buffer, "buffer", "b", false, "Update buffers in Neovim without saving them to disk (changes are saved by default).")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Print the planned changes without applying them.")
}

// BindListFlags defines the flags of the list command.
func BindListFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Show the subject of each example commit.")
}

// ConfigFile returns the configuration path to load for root.
func (c *Config) ConfigFile(root string) string {
	if c.ConfigPath != "" {
		return c.ConfigPath
	}
	return filepath.Join(root, config.FileName)
}

// Override applies flag values on top of a loaded configuration.
func (c *Config) Override(cfg *config.Config) error {
	if c.Root != "" {
		abs, err := filepath.Abs(c.Root)
		if err != nil {
			return fmt.Errorf("invalid root %q: %w", c.Root, err)
		}
		cfg.Root = abs
	}
	if c.Editor != "" {
		cfg.Editor = c.Editor
	}
	if c.Ranges != "" {
		cfg.Ranges = c.Ranges
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.Buffer && cfg.Editor != config.EditorNvim {
		return fmt.Errorf("--buffer needs the nvim editor, not %q", cfg.Editor)
	}
	return cfg.Validate()
}
