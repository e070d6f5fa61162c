package rbe

import (
	"context"
	"fmt"

	"github.com/sokinpui/rbe/internal/config"
)

// Config for using rbe as a library.
type Config struct {
	// Project root the reply's paths are relative to.
	Root string
	// Editor is "disk" (default) or "nvim".
	Editor string
	// Update buffers without saving them to disk. Needs the nvim editor.
	Buffer bool
}

// Apply parses a reply and applies its edits under config.Root, recording
// the run for undo. It returns a summary of the operations in a map.
func Apply(ctx context.Context, reply string, config Config) (map[string][]string, error) {
	cfg := appConfig(config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rbe app: %w", err)
	}

	plan, err := app.Plan(ctx, reply)
	if err != nil {
		return nil, err
	}
	summary, err := app.ApplyPlan(ctx, plan, config.Buffer)
	if err != nil {
		return nil, err
	}

	result := map[string][]string{
		"Created":  summary.Created,
		"Modified": summary.Modified,
		"Failed":   summary.Failed,
		"Notes":    summary.Notes,
	}

	return result, nil
}

func appConfig(c Config) *config.Config {
	cfg := config.Default()
	cfg.Root = c.Root
	cfg.Editor = config.EditorDisk
	if c.Editor != "" {
		cfg.Editor = c.Editor
	}
	return cfg
}
