package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sokinpui/rbe/internal/config"
	"github.com/sokinpui/rbe/internal/fs"
	"github.com/sokinpui/rbe/internal/logging"
	"github.com/sokinpui/rbe/internal/tui"
	"github.com/sokinpui/rbe/model"
	"github.com/sokinpui/rbe/rbe"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand creates the root rbe command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	flags := &Config{}

	rootCmd := &cobra.Command{
		Use:   "rbe",
		Short: "Refactor by example",
		Long: `rbe repeats a refactoring you already made in one commit across the rest
of a project.

'rbe prompt' turns the commit and every reference to a symbol into a prompt
for a language model. 'rbe apply' writes the code blocks of its reply back
into the files, through Neovim or directly on disk. Every apply can be
reverted with 'rbe undo'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	BindGlobalFlags(rootCmd.PersistentFlags(), flags)

	rootCmd.AddCommand(newListCommand(flags))
	rootCmd.AddCommand(newPromptCommand(flags))
	rootCmd.AddCommand(newApplyCommand(flags))
	rootCmd.AddCommand(newUndoCommand(flags))
	rootCmd.AddCommand(newRedoCommand(flags))
	rootCmd.AddCommand(newVersionCommand(info))

	return rootCmd
}

// session is the state shared by one command run.
type session struct {
	ctx   context.Context
	app   *rbe.App
	flags *Config
	close func()
}

// newSession resolves the project root, loads its configuration, sets up
// logging and creates the app.
func newSession(cmd *cobra.Command, flags *Config) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	root := flags.Root
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		if root, err = fs.FindProjectRoot(ctx, cwd); err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadOptional(flags.ConfigFile(root))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Root == "" {
		cfg.Root = root
	}
	if err := flags.Override(cfg); err != nil {
		return nil, err
	}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)
	logger.Debug("configured", logging.FieldRoot, cfg.Root, logging.FieldEditor, cfg.Editor)

	app, err := rbe.New(cfg)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	return &session{
		ctx:   ctx,
		app:   app,
		flags: flags,
		close: func() { closer.Close() },
	}, nil
}

func newLogger(cfg *config.Config) (*log.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		return logging.New(cfg.LogLevel, os.Stderr), io.NopCloser(nil), nil
	}
	return logging.NewFile(cfg.LogLevel, cfg.LogFile)
}

// useTUI reports whether progress is shown with the spinner.
func (s *session) useTUI() bool {
	return !s.flags.NoTUI && isatty.IsTerminal(os.Stderr.Fd())
}

// run executes task behind the spinner when a terminal is attached,
// otherwise it runs it directly and prints the summary with report.
func (s *session) run(title string, task func() (model.Summary, error), report func(model.Summary)) error {
	if s.useTUI() {
		_, err := tui.Run(title, func(progress rbe.ProgressUpdate) (model.Summary, error) {
			s.app.SetProgressCallback(progress)
			return task()
		})
		return err
	}

	summary, err := task()
	var detailed *rbe.DetailedError
	if errors.As(err, &detailed) {
		fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
	}
	report(summary)
	return err
}
