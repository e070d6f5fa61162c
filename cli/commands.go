package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sokinpui/rbe/internal/logging"
	"github.com/sokinpui/rbe/internal/ui"
	"github.com/sokinpui/rbe/model"
	"github.com/sokinpui/rbe/rbe"
)

func newListCommand(flags *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered examples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.close()

			infos, err := s.app.List(s.ctx, flags.Verbose)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				ui.Warning("No examples registered. Add them under 'examples:' in %s.", flags.ConfigFile(s.app.Root()))
				return nil
			}
			for _, info := range infos {
				printExample(info, flags.Verbose)
			}
			return nil
		},
	}
	BindListFlags(cmd.Flags(), flags)
	return cmd
}

func printExample(info rbe.ExampleInfo, verbose bool) {
	ui.Path("%s", info.ID)
	ui.Info("  commit %s, symbol %s", info.Commit, info.Symbol)
	if info.Description != "" {
		ui.Info("  %s", info.Description)
	}
	if verbose && info.Subject != "" {
		ui.Info("  %s", info.Subject)
	}
}

func newPromptCommand(flags *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt <example>",
		Short: "Build a prompt that repeats an example across the project",
		Long: `Build a prompt from the diff of a registered example and every block of
code referencing the target symbol (the example's own symbol by default).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.close()

			text, err := s.app.Prompt(s.ctx, args[0], flags.Target)
			if err != nil {
				return err
			}
			if !flags.Copy {
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			if err := s.app.Source().Copy(text); err != nil {
				return err
			}
			ui.Success("Prompt copied to clipboard.")
			return nil
		},
	}
	BindPromptFlags(cmd.Flags(), flags)
	return cmd
}

func newApplyCommand(flags *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the code blocks of a reply",
		Long: `Apply the code blocks of a reply to the project. The reply is read from
--reply, piped stdin or the clipboard, in that order. Each change is shown
for confirmation unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.close()
			return s.apply()
		},
	}
	BindApplyFlags(cmd.Flags(), flags)
	return cmd
}

func (s *session) apply() error {
	logger := logging.FromContext(s.ctx)

	reply, err := s.app.ReadReply(s.ctx, s.flags.Reply)
	if err != nil {
		return err
	}
	plan, err := s.app.Plan(s.ctx, reply)
	if err != nil {
		return err
	}

	if s.flags.DryRun {
		logger.Debug("dry run", logging.FieldDryRun, true, logging.FieldMutations, len(plan.Mutations))
		changes, err := s.app.Preview(s.ctx, plan)
		if err != nil {
			return err
		}
		for _, c := range changes {
			ui.PrintChange(c)
		}
		ui.PrintNotes(plan.Notes)
		ui.PrintUpdateSummary(model.Summary{
			Message: fmt.Sprintf("Dry run: %d change(s) to %d file(s).", len(plan.Mutations), len(plan.Files())),
		})
		return nil
	}

	if !s.flags.Yes && len(plan.Mutations) > 0 {
		in, err := confirmInput()
		if err != nil {
			return err
		}
		err = s.app.Confirm(s.ctx, plan, in)
		in.Close()
		if errors.Is(err, rbe.ErrRejected) {
			ui.Warning("Aborted. No files were changed.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	return s.run("Applying", func() (model.Summary, error) {
		return s.app.ApplyPlan(s.ctx, plan, s.flags.Buffer)
	}, ui.PrintUpdateSummary)
}

// confirmInput returns where answers are read from. Stdin may carry the
// reply, so a pipe falls back to the terminal.
func confirmInput() (io.ReadCloser, error) {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return io.NopCloser(os.Stdin), nil
	}
	return ui.OpenTTY()
}

func newUndoCommand(flags *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the last applied reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.close()
			return s.run("Reverting", func() (model.Summary, error) {
				return s.app.Undo(s.ctx)
			}, ui.PrintRevertSummary)
		},
	}
}

func newRedoCommand(flags *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Reapply the last reverted reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.close()
			return s.run("Redoing", func() (model.Summary, error) {
				return s.app.Redo(s.ctx)
			}, ui.PrintRedoSummary)
		},
	}
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			logger := log.NewWithOptions(cmd.OutOrStdout(), log.Options{
				ReportTimestamp: false,
				ReportCaller:    false,
			})
			logger.SetLevel(log.InfoLevel)

			logger.Info("rbe",
				logging.FieldVersion, info.Version,
				logging.FieldCommit, info.Commit,
				logging.FieldBuilt, info.Date,
			)
		},
	}
}
