package rbe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/sokinpui/rbe/internal/config"
	"github.com/sokinpui/rbe/internal/exemplar"
	"github.com/sokinpui/rbe/internal/expand"
	"github.com/sokinpui/rbe/internal/fs"
	"github.com/sokinpui/rbe/internal/logging"
	"github.com/sokinpui/rbe/internal/nvim"
	"github.com/sokinpui/rbe/internal/parser"
	"github.com/sokinpui/rbe/internal/patcher"
	"github.com/sokinpui/rbe/internal/prompt"
	"github.com/sokinpui/rbe/internal/source"
	"github.com/sokinpui/rbe/internal/state"
	"github.com/sokinpui/rbe/internal/symbols"
	"github.com/sokinpui/rbe/internal/ui"
	"github.com/sokinpui/rbe/model"
)

// ErrRejected is returned when the user declines a confirmation.
var ErrRejected = errors.New("changes rejected")

// Editor applies mutations and restores snapshots as one unit each.
type Editor interface {
	Apply(ctx context.Context, muts []model.Mutation) ([]string, error)
	Restore(ctx context.Context, snapshots []model.Snapshot) ([]string, error)
	Close() error
}

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// EditorFactory opens the editor for one run.
type EditorFactory func(ctx context.Context, opts EditorOptions) (Editor, error)

// EditorOptions is passed to an EditorFactory.
type EditorOptions struct {
	BufferOnly bool
	Progress   ProgressUpdate
}

// RangeFactory opens the selection-range provider for one prompt. The
// returned closer may be nil.
type RangeFactory func(ctx context.Context) (expand.Provider, io.Closer, error)

// App orchestrates the entire application logic.
type App struct {
	cfg              *config.Config
	root             string
	pathResolver     *fs.PathResolver
	registry         *exemplar.Registry
	sourceProvider   *source.SourceProvider
	stateManager     *state.Manager
	newEditor        EditorFactory
	newRanges        RangeFactory
	languageServer   expand.SelectionRanger
	progressCallback ProgressUpdate
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// Option customises an App.
type Option func(*App)

// WithEditor replaces the editor chosen by the configuration.
func WithEditor(f EditorFactory) Option {
	return func(a *App) { a.newEditor = f }
}

// WithRanges replaces the selection-range provider chosen by the
// configuration.
func WithRanges(f RangeFactory) Option {
	return func(a *App) { a.newRanges = f }
}

// WithLanguageServer asks client for selection ranges before the configured
// provider.
func WithLanguageServer(client expand.SelectionRanger) Option {
	return func(a *App) { a.languageServer = client }
}

// WithSource replaces the reply source.
func WithSource(sp *source.SourceProvider) Option {
	return func(a *App) { a.sourceProvider = sp }
}

// New creates a new App for cfg. cfg.Root must be set.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg.Root == "" {
		return nil, errors.New("project root is not set")
	}
	pathResolver, err := fs.NewPathResolver(cfg.Root)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:            cfg,
		root:           pathResolver.Root(),
		pathResolver:   pathResolver,
		registry:       exemplar.NewRegistry(cfg.ExampleList()),
		sourceProvider: source.New(),
	}
	a.newEditor = a.configuredEditor
	a.newRanges = a.configuredRanges
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Root returns the project root.
func (a *App) Root() string {
	return a.root
}

// Source returns the reply source.
func (a *App) Source() *source.SourceProvider {
	return a.sourceProvider
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

func (a *App) configuredEditor(ctx context.Context, opts EditorOptions) (Editor, error) {
	if a.cfg.Editor == config.EditorDisk {
		return fs.NewWriter(), nil
	}
	return nvim.New(ctx, nvim.Options{
		Address:    a.cfg.NvimAddress,
		Root:       a.root,
		BufferOnly: opts.BufferOnly,
		Progress:   opts.Progress,
	})
}

func (a *App) configuredRanges(ctx context.Context) (expand.Provider, io.Closer, error) {
	var providers []expand.Provider
	if a.languageServer != nil {
		providers = append(providers, &expand.LSPProvider{Root: a.root, Client: a.languageServer})
	}
	indent := &expand.IndentProvider{Root: a.root}

	if a.cfg.Ranges == config.RangesIndent {
		return expand.FirstOf(append(providers, indent)...), nil, nil
	}
	manager, err := nvim.New(ctx, nvim.Options{Address: a.cfg.NvimAddress, Root: a.root})
	if err != nil {
		logging.FromContext(ctx).Warn("treesitter ranges unavailable, using indentation", logging.FieldError, err)
		return expand.FirstOf(append(providers, indent)...), nil, nil
	}
	return expand.FirstOf(append(providers, manager, indent)...), manager, nil
}

func (a *App) history() (*state.Manager, error) {
	if a.stateManager != nil {
		return a.stateManager, nil
	}
	m, err := state.New(a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	a.stateManager = m
	return m, nil
}

// guard converts a panic in fn into a *DetailedError.
func guard[T any](fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()
	return fn()
}

// --- Examples ---

// ExampleInfo is one registry entry for display.
type ExampleInfo struct {
	model.Example
	Subject string // empty unless requested
}

// List returns the registered examples. With subjects, each example commit
// is looked up for its subject line.
func (a *App) List(ctx context.Context, subjects bool) ([]ExampleInfo, error) {
	return guard(func() ([]ExampleInfo, error) {
		logger := logging.FromContext(ctx)
		var out []ExampleInfo
		for _, ex := range a.registry.List() {
			info := ExampleInfo{Example: ex}
			if subjects {
				text, err := exemplar.Show(ctx, a.root, ex.Commit)
				if err != nil {
					logger.Warn("could not read example commit", logging.FieldExample, ex.ID, logging.FieldError, err)
				} else if commit, err := exemplar.ParseCommit(text); err == nil {
					info.Subject = commit.Subject
				}
			}
			out = append(out, info)
		}
		return out, nil
	})
}

// --- Prompt ---

// Prompt builds the prompt that asks for the change of example id to be
// repeated for every reference to target.
func (a *App) Prompt(ctx context.Context, id, target string) (string, error) {
	return guard(func() (string, error) {
		logger := logging.FromContext(ctx)

		ex, err := a.registry.Lookup(id)
		if err != nil {
			return "", err
		}
		if target == "" {
			target = ex.Symbol
		}

		exm, err := exemplar.Load(ctx, a.root, ex)
		if err != nil {
			return "", err
		}
		logger.Debug("loaded example", logging.FieldExample, ex.ID, logging.FieldBlocks, len(exm.Blocks))

		refs, err := symbols.Find(ctx, a.root, target, symbols.Options{Max: a.cfg.MaxReferences})
		if err != nil {
			return "", err
		}
		if len(refs) == 0 {
			return "", fmt.Errorf("no references to %s under %s", target, a.root)
		}

		locs, err := a.expandAll(ctx, refs)
		if err != nil {
			return "", err
		}
		snippets, err := prompt.Snippets(a.root, locs)
		if err != nil {
			return "", err
		}
		return prompt.Build(prompt.Input{Exemplar: exm, Target: target, Snippets: snippets})
	})
}

// expandAll widens every reference to its enclosing block. A reference
// without a selection range is quoted as its own line.
func (a *App) expandAll(ctx context.Context, refs []model.Location) ([]model.Location, error) {
	logger := logging.FromContext(ctx)

	provider, closer, err := a.newRanges(ctx)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}

	out := make([]model.Location, 0, len(refs))
	for _, ref := range refs {
		loc, err := expand.Location(ctx, provider, ref)
		if err != nil {
			if !errors.Is(err, expand.ErrNoRange) {
				return nil, err
			}
			logger.Debug("no enclosing block", logging.FieldFile, ref.File, logging.FieldLine, ref.Range.Start.Line+1)
			loc = ref
		}
		out = append(out, loc)
	}
	return out, nil
}

// --- Apply ---

// Plan is a parsed reply ready to be applied.
type Plan struct {
	Edits     []model.EditInstruction
	Mutations []model.Mutation
	Notes     []string
}

// Files returns the distinct target paths in first-appearance order.
func (p *Plan) Files() []string {
	paths, _ := patcher.GroupByFile(p.Mutations)
	return paths
}

// ReadReply reads the reply text from path, stdin or the clipboard.
func (a *App) ReadReply(ctx context.Context, path string) (string, error) {
	content, origin, err := a.sourceProvider.GetContent(path)
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Debug("read reply", logging.FieldOrigin, origin, logging.FieldCount, len(content))
	return content, nil
}

// Plan parses a reply and reconciles its edits against the project root.
// A reply with any malformed marker is refused as a whole.
func (a *App) Plan(ctx context.Context, reply string) (*Plan, error) {
	return guard(func() (*Plan, error) {
		logger := logging.FromContext(ctx)

		res, err := parser.ParseEdits(reply)
		if err != nil {
			return nil, err
		}
		if err := res.Err(); err != nil {
			return nil, fmt.Errorf("reply has %d malformed block(s), nothing applied: %w", len(res.Failures), err)
		}

		muts, err := patcher.ReconcileAll(a.root, res.Edits)
		if err != nil {
			return nil, err
		}
		if err := patcher.CheckOverlaps(muts); err != nil {
			return nil, err
		}

		notes, err := parser.ExtractNotes([]byte(reply))
		if err != nil {
			logger.Warn("could not extract notes", logging.FieldError, err)
		}

		logger.Debug("planned reply", logging.FieldEdits, len(res.Edits), logging.FieldMutations, len(muts))
		return &Plan{Edits: res.Edits, Mutations: muts, Notes: notes}, nil
	})
}

// Preview renders every mutation of the plan against the current files and
// warns about inserts whose content is already there.
func (a *App) Preview(ctx context.Context, plan *Plan) ([]ui.Change, error) {
	logger := logging.FromContext(ctx)
	files := make(map[string][]string)

	changes := make([]ui.Change, 0, len(plan.Mutations))
	for _, m := range plan.Mutations {
		lines, ok := files[m.Path]
		if !ok {
			var err error
			if lines, _, err = fs.ReadLines(m.Path); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", m.File, err)
			}
			files[m.Path] = lines
		}

		if patcher.AlreadyPresent(lines, m) {
			logger.Warn("inserted lines already exist in file", logging.FieldFile, m.File, logging.FieldLine, m.Start+1)
		}
		before, after, err := patcher.Preview(lines, m, a.cfg.ContextLines)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		changes = append(changes, ui.Change{Title: m.String(), Before: before, After: after})
	}
	return changes, nil
}

// Confirm asks about every change of the plan and returns ErrRejected if
// one is declined.
func (a *App) Confirm(ctx context.Context, plan *Plan, in io.Reader) error {
	changes, err := a.Preview(ctx, plan)
	if err != nil {
		return err
	}
	ok, err := ui.ConfirmChanges(in, changes)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRejected
	}
	return nil
}

// ApplyPlan applies every mutation of the plan through the editor and
// records the run for undo unless changes stay in buffers.
func (a *App) ApplyPlan(ctx context.Context, plan *Plan, bufferOnly bool) (model.Summary, error) {
	return guard(func() (model.Summary, error) {
		if len(plan.Mutations) == 0 {
			return model.Summary{Notes: plan.Notes, Message: "No valid changes were generated. Nothing to do."}, nil
		}

		files := plan.Files()
		var (
			history *state.Manager
			before  map[string]string
			err     error
		)
		if !bufferOnly {
			if history, err = a.history(); err != nil {
				return model.Summary{}, err
			}
			if before, err = history.Snapshot(files); err != nil {
				return model.Summary{}, err
			}
		}

		editor, err := a.newEditor(ctx, EditorOptions{BufferOnly: bufferOnly, Progress: a.progress(len(files))})
		if err != nil {
			return model.Summary{}, err
		}
		defer editor.Close()

		written, err := editor.Apply(ctx, plan.Mutations)
		if err != nil {
			return model.Summary{Failed: a.pathResolver.RelAll(files)}, err
		}

		summary := model.Summary{Notes: plan.Notes}
		if bufferOnly {
			summary.Modified = a.pathResolver.RelAll(written)
			summary.Message = "Changes are left unsaved in Neovim buffers."
			return summary, nil
		}

		if len(written) > 0 {
			ops, err := history.CreateOperations(written, before)
			if err != nil {
				return model.Summary{}, err
			}
			if err := history.Write(ops); err != nil {
				return model.Summary{}, err
			}
		}
		for _, p := range written {
			if before[p] == "" {
				summary.Created = append(summary.Created, a.pathResolver.Rel(p))
			} else {
				summary.Modified = append(summary.Modified, a.pathResolver.Rel(p))
			}
		}
		return summary, nil
	})
}

// Apply reads, plans and applies a reply without confirmation.
func (a *App) Apply(ctx context.Context, replyPath string, bufferOnly bool) (model.Summary, error) {
	reply, err := a.ReadReply(ctx, replyPath)
	if err != nil {
		return model.Summary{}, err
	}
	plan, err := a.Plan(ctx, reply)
	if err != nil {
		return model.Summary{}, err
	}
	return a.ApplyPlan(ctx, plan, bufferOnly)
}

// --- History ---

// Undo reverts the last applied reply.
func (a *App) Undo(ctx context.Context) (model.Summary, error) {
	return guard(func() (model.Summary, error) {
		history, err := a.history()
		if err != nil {
			return model.Summary{}, err
		}
		snaps, err := history.UndoSnapshots()
		if err != nil {
			return model.Summary{Message: "Nothing was undone."}, err
		}
		if len(snaps) == 0 {
			return model.Summary{Message: "No operation to undo."}, nil
		}

		restored, err := a.restore(ctx, snaps)
		if err != nil {
			return model.Summary{Failed: a.snapshotPaths(snaps)}, err
		}
		if err := history.CommitUndo(); err != nil {
			return model.Summary{}, err
		}
		return model.Summary{
			Modified: a.pathResolver.RelAll(restored),
			Message:  "Undid last operation.",
		}, nil
	})
}

// Redo reapplies the last undone reply.
func (a *App) Redo(ctx context.Context) (model.Summary, error) {
	return guard(func() (model.Summary, error) {
		history, err := a.history()
		if err != nil {
			return model.Summary{}, err
		}
		snaps, err := history.RedoSnapshots()
		if err != nil {
			return model.Summary{Message: "Nothing was redone."}, err
		}
		if len(snaps) == 0 {
			return model.Summary{Message: "No operation to redo."}, nil
		}

		restored, err := a.restore(ctx, snaps)
		if err != nil {
			return model.Summary{Failed: a.snapshotPaths(snaps)}, err
		}
		if err := history.CommitRedo(); err != nil {
			return model.Summary{}, err
		}
		return model.Summary{
			Modified: a.pathResolver.RelAll(restored),
			Message:  "Redid last undone operation.",
		}, nil
	})
}

func (a *App) restore(ctx context.Context, snaps []model.Snapshot) ([]string, error) {
	editor, err := a.newEditor(ctx, EditorOptions{Progress: a.progress(len(snaps))})
	if err != nil {
		return nil, err
	}
	defer editor.Close()
	return editor.Restore(ctx, snaps)
}

func (a *App) snapshotPaths(snaps []model.Snapshot) []string {
	paths := make([]string, len(snaps))
	for i, s := range snaps {
		paths[i] = a.pathResolver.Rel(s.Path)
	}
	return paths
}

func (a *App) progress(total int) ProgressUpdate {
	if a.progressCallback == nil {
		return nil
	}
	a.progressCallback(0, total)
	return a.progressCallback
}
