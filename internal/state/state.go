package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sokinpui/rbe/internal/fs"
	"github.com/sokinpui/rbe/model"
)

const (
	stateDirName  = ".rbe"
	stateFileName = "state.rbe"
	objectsDir    = "objects"

	ActionCreate = "create"
	ActionModify = "modify"
)

// ErrConflict is returned when a file changed since the history entry was
// recorded.
var ErrConflict = errors.New("file changed since it was recorded")

// Operation records one file touched by an apply run. Hashes name objects in
// the store; an empty BeforeHash means the file did not exist.
type Operation struct {
	Path       string
	Action     string
	BeforeHash string
	AfterHash  string
}

// HistoryEntry represents one complete apply run.
type HistoryEntry struct {
	Timestamp  int64
	Operations []Operation
}

// State is the whole history plus the position of the last applied entry.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager owns the state file and the object store under <root>/.rbe.
type Manager struct {
	statePath string
	state     *State
	StateDir  string
}

// New loads the state kept under root.
func New(root string) (*Manager, error) {
	stateDir := filepath.Join(root, stateDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, objectsDir), 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// CurrentIndex is the index of the last applied entry, -1 when none is.
func (m *Manager) CurrentIndex() int {
	return m.state.CurrentIndex
}

// History returns the recorded entries, oldest first.
func (m *Manager) History() []HistoryEntry {
	return m.state.History
}

func (m *Manager) load() error {
	m.state = &State{CurrentIndex: -1}

	data, err := os.ReadFile(m.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}
	m.state.CurrentIndex = index

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", lines[0], err)
		}

		entry := HistoryEntry{Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%4 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record in entry %d", ts)
		}
		for i := 0; i < len(opLines); i += 4 {
			entry.Operations = append(entry.Operations, Operation{
				Action:     opLines[i],
				Path:       opLines[i+1],
				BeforeHash: unquoteHash(opLines[i+2]),
				AfterHash:  unquoteHash(opLines[i+3]),
			})
		}
		m.state.History = append(m.state.History, entry)
	}

	if m.state.CurrentIndex >= len(m.state.History) || m.state.CurrentIndex < -1 {
		return fmt.Errorf("invalid state file: index %d out of range", m.state.CurrentIndex)
	}
	return nil
}

func (m *Manager) save() error {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}

	for _, entry := range m.state.History {
		var b strings.Builder
		b.WriteString(strconv.FormatInt(entry.Timestamp, 10))
		for _, op := range entry.Operations {
			b.WriteString("\n" + op.Action)
			b.WriteString("\n" + op.Path)
			b.WriteString("\n" + quoteHash(op.BeforeHash))
			b.WriteString("\n" + quoteHash(op.AfterHash))
		}
		blocks = append(blocks, b.String())
	}

	content := strings.Join(blocks, "\n\n") + "\n"
	if err := fs.WriteFileAtomic(m.statePath, []byte(content)); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Empty hashes are stored as "-" so a record never has blank lines.
func quoteHash(h string) string {
	if h == "" {
		return "-"
	}
	return h
}

func unquoteHash(h string) string {
	if h == "-" {
		return ""
	}
	return h
}

// Store saves content in the object store and returns its hash.
func (m *Manager) Store(content []byte) (string, error) {
	hash := fs.HashBytes(content)
	path := m.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := fs.WriteFileAtomic(path, content); err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}
	return hash, nil
}

// Object returns stored content by hash.
func (m *Manager) Object(hash string) ([]byte, error) {
	data, err := os.ReadFile(m.objectPath(hash))
	if err != nil {
		return nil, fmt.Errorf("missing object %s: %w", hash, err)
	}
	return data, nil
}

func (m *Manager) objectPath(hash string) string {
	return filepath.Join(m.StateDir, objectsDir, hash)
}

// Snapshot records the current content of paths before they are changed.
// Missing files are recorded with an empty hash.
func (m *Manager) Snapshot(paths []string) (map[string]string, error) {
	before := make(map[string]string, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			before[p] = ""
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", p, err)
		}
		if before[p], err = m.Store(data); err != nil {
			return nil, err
		}
	}
	return before, nil
}

// CreateOperations pairs the recorded before-hashes with the current content
// of updated files.
func (m *Manager) CreateOperations(updated []string, before map[string]string) ([]Operation, error) {
	ops := make([]Operation, 0, len(updated))
	for _, p := range updated {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to record %s: %w", p, err)
		}
		after, err := m.Store(data)
		if err != nil {
			return nil, err
		}
		action := ActionModify
		if before[p] == "" {
			action = ActionCreate
		}
		ops = append(ops, Operation{
			Path:       p,
			Action:     action,
			BeforeHash: before[p],
			AfterHash:  after,
		})
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Path < ops[j].Path
	})
	return ops, nil
}

// Write adds a new history entry after the current one, dropping any
// entries that were undone.
func (m *Manager) Write(operations []Operation) error {
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}
	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		Operations: operations,
	})
	m.state.CurrentIndex++
	return m.save()
}

// UndoSnapshots returns the snapshots that revert the current entry. It
// fails with ErrConflict if any of its files changed since. The history
// pointer moves only through CommitUndo.
func (m *Manager) UndoSnapshots() ([]model.Snapshot, error) {
	if m.state.CurrentIndex < 0 {
		return nil, nil
	}
	entry := m.state.History[m.state.CurrentIndex]
	return m.snapshots(entry.Operations, func(op Operation) (string, string) {
		return op.AfterHash, op.BeforeHash
	})
}

// RedoSnapshots returns the snapshots that reapply the next undone entry.
func (m *Manager) RedoSnapshots() ([]model.Snapshot, error) {
	next := m.state.CurrentIndex + 1
	if next >= len(m.state.History) {
		return nil, nil
	}
	entry := m.state.History[next]
	return m.snapshots(entry.Operations, func(op Operation) (string, string) {
		return op.BeforeHash, op.AfterHash
	})
}

// CommitUndo moves the history pointer back by one entry.
func (m *Manager) CommitUndo() error {
	if m.state.CurrentIndex < 0 {
		return nil
	}
	m.state.CurrentIndex--
	return m.save()
}

// CommitRedo moves the history pointer forward by one entry.
func (m *Manager) CommitRedo() error {
	if m.state.CurrentIndex+1 >= len(m.state.History) {
		return nil
	}
	m.state.CurrentIndex++
	return m.save()
}

func (m *Manager) snapshots(ops []Operation, hashes func(Operation) (expect, target string)) ([]model.Snapshot, error) {
	var (
		snaps []model.Snapshot
		errs  []error
	)
	for _, op := range ops {
		expect, target := hashes(op)

		current, err := fs.GetFileSHA256(op.Path)
		if errors.Is(err, os.ErrNotExist) {
			current, err = "", nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", op.Path, err))
			continue
		}
		if current != expect {
			errs = append(errs, fmt.Errorf("%w: %s", ErrConflict, op.Path))
			continue
		}

		if target == "" {
			snaps = append(snaps, model.Snapshot{Path: op.Path, Missing: true})
			continue
		}
		content, err := m.Object(target)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		snaps = append(snaps, model.Snapshot{Path: op.Path, Content: content})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return snaps, nil
}
