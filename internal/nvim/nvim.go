package nvim

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/neovim/go-client/nvim"

	"github.com/sokinpui/rbe/internal/logging"
)

// Options configures a Manager.
type Options struct {
	// Address of a running instance. When empty or unreachable a headless
	// instance is started.
	Address string
	// Root is the project root that relative paths are resolved against.
	Root string
	// BufferOnly leaves changes in buffers without writing them.
	BufferOnly bool
	// Progress is called after each file is processed.
	Progress func(done, total int)
}

// Manager handles the connection and interaction with a Neovim instance.
type Manager struct {
	nvim          *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string

	root       string
	bufferOnly bool
	progress   func(done, total int)
}

// New creates a new Neovim manager, connecting to an existing instance
// or starting a new headless one.
func New(ctx context.Context, opts Options) (*Manager, error) {
	logger := logging.FromContext(ctx)
	m := &Manager{
		root:       opts.Root,
		bufferOnly: opts.BufferOnly,
		progress:   opts.Progress,
	}

	// Try to connect to a running instance first.
	if opts.Address != "" {
		v, err := nvim.Dial(opts.Address)
		if err == nil {
			logger.Debug("connected to neovim", logging.FieldAddress, opts.Address)
			m.nvim = v
			return m, nil
		}
		logger.Warn("could not reach neovim, starting a headless instance",
			logging.FieldAddress, opts.Address, logging.FieldError, err)
	}

	// If that fails, start a temporary headless instance.
	tmpDir, err := os.MkdirTemp("", "rbe-nvim-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir for nvim: %w", err)
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.Command("nvim", "--headless", "--clean", "--listen", socketPath)
	if opts.Root != "" {
		cmd.Dir = opts.Root
	}
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to start headless nvim: %w. Is 'nvim' in your PATH?", err)
	}

	// Wait for the socket file to appear.
	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			cmd.Process.Kill()
			cmd.Wait()
			os.RemoveAll(tmpDir)
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	v, err := nvim.Dial(socketPath)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to connect to headless nvim: %w", err)
	}
	logger.Debug("started headless neovim", logging.FieldAddress, socketPath)

	m.nvim = v
	m.isSelfStarted = true
	m.cmd = cmd
	m.socketPath = socketPath
	if err := m.configureTempInstance(); err != nil {
		logger.Warn("could not configure headless neovim", logging.FieldError, err)
	}
	return m, nil
}

// configureTempInstance prepares a headless instance for editing files
// nobody is looking at.
func (m *Manager) configureTempInstance() error {
	b := m.nvim.NewBatch()
	b.Command("set noswapfile")
	b.Command("set hidden")
	b.Command("filetype on")
	return b.Execute()
}

// Close disconnects from Neovim and cleans up if it was self-started.
func (m *Manager) Close() error {
	var err error
	if m.nvim != nil {
		err = m.nvim.Close()
	}
	if m.isSelfStarted && m.cmd != nil && m.cmd.Process != nil {
		if killErr := m.cmd.Process.Kill(); killErr == nil {
			m.cmd.Wait()
			os.RemoveAll(filepath.Dir(m.socketPath))
		}
	}
	return err
}

// processSequentially runs fn over items in order, reporting progress, and
// stops at the first error.
func processSequentially[T any](
	ctx context.Context,
	items []T,
	fn func(item T) error,
	progressCb func(done, total int),
) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
		if progressCb != nil {
			progressCb(i+1, len(items))
		}
	}
	return nil
}

func (m *Manager) resolve(file string) string {
	if filepath.IsAbs(file) || m.root == "" {
		return file
	}
	return filepath.Join(m.root, filepath.FromSlash(file))
}
