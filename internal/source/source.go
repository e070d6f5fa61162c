package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrEmpty is returned when the chosen source holds no text.
var ErrEmpty = errors.New("source is empty")

// Origin names where content came from.
type Origin string

const (
	OriginFile      Origin = "file"
	OriginStdin     Origin = "stdin"
	OriginClipboard Origin = "clipboard"
)

// SourceProvider determines and retrieves the reply text.
type SourceProvider struct {
	stdin     io.Reader
	isPiped   func() bool
	readClip  func() (string, error)
	writeClip func(string) error
}

// New creates a SourceProvider reading the process stdin and the system
// clipboard.
func New() *SourceProvider {
	return &SourceProvider{
		stdin:     os.Stdin,
		isPiped:   stdinIsPiped,
		readClip:  clipboard.ReadAll,
		writeClip: clipboard.WriteAll,
	}
}

func stdinIsPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// GetContent reads path when given ("-" is stdin), otherwise stdin if it is
// piped, otherwise the clipboard.
func (sp *SourceProvider) GetContent(path string) (string, Origin, error) {
	var (
		content string
		origin  Origin
		err     error
	)
	switch {
	case path == "-":
		origin = OriginStdin
		content, err = sp.readStdin()
	case path != "":
		origin = OriginFile
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			err = fmt.Errorf("failed to read reply file: %w", err)
		}
		content = string(data)
	case sp.isPiped():
		origin = OriginStdin
		content, err = sp.readStdin()
	default:
		origin = OriginClipboard
		content, err = sp.readClip()
		if err != nil {
			err = fmt.Errorf("failed to read from clipboard: %w", err)
		}
	}
	if err != nil {
		return "", origin, err
	}
	if strings.TrimSpace(content) == "" {
		return "", origin, fmt.Errorf("%w: %s", ErrEmpty, origin)
	}
	return content, origin, nil
}

func (sp *SourceProvider) readStdin() (string, error) {
	content, err := io.ReadAll(sp.stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return string(content), nil
}

// Copy puts text on the system clipboard.
func (sp *SourceProvider) Copy(text string) error {
	if err := sp.writeClip(text); err != nil {
		return fmt.Errorf("failed to write to clipboard: %w", err)
	}
	return nil
}
