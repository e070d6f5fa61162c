package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sokinpui/rbe/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	PromptColor  = color.New(color.FgMagenta)
	AddedColor   = color.New(color.FgGreen)
	RemovedColor = color.New(color.FgRed)
)

var out io.Writer = os.Stderr

// SetOutput redirects all printers. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(out, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(out, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(out, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(out, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(out, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(out, "  "+format+"\n", a...)
}

func Prompt(format string, a ...interface{}) string {
	return PromptColor.Sprintf(format, a...)
}

func list(paths []string) {
	for _, f := range paths {
		fmt.Fprintf(out, "  - %s\n", f)
	}
}

// --- Summaries ---

func PrintUpdateSummary(s model.Summary) {
	Header("\n--- Update Summary ---")

	if len(s.Modified) == 0 && len(s.Created) == 0 && len(s.Failed) == 0 {
		Info("No files were updated.")
	}
	if len(s.Modified) > 0 {
		Success("Modified %d file(s):", len(s.Modified))
		list(s.Modified)
	}
	if len(s.Created) > 0 {
		Success("Created %d new file(s):", len(s.Created))
		list(s.Created)
	}
	if len(s.Failed) > 0 {
		Error("Failed to process %d file(s):", len(s.Failed))
		list(s.Failed)
	}
	PrintNotes(s.Notes)
	if s.Message != "" {
		Info("%s", s.Message)
	}
}

func PrintRevertSummary(s model.Summary) {
	printHistorySummary("Revert", "reverted", s)
}

func PrintRedoSummary(s model.Summary) {
	printHistorySummary("Redo", "redid", s)
}

func printHistorySummary(title, verb string, s model.Summary) {
	Header("\n--- %s Summary ---", title)
	if len(s.Modified) > 0 {
		Success("Successfully %s %d file(s):", verb, len(s.Modified))
		list(s.Modified)
	}
	if len(s.Failed) > 0 {
		Error("Failed on %d file(s):", len(s.Failed))
		list(s.Failed)
	}
	if s.Message != "" {
		Info("%s", s.Message)
	}
}

// PrintNotes prints the prose of a reply.
func PrintNotes(notes []string) {
	if len(notes) == 0 {
		return
	}
	Header("\n--- Notes ---")
	for _, n := range notes {
		fmt.Fprintf(out, "%s\n\n", n)
	}
}

// --- Progress Bar ---

type ProgressBar struct {
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, prefix: prefix}
}

func (p *ProgressBar) Start() {
	p.draw()
}

func (p *ProgressBar) Increment() {
	p.current++
	p.draw()
}

// Set moves the bar to done out of total.
func (p *ProgressBar) Set(done, total int) {
	p.current, p.total = done, total
	p.draw()
}

func (p *ProgressBar) Finish() {
	fmt.Fprintln(out)
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	fmt.Fprintf(out, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
