package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Logo is printed at the top of interactive commands
const Logo = `
 _              _
| |___ __ ____ _| |___ _ _
|  _\ V  V / _' | / -_) '_|
 \__|\_/\_/\__,_|_\___|_|
`

var (
	accent  = lipgloss.Color("#00AFD7")
	magenta = lipgloss.Color("#D75FD7")
	green   = lipgloss.Color("#5FD75F")
	yellow  = lipgloss.Color("#D7D700")
	orange  = lipgloss.Color("#FF8700")
	red     = lipgloss.Color("#FF5F5F")
	dim     = lipgloss.Color("#8A8A8A")

	logoStyle      = lipgloss.NewStyle().Foreground(accent).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(accent).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	successStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(orange).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(dim)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1)
)

// Printer writes styled status lines. Quiet printers only print errors.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	err   io.Writer
	quiet bool
}

// NewPrinter creates a printer; errors go to errOut
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, err: errOut}
}

var std = NewPrinter(os.Stdout, os.Stderr)

// Default returns the process-wide printer
func Default() *Printer { return std }

// SetQuietMode silences everything but errors on the default printer
func SetQuietMode(quiet bool) {
	std.SetQuiet(quiet)
}

// SetNoColor strips styling from all output
func SetNoColor(off bool) {
	if off {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func (p *Printer) SetQuiet(quiet bool) {
	p.mu.Lock()
	p.quiet = quiet
	p.mu.Unlock()
}

func (p *Printer) Quiet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quiet
}

// Out is where non-error output goes; io.Discard when quiet
func (p *Printer) Out() io.Writer {
	if p.Quiet() {
		return io.Discard
	}
	return p.out
}

func (p *Printer) println(w io.Writer, s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(w, s)
}

func (p *Printer) Logo() {
	if !p.Quiet() {
		p.println(p.out, logoStyle.Render(Logo))
	}
}

func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	p.println(p.err, errorStyle.Render("✗ "+msg))
}

func (p *Printer) Warning(msg string) {
	if !p.Quiet() {
		p.println(p.out, warningStyle.Render("! "+msg))
	}
}

func (p *Printer) Success(msg string) {
	if !p.Quiet() {
		p.println(p.out, successStyle.Render("✓ "+msg))
	}
}

// Info prints "label: value"
func (p *Printer) Info(label, value string) {
	if !p.Quiet() {
		p.println(p.out, labelStyle.Render(label+":")+" "+valueStyle.Render(value))
	}
}

func (p *Printer) Highlight(msg string) {
	if !p.Quiet() {
		p.println(p.out, highlightStyle.Render(msg))
	}
}

// Dim prints secondary text such as hints
func (p *Printer) Dim(msg string) {
	if !p.Quiet() {
		p.println(p.out, dimStyle.Render(msg))
	}
}

// Panel prints pre-rendered text inside a bordered box
func (p *Printer) Panel(body string) {
	if !p.Quiet() {
		p.println(p.out, panelStyle.Render(body))
	}
}

func PrintLogo() { std.Logo() }
func PrintError(msg string, err error) { std.Error(msg, err) }
func PrintWarning(msg string) { std.Warning(msg) }
func PrintSuccess(msg string) { std.Success(msg) }
func PrintInfo(label, value string) { std.Info(label, value) }
func PrintHighlight(msg string) { std.Highlight(msg) }
func PrintDim(msg string) { std.Dim(msg) }
func PrintPanel(body string) { std.Panel(body) }
